package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/calendar/entity"
)

// ConnectionRepositoryInterface stores provider connections.
type ConnectionRepositoryInterface interface {
	Create(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.CalendarConnection, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	Update(ctx context.Context, conn *entity.CalendarConnection) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListDue returns connected, sync-enabled connections whose next_sync_at
	// has elapsed.
	ListDue(ctx context.Context, now time.Time) ([]entity.CalendarConnection, error)
}

// EventRepositoryInterface stores the local copies of calendar events.
type EventRepositoryInterface interface {
	Create(ctx context.Context, event *entity.CalendarEvent) (*entity.CalendarEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarEvent, error)
	GetByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*entity.CalendarEvent, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]entity.CalendarEvent, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.CalendarEvent, error)
	ListByUserWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.CalendarEvent, error)
	ListPendingByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.CalendarEvent, error)
	Update(ctx context.Context, event *entity.CalendarEvent) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByConnection(ctx context.Context, connectionID uuid.UUID) error
}

// SyncRepositoryInterface stores sync job execution records.
type SyncRepositoryInterface interface {
	Create(ctx context.Context, job *entity.CalendarSync) (*entity.CalendarSync, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarSync, error)
	GetActiveByConnection(ctx context.Context, connectionID uuid.UUID) (*entity.CalendarSync, error)
	Update(ctx context.Context, job *entity.CalendarSync) error
}

// ===================== Connections =====================

type ConnectionRepository struct {
	DB database.IDatabase
}

func NewConnectionRepository(db database.IDatabase) *ConnectionRepository {
	return &ConnectionRepository{DB: db}
}

const connectionColumns = `id, user_id, provider, calendar_email, access_token, refresh_token,
	token_expires_at, status, settings, cursor, next_sync_at, last_sync_at, created_at, updated_at`

func (r *ConnectionRepository) Create(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	query := `
		INSERT INTO calendar_connections (id, user_id, provider, calendar_email, access_token,
			refresh_token, token_expires_at, status, settings, cursor, next_sync_at)
		VALUES (:id, :user_id, :provider, :calendar_email, :access_token,
			:refresh_token, :token_expires_at, :status, :settings, :cursor, :next_sync_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, conn); err != nil {
		logger.Error("ConnectionRepository:Create", err)
		return nil, err
	}
	return conn, nil
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections WHERE id = $1`

	var conn entity.CalendarConnection
	err := r.DB.GetContext(ctx, &conn, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ConnectionRepository:GetByID", err)
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.CalendarConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections WHERE user_id = $1 ORDER BY created_at`

	var conns []entity.CalendarConnection
	if err := r.DB.SelectContext(ctx, &conns, query, userID); err != nil {
		logger.Error("ConnectionRepository:ListByUser", err)
		return nil, err
	}
	return conns, nil
}

func (r *ConnectionRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM calendar_connections WHERE user_id = $1`, userID)
	if err != nil {
		logger.Error("ConnectionRepository:CountByUser", err)
		return 0, err
	}
	return count, nil
}

func (r *ConnectionRepository) Update(ctx context.Context, conn *entity.CalendarConnection) error {
	query := `
		UPDATE calendar_connections
		SET calendar_email = :calendar_email, access_token = :access_token,
			refresh_token = :refresh_token, token_expires_at = :token_expires_at,
			status = :status, settings = :settings, cursor = :cursor,
			next_sync_at = :next_sync_at, last_sync_at = :last_sync_at, updated_at = NOW()
		WHERE id = :id
	`
	if _, err := r.DB.NamedExecContext(ctx, query, conn); err != nil {
		logger.Error("ConnectionRepository:Update", err)
		return err
	}
	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.DB.ExecContext(ctx, `DELETE FROM calendar_connections WHERE id = $1`, id)
	if err != nil {
		logger.Error("ConnectionRepository:Delete", err)
	}
	return err
}

func (r *ConnectionRepository) ListDue(ctx context.Context, now time.Time) ([]entity.CalendarConnection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM calendar_connections
		WHERE status = 'connected'
		  AND settings->>'enabled' = 'true'
		  AND next_sync_at IS NOT NULL AND next_sync_at <= $1
		ORDER BY next_sync_at
	`
	var conns []entity.CalendarConnection
	if err := r.DB.SelectContext(ctx, &conns, query, now); err != nil {
		logger.Error("ConnectionRepository:ListDue", err)
		return nil, err
	}
	return conns, nil
}

// ===================== Events =====================

type EventRepository struct {
	DB database.IDatabase
}

func NewEventRepository(db database.IDatabase) *EventRepository {
	return &EventRepository{DB: db}
}

const eventColumns = `id, connection_id, user_id, booking_id, external_id, title, start_time,
	end_time, attendees, recurrence_rule, show_as, sync_status, last_error, created_at, updated_at`

func (r *EventRepository) Create(ctx context.Context, event *entity.CalendarEvent) (*entity.CalendarEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO calendar_events (id, connection_id, user_id, booking_id, external_id, title,
			start_time, end_time, attendees, recurrence_rule, show_as, sync_status, last_error)
		VALUES (:id, :connection_id, :user_id, :booking_id, :external_id, :title,
			:start_time, :end_time, :attendees, :recurrence_rule, :show_as, :sync_status, :last_error)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, event); err != nil {
		logger.Error("EventRepository:Create", err)
		return nil, err
	}
	return event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE id = $1`

	var event entity.CalendarEvent
	err := r.DB.GetContext(ctx, &event, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("EventRepository:GetByID", err)
		return nil, err
	}
	return &event, nil
}

func (r *EventRepository) GetByExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*entity.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE connection_id = $1 AND external_id = $2`

	var event entity.CalendarEvent
	err := r.DB.GetContext(ctx, &event, query, connectionID, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("EventRepository:GetByExternalID", err)
		return nil, err
	}
	return &event, nil
}

func (r *EventRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]entity.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE booking_id = $1`

	var events []entity.CalendarEvent
	if err := r.DB.SelectContext(ctx, &events, query, bookingID); err != nil {
		logger.Error("EventRepository:ListByBooking", err)
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE connection_id = $1 ORDER BY start_time`

	var events []entity.CalendarEvent
	if err := r.DB.SelectContext(ctx, &events, query, connectionID); err != nil {
		logger.Error("EventRepository:ListByConnection", err)
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) ListByUserWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.CalendarEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`
	var events []entity.CalendarEvent
	if err := r.DB.SelectContext(ctx, &events, query, userID, from, to); err != nil {
		logger.Error("EventRepository:ListByUserWindow", err)
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) ListPendingByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.CalendarEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE connection_id = $1 AND sync_status IN ('sync_pending', 'sync_failed')
		ORDER BY start_time
	`
	var events []entity.CalendarEvent
	if err := r.DB.SelectContext(ctx, &events, query, connectionID); err != nil {
		logger.Error("EventRepository:ListPendingByConnection", err)
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) Update(ctx context.Context, event *entity.CalendarEvent) error {
	query := `
		UPDATE calendar_events
		SET external_id = :external_id, title = :title, start_time = :start_time,
			end_time = :end_time, attendees = :attendees, recurrence_rule = :recurrence_rule,
			show_as = :show_as, sync_status = :sync_status, last_error = :last_error, updated_at = NOW()
		WHERE id = :id
	`
	if _, err := r.DB.NamedExecContext(ctx, query, event); err != nil {
		logger.Error("EventRepository:Update", err)
		return err
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.DB.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		logger.Error("EventRepository:Delete", err)
	}
	return err
}

func (r *EventRepository) DeleteByConnection(ctx context.Context, connectionID uuid.UUID) error {
	err := r.DB.ExecContext(ctx, `DELETE FROM calendar_events WHERE connection_id = $1`, connectionID)
	if err != nil {
		logger.Error("EventRepository:DeleteByConnection", err)
	}
	return err
}

// ===================== Sync jobs =====================

type SyncRepository struct {
	DB database.IDatabase
}

func NewSyncRepository(db database.IDatabase) *SyncRepository {
	return &SyncRepository{DB: db}
}

const syncColumns = `id, connection_id, mode, status, processed, created_count, updated_count,
	deleted_count, errors, progress, attempt, started_at, finished_at, created_at, updated_at`

func (r *SyncRepository) Create(ctx context.Context, job *entity.CalendarSync) (*entity.CalendarSync, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	query := `
		INSERT INTO calendar_syncs (id, connection_id, mode, status, processed, created_count,
			updated_count, deleted_count, errors, progress, attempt, started_at, finished_at)
		VALUES (:id, :connection_id, :mode, :status, :processed, :created_count,
			:updated_count, :deleted_count, :errors, :progress, :attempt, :started_at, :finished_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, job); err != nil {
		logger.Error("SyncRepository:Create", err)
		return nil, err
	}
	return job, nil
}

func (r *SyncRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarSync, error) {
	query := `SELECT ` + syncColumns + ` FROM calendar_syncs WHERE id = $1`

	var job entity.CalendarSync
	err := r.DB.GetContext(ctx, &job, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SyncRepository:GetByID", err)
		return nil, err
	}
	return &job, nil
}

func (r *SyncRepository) GetActiveByConnection(ctx context.Context, connectionID uuid.UUID) (*entity.CalendarSync, error) {
	query := `
		SELECT ` + syncColumns + `
		FROM calendar_syncs
		WHERE connection_id = $1 AND status IN ('pending', 'running')
		ORDER BY created_at DESC
		LIMIT 1
	`
	var job entity.CalendarSync
	err := r.DB.GetContext(ctx, &job, query, connectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SyncRepository:GetActiveByConnection", err)
		return nil, err
	}
	return &job, nil
}

func (r *SyncRepository) Update(ctx context.Context, job *entity.CalendarSync) error {
	query := `
		UPDATE calendar_syncs
		SET status = :status, processed = :processed, created_count = :created_count,
			updated_count = :updated_count, deleted_count = :deleted_count, errors = :errors,
			progress = :progress, attempt = :attempt, started_at = :started_at,
			finished_at = :finished_at, updated_at = NOW()
		WHERE id = :id
	`
	if _, err := r.DB.NamedExecContext(ctx, query, job); err != nil {
		logger.Error("SyncRepository:Update", err)
		return err
	}
	return nil
}
