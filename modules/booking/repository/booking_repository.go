package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/booking/entity"
)

// BookingRepositoryInterface stores admitted bookings and answers the
// conflict-detection queries the workflow engine needs at admission.
type BookingRepositoryInterface interface {
	Create(ctx context.Context, booking *entity.Booking) (*entity.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	Update(ctx context.Context, booking *entity.Booking) error
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]entity.Booking, error)
	// CountActive counts the requester's bookings in a non-terminal status.
	CountActive(ctx context.Context, requesterID uuid.UUID) (int, error)
	// ListOverlappingByAttendee returns non-terminal bookings that include the
	// attendee email and overlap [start, end).
	ListOverlappingByAttendee(ctx context.Context, email string, start, end time.Time) ([]entity.Booking, error)
}

type BookingRepository struct {
	DB database.IDatabase
}

func NewBookingRepository(db database.IDatabase) *BookingRepository {
	return &BookingRepository{DB: db}
}

const bookingColumns = `id, requester_id, host_user_id, workflow_id, slot_id, title, meeting_type, location, duration_minutes, start_time, end_time, status, candidate_windows, attendees, resources, workflow_steps, state, confirmed_at, created_at, updated_at`

const terminalStatuses = `('completed', 'cancelled', 'rejected')`

func (r *BookingRepository) Create(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	query := `
		INSERT INTO bookings
			(id, requester_id, host_user_id, workflow_id, slot_id, title, meeting_type, location, duration_minutes, start_time, end_time, status, candidate_windows, attendees, resources, workflow_steps, state, confirmed_at)
		VALUES
			(:id, :requester_id, :host_user_id, :workflow_id, :slot_id, :title, :meeting_type, :location, :duration_minutes, :start_time, :end_time, :status, :candidate_windows, :attendees, :resources, :workflow_steps, :state, :confirmed_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, booking); err != nil {
		logger.Error("BookingRepository:Create", err)
		return nil, err
	}
	return booking, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking entity.Booking
	err := r.DB.GetContext(ctx, &booking, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("BookingRepository:GetByID", err)
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET slot_id = $2, start_time = $3, end_time = $4, status = $5, attendees = $6, resources = $7, state = $8, confirmed_at = $9, updated_at = NOW()
		WHERE id = $1
	`
	err := r.DB.ExecContext(ctx, query,
		booking.ID, booking.SlotID, booking.StartTime, booking.EndTime, booking.Status,
		booking.Attendees, booking.Resources, booking.State, booking.ConfirmedAt)
	if err != nil {
		logger.Error("BookingRepository:Update", err)
	}
	return err
}

func (r *BookingRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`
	var bookings []entity.Booking
	if err := r.DB.SelectContext(ctx, &bookings, query, requesterID); err != nil {
		logger.Error("BookingRepository:ListByRequester", err)
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepository) CountActive(ctx context.Context, requesterID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE requester_id = $1 AND status NOT IN ` + terminalStatuses + `
	`
	var count int
	if err := r.DB.GetContext(ctx, &count, query, requesterID); err != nil {
		logger.Error("BookingRepository:CountActive", err)
		return 0, err
	}
	return count, nil
}

func (r *BookingRepository) ListOverlappingByAttendee(ctx context.Context, email string, start, end time.Time) ([]entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE status NOT IN ` + terminalStatuses + `
		  AND start_time < $3 AND end_time > $2
		  AND attendees @> $1::jsonb
	`
	attendeeFilter, err := json.Marshal([]map[string]string{{"email": email}})
	if err != nil {
		return nil, err
	}
	var bookings []entity.Booking
	if err := r.DB.SelectContext(ctx, &bookings, query, attendeeFilter, start, end); err != nil {
		logger.Error("BookingRepository:ListOverlappingByAttendee", err)
		return nil, err
	}
	return bookings, nil
}
