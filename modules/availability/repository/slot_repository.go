package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/availability/entity"
)

// SlotRepositoryInterface defines storage for concrete bookable slots.
type SlotRepositoryInterface interface {
	InsertBatch(ctx context.Context, slots []entity.Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
	Update(ctx context.Context, slot *entity.Slot) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ClearGenerated removes a profile's future unbooked slots within the
	// window; slots carrying live bookings are preserved.
	ClearGenerated(ctx context.Context, profileID uuid.UUID, from, to time.Time) error
	DeleteByProfile(ctx context.Context, profileID uuid.UUID) error
	ListByProfile(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]entity.Slot, error)
	ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.Slot, error)
	NextAvailable(ctx context.Context, userID uuid.UUID, after time.Time) (*entity.Slot, error)
}

type SlotRepository struct {
	DB database.IDatabase
}

func NewSlotRepository(db database.IDatabase) *SlotRepository {
	return &SlotRepository{DB: db}
}

const slotColumns = `id, profile_id, user_id, start_time, end_time, status, source, max_bookings, current_bookings, booking_ids, buffer_before, buffer_after, meeting_types, created_at, updated_at`

func (r *SlotRepository) InsertBatch(ctx context.Context, slots []entity.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `
		INSERT INTO availability_slots
			(id, profile_id, user_id, start_time, end_time, status, source, max_bookings, current_bookings, booking_ids, buffer_before, buffer_after, meeting_types)
		VALUES
			(:id, :profile_id, :user_id, :start_time, :end_time, :status, :source, :max_bookings, :current_bookings, :booking_ids, :buffer_before, :buffer_after, :meeting_types)
	`
	for i := range slots {
		if _, err := r.DB.NamedExecContext(ctx, query, &slots[i]); err != nil {
			logger.Error("SlotRepository:InsertBatch", err)
			return err
		}
	}
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1`

	var slot entity.Slot
	err := r.DB.GetContext(ctx, &slot, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SlotRepository:GetByID", err)
		return nil, err
	}
	return &slot, nil
}

func (r *SlotRepository) Update(ctx context.Context, slot *entity.Slot) error {
	query := `
		UPDATE availability_slots
		SET status = $2, max_bookings = $3, current_bookings = $4, booking_ids = $5, updated_at = NOW()
		WHERE id = $1
	`
	err := r.DB.ExecContext(ctx, query,
		slot.ID, slot.Status, slot.MaxBookings, slot.CurrentBookings, slot.BookingIDs)
	if err != nil {
		logger.Error("SlotRepository:Update", err)
	}
	return err
}

func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.DB.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = $1`, id)
	if err != nil {
		logger.Error("SlotRepository:Delete", err)
	}
	return err
}

func (r *SlotRepository) ClearGenerated(ctx context.Context, profileID uuid.UUID, from, to time.Time) error {
	query := `
		DELETE FROM availability_slots
		WHERE profile_id = $1 AND start_time >= $2 AND start_time < $3 AND current_bookings = 0
	`
	err := r.DB.ExecContext(ctx, query, profileID, from, to)
	if err != nil {
		logger.Error("SlotRepository:ClearGenerated", err)
	}
	return err
}

func (r *SlotRepository) DeleteByProfile(ctx context.Context, profileID uuid.UUID) error {
	err := r.DB.ExecContext(ctx, `DELETE FROM availability_slots WHERE profile_id = $1`, profileID)
	if err != nil {
		logger.Error("SlotRepository:DeleteByProfile", err)
	}
	return err
}

func (r *SlotRepository) ListByProfile(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]entity.Slot, error) {
	query := `
		SELECT ` + slotColumns + ` FROM availability_slots
		WHERE profile_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`
	var slots []entity.Slot
	if err := r.DB.SelectContext(ctx, &slots, query, profileID, from, to); err != nil {
		logger.Error("SlotRepository:ListByProfile", err)
		return nil, err
	}
	return slots, nil
}

func (r *SlotRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.Slot, error) {
	query := `
		SELECT ` + slotColumns + ` FROM availability_slots
		WHERE user_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`
	var slots []entity.Slot
	if err := r.DB.SelectContext(ctx, &slots, query, userID, from, to); err != nil {
		logger.Error("SlotRepository:ListByUser", err)
		return nil, err
	}
	return slots, nil
}

func (r *SlotRepository) NextAvailable(ctx context.Context, userID uuid.UUID, after time.Time) (*entity.Slot, error) {
	query := `
		SELECT ` + slotColumns + ` FROM availability_slots
		WHERE user_id = $1 AND start_time >= $2 AND status = 'available'
		ORDER BY start_time
		LIMIT 1
	`
	var slot entity.Slot
	err := r.DB.GetContext(ctx, &slot, query, userID, after)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SlotRepository:NextAvailable", err)
		return nil, err
	}
	return &slot, nil
}
