package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/signal"
	"go-meeting-core/modules/availability/entity"
	"go-meeting-core/modules/availability/repository"
)

// SlotLedger is the single owner of slot occupancy. All booking and release
// of slots goes through it; operations are serialized so concurrent bookings
// of the same slot cannot lose updates.
type SlotLedger struct {
	slotRepo repository.SlotRepositoryInterface
	signals  *signal.Registry
	mu       sync.Mutex
}

func NewSlotLedger(slotRepo repository.SlotRepositoryInterface, signals *signal.Registry) *SlotLedger {
	return &SlotLedger{slotRepo: slotRepo, signals: signals}
}

// Book attaches a booking to the slot. The slot must exist, be available,
// have free capacity and accept the meeting type. Status flips to booked
// exactly when occupancy reaches capacity.
func (l *SlotLedger) Book(ctx context.Context, slotID uuid.UUID, bookingID string, meetingType string) (*entity.Slot, *errors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, err := l.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load slot", err)
	}
	if slot == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
	}

	if slot.Status != entity.SlotAvailable {
		return nil, errors.NewConflictError(
			fmt.Sprintf("Slot is not available (status %s)", slot.Status),
			[]errors.ConflictDetail{{
				Type:        "slot_unavailable",
				Severity:    "error",
				Description: fmt.Sprintf("slot %s has status %s", slotID, slot.Status),
			}},
		)
	}
	if slot.CurrentBookings >= slot.MaxBookings {
		return nil, &errors.AppError{
			Code:    errors.ErrSlotAtCapacity,
			Message: "Slot is at capacity",
			Details: []errors.ConflictDetail{{
				Type:        "slot_at_capacity",
				Severity:    "error",
				Description: fmt.Sprintf("slot %s already holds %d/%d bookings", slotID, slot.CurrentBookings, slot.MaxBookings),
			}},
		}
	}
	if !slot.AllowsMeetingType(meetingType) {
		return nil, errors.NewConflictError(
			fmt.Sprintf("Slot does not accept meeting type %q", meetingType), nil)
	}

	slot.CurrentBookings++
	slot.BookingIDs.V = append(slot.BookingIDs.V, bookingID)
	if slot.CurrentBookings >= slot.MaxBookings {
		slot.Status = entity.SlotBooked
	}

	if err := l.slotRepo.Update(ctx, slot); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to save slot", err)
	}

	logger.Info("SlotLedger:Book", "slot_id", slotID, "booking_id", bookingID,
		"occupancy", slot.CurrentBookings, "capacity", slot.MaxBookings)
	if l.signals != nil {
		l.signals.Publish("slot.booked", map[string]any{
			"slot_id":    slotID.String(),
			"booking_id": bookingID,
		})
	}
	return slot, nil
}

// Release detaches a booking from the slot. Releasing a booking id not on the
// slot is an error, never a silent no-op.
func (l *SlotLedger) Release(ctx context.Context, slotID uuid.UUID, bookingID string) (*entity.Slot, *errors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, err := l.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load slot", err)
	}
	if slot == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
	}
	if !slot.HasBooking(bookingID) {
		return nil, errors.NewAppError(errors.ErrNotFound, "Booking is not attached to this slot", nil)
	}

	kept := slot.BookingIDs.V[:0]
	for _, id := range slot.BookingIDs.V {
		if id != bookingID {
			kept = append(kept, id)
		}
	}
	slot.BookingIDs.V = kept
	slot.CurrentBookings--
	if slot.Status == entity.SlotBooked && slot.CurrentBookings < slot.MaxBookings {
		slot.Status = entity.SlotAvailable
	}

	if err := l.slotRepo.Update(ctx, slot); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to save slot", err)
	}

	logger.Info("SlotLedger:Release", "slot_id", slotID, "booking_id", bookingID,
		"occupancy", slot.CurrentBookings)
	if l.signals != nil {
		l.signals.Publish("slot.released", map[string]any{
			"slot_id":    slotID.String(),
			"booking_id": bookingID,
		})
	}
	return slot, nil
}

// Get reads a slot without mutating it.
func (l *SlotLedger) Get(ctx context.Context, slotID uuid.UUID) (*entity.Slot, *errors.AppError) {
	slot, err := l.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load slot", err)
	}
	if slot == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
	}
	return slot, nil
}
