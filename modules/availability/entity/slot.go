package entity

import (
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/entity"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
	SlotTentative SlotStatus = "tentative"
)

type SlotSource string

const (
	SourcePattern     SlotSource = "pattern"
	SourceException   SlotSource = "exception"
	SourceOverride    SlotSource = "override"
	SourceManualMerge SlotSource = "manual_merge"
)

// Slot is the atomic bookable unit. Occupancy fields are mutated only by the
// slot ledger.
type Slot struct {
	entity.BaseEntity
	ProfileID       uuid.UUID                 `db:"profile_id" json:"profile_id"`
	UserID          uuid.UUID                 `db:"user_id" json:"user_id"`
	StartTime       time.Time                 `db:"start_time" json:"start_time"`
	EndTime         time.Time                 `db:"end_time" json:"end_time"`
	Status          SlotStatus                `db:"status" json:"status"`
	Source          SlotSource                `db:"source" json:"source"`
	MaxBookings     int                       `db:"max_bookings" json:"max_bookings"`
	CurrentBookings int                       `db:"current_bookings" json:"current_bookings"`
	BookingIDs      entity.JSONDoc[[]string]  `db:"booking_ids" json:"booking_ids"`
	BufferBefore    int                       `db:"buffer_before" json:"buffer_before"` // minutes
	BufferAfter     int                       `db:"buffer_after" json:"buffer_after"`
	MeetingTypes    entity.JSONDoc[[]string]  `db:"meeting_types" json:"meeting_types"` // empty = any
}

func (Slot) TableName() string {
	return "availability_slots"
}

func (s *Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Intersects reports half-open interval overlap with [start, end).
func (s *Slot) Intersects(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// AllowsMeetingType checks the optional meeting-type allowlist.
func (s *Slot) AllowsMeetingType(meetingType string) bool {
	if meetingType == "" || len(s.MeetingTypes.V) == 0 {
		return true
	}
	for _, t := range s.MeetingTypes.V {
		if t == meetingType {
			return true
		}
	}
	return false
}

func (s *Slot) HasBooking(bookingID string) bool {
	for _, id := range s.BookingIDs.V {
		if id == bookingID {
			return true
		}
	}
	return false
}
