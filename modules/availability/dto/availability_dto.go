package dto

import (
	"time"

	"go-meeting-core/modules/availability/entity"
)

// ===================== Request DTOs =====================

// CreateProfileRequest creates an availability profile.
type CreateProfileRequest struct {
	Name         string              `json:"name" validate:"required"`
	Timezone     string              `json:"timezone"`
	IsDefault    bool                `json:"is_default"`
	WorkingHours entity.WeeklyHours  `json:"working_hours"`
	Patterns     []entity.Pattern    `json:"patterns"`
	Exceptions   []entity.Exception  `json:"exceptions"`
	Overrides    []entity.Override   `json:"overrides"`
}

// UpdateProfileRequest mutates an availability profile. Nil sections are left
// untouched; a non-nil section replaces the stored one.
type UpdateProfileRequest struct {
	Name         string              `json:"name"`
	Timezone     string              `json:"timezone"`
	IsDefault    *bool               `json:"is_default"`
	WorkingHours *entity.WeeklyHours `json:"working_hours"`
	Patterns     *[]entity.Pattern   `json:"patterns"`
	Exceptions   *[]entity.Exception `json:"exceptions"`
	Overrides    *[]entity.Override  `json:"overrides"`
}

// QueryPreferences narrows and shapes availability query results.
type QueryPreferences struct {
	TimeOfDayStart     string   `json:"time_of_day_start,omitempty"` // "HH:MM"
	TimeOfDayEnd       string   `json:"time_of_day_end,omitempty"`
	DaysOfWeek         []string `json:"days_of_week,omitempty"` // lowercase weekday names
	IncludeUnavailable bool     `json:"include_unavailable"`
	GroupConsecutive   bool     `json:"group_consecutive"`
	Optimize           bool     `json:"optimize"`
	LoadBalance        bool     `json:"load_balance"`
	ConsultCalendars   bool     `json:"consult_calendars"`
}

// QueryRequest asks for availability across one or more users.
type QueryRequest struct {
	UserIDs         []string         `json:"user_ids" validate:"required"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	DurationMinutes int              `json:"duration_minutes" validate:"required,min=5"`
	MeetingType     string           `json:"meeting_type,omitempty"`
	Preferences     QueryPreferences `json:"preferences"`
}

// ===================== Response DTOs =====================

type SlotView struct {
	ID              string    `json:"id"`
	ProfileID       string    `json:"profile_id"`
	UserID          string    `json:"user_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	MaxBookings     int       `json:"max_bookings"`
	CurrentBookings int       `json:"current_bookings"`
	BookingIDs      []string  `json:"booking_ids,omitempty"`
	BufferBefore    int       `json:"buffer_before"`
	BufferAfter     int       `json:"buffer_after"`
}

type ConflictView struct {
	SlotID    string    `json:"slot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
}

// UserAvailability is one user's query result.
type UserAvailability struct {
	UserID         string         `json:"user_id"`
	Slots          []SlotView     `json:"slots"`
	Conflicts      []ConflictView `json:"conflicts,omitempty"`
	NextAvailable  *SlotView      `json:"next_available,omitempty"`
	TotalAvailable int            `json:"total_available"`
	BookingLoad    int            `json:"booking_load"`
}

// QueryResponse is the full availability answer, users in ranked order.
type QueryResponse struct {
	Users       []UserAvailability `json:"users"`
	GeneratedAt time.Time          `json:"generated_at"`
	CacheHit    bool               `json:"cache_hit"`
}

type ProfileResponse struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Name         string             `json:"name"`
	Slug         string             `json:"slug"`
	Timezone     string             `json:"timezone"`
	IsDefault    bool               `json:"is_default"`
	WorkingHours entity.WeeklyHours `json:"working_hours"`
	Patterns     []entity.Pattern   `json:"patterns"`
	Exceptions   []entity.Exception `json:"exceptions"`
	Overrides    []entity.Override  `json:"overrides"`
	CreatedAt    time.Time          `json:"created_at"`
}

type GenerateResponse struct {
	ProfileID string `json:"profile_id"`
	SlotCount int    `json:"slot_count"`
}

// ===================== Mappers =====================

func ToSlotView(s *entity.Slot) SlotView {
	return SlotView{
		ID:              s.ID.String(),
		ProfileID:       s.ProfileID.String(),
		UserID:          s.UserID.String(),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Status:          string(s.Status),
		Source:          string(s.Source),
		MaxBookings:     s.MaxBookings,
		CurrentBookings: s.CurrentBookings,
		BookingIDs:      s.BookingIDs.V,
		BufferBefore:    s.BufferBefore,
		BufferAfter:     s.BufferAfter,
	}
}

func ToProfileResponse(p *entity.AvailabilityProfile) *ProfileResponse {
	return &ProfileResponse{
		ID:           p.ID.String(),
		UserID:       p.UserID.String(),
		Name:         p.Name,
		Slug:         p.Slug,
		Timezone:     p.Timezone,
		IsDefault:    p.IsDefault,
		WorkingHours: p.WorkingHours.V,
		Patterns:     p.Patterns.V,
		Exceptions:   p.Exceptions.V,
		Overrides:    p.Overrides.V,
		CreatedAt:    p.CreatedAt,
	}
}
