package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/entity"
)

type PatternType string

const (
	PatternTypeRegular  PatternType = "regular"
	PatternTypeBlackout PatternType = "blackout"
)

type PatternFrequency string

const (
	FrequencyWeekly   PatternFrequency = "weekly"
	FrequencyBiweekly PatternFrequency = "biweekly"
)

type ExceptionType string

const (
	ExceptionUnavailable ExceptionType = "unavailable"
	ExceptionLimited     ExceptionType = "limited"
	ExceptionAvailable   ExceptionType = "available"
)

type OverrideType string

const (
	OverrideAvailable   OverrideType = "available"
	OverrideUnavailable OverrideType = "unavailable"
)

// BreakInterval is a non-bookable window inside a working day, "HH:MM" local.
type BreakInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayWorkingHours is one row of the weekly working-hours table.
type DayWorkingHours struct {
	Enabled bool            `json:"enabled"`
	Start   string          `json:"start"`
	End     string          `json:"end"`
	Breaks  []BreakInterval `json:"breaks,omitempty"`
}

// WeeklyHours maps lowercase weekday names ("monday") to working hours.
type WeeklyHours map[string]DayWorkingHours

func (w WeeklyHours) ForWeekday(d time.Weekday) (DayWorkingHours, bool) {
	wh, ok := w[strings.ToLower(d.String())]
	return wh, ok
}

// Pattern is a recurring slot-generation rule.
type Pattern struct {
	ID           string           `json:"id"`
	Name         string           `json:"name,omitempty"`
	Type         PatternType      `json:"type"`
	Days         []time.Weekday   `json:"days"`
	StartTime    string           `json:"start_time"` // "HH:MM"
	EndTime      string           `json:"end_time"`
	Frequency    PatternFrequency `json:"frequency"`
	MaxBookings  int              `json:"max_bookings"`
	BufferBefore int              `json:"buffer_before"` // minutes
	BufferAfter  int              `json:"buffer_after"`
	MeetingTypes []string         `json:"meeting_types,omitempty"`
}

func (p Pattern) HasDay(d time.Weekday) bool {
	for _, pd := range p.Days {
		if pd == d {
			return true
		}
	}
	return false
}

// Exception overrides pattern-derived availability on a single date.
type Exception struct {
	ID          string        `json:"id"`
	Date        string        `json:"date"` // "2006-01-02"
	Type        ExceptionType `json:"type"`
	StartTime   string        `json:"start_time,omitempty"` // empty = whole day
	EndTime     string        `json:"end_time,omitempty"`
	MaxBookings int           `json:"max_bookings,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// Override is an absolute-instant range that wins over patterns and
// exceptions.
type Override struct {
	ID          string       `json:"id"`
	Type        OverrideType `json:"type"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     time.Time    `json:"end_time"`
	MaxBookings int          `json:"max_bookings,omitempty"`
	BookingIDs  []string     `json:"booking_ids,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// AvailabilityProfile is a user's declarative availability configuration.
type AvailabilityProfile struct {
	entity.BaseEntity
	UserID       uuid.UUID                      `db:"user_id" json:"user_id"`
	Name         string                         `db:"name" json:"name"`
	Slug         string                         `db:"slug" json:"slug"`
	Timezone     string                         `db:"timezone" json:"timezone"`
	IsDefault    bool                           `db:"is_default" json:"is_default"`
	WorkingHours entity.JSONDoc[WeeklyHours]    `db:"working_hours" json:"working_hours"`
	Patterns     entity.JSONDoc[[]Pattern]      `db:"patterns" json:"patterns"`
	Exceptions   entity.JSONDoc[[]Exception]    `db:"exceptions" json:"exceptions"`
	Overrides    entity.JSONDoc[[]Override]     `db:"overrides" json:"overrides"`
}

func (AvailabilityProfile) TableName() string {
	return "availability_profiles"
}

// Location resolves the profile timezone, defaulting to UTC.
func (p *AvailabilityProfile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MinuteOfDay parses "HH:MM" into minutes since midnight.
func MinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
