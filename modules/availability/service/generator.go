package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/signal"
	"go-meeting-core/modules/availability/entity"
	"go-meeting-core/modules/availability/repository"

	coreEntity "go-meeting-core/core/entity"
)

// SlotGenerator expands a profile's patterns, exceptions and overrides into
// concrete slots covering [now, now + windowDays].
type SlotGenerator struct {
	profileRepo repository.ProfileRepositoryInterface
	slotRepo    repository.SlotRepositoryInterface
	signals     *signal.Registry

	SlotDurationMinutes int
	WindowDays          int
	Now                 func() time.Time
}

func NewSlotGenerator(
	profileRepo repository.ProfileRepositoryInterface,
	slotRepo repository.SlotRepositoryInterface,
	signals *signal.Registry,
	slotDurationMinutes, windowDays int,
) *SlotGenerator {
	return &SlotGenerator{
		profileRepo:         profileRepo,
		slotRepo:            slotRepo,
		signals:             signals,
		SlotDurationMinutes: slotDurationMinutes,
		WindowDays:          windowDays,
		Now:                 time.Now,
	}
}

// GenerateForProfile replaces the profile's future unbooked slots in the
// rolling window. Pattern expansion runs first, then exceptions, then
// overrides, so overrides win ties and exceptions win over raw patterns.
func (g *SlotGenerator) GenerateForProfile(ctx context.Context, profile *entity.AvailabilityProfile) (int, *errors.AppError) {
	now := g.Now()
	windowEnd := now.AddDate(0, 0, g.WindowDays)

	if err := g.slotRepo.ClearGenerated(ctx, profile.ID, now, windowEnd); err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to clear generated slots", err)
	}

	slots := g.expandPatterns(profile, now, windowEnd)
	slots = g.applyExceptions(profile, slots, now, windowEnd)
	slots = g.applyOverrides(profile, slots, now, windowEnd)

	if err := g.slotRepo.InsertBatch(ctx, slots); err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to persist slots", err)
	}

	if g.signals != nil {
		g.signals.Publish("slots.generated", map[string]any{
			"profile_id": profile.ID.String(),
			"user_id":    profile.UserID.String(),
			"count":      len(slots),
		})
	}
	return len(slots), nil
}

// GenerateAll regenerates every profile. A failure on one profile is logged
// and does not abort the others.
func (g *SlotGenerator) GenerateAll(ctx context.Context) error {
	profiles, err := g.profileRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	for i := range profiles {
		if _, appErr := g.GenerateForProfile(ctx, &profiles[i]); appErr != nil {
			logger.Error("SlotGenerator:GenerateAll:ProfileFailed",
				"profile_id", profiles[i].ID, "error", appErr)
		}
	}
	return nil
}

// ===================== Pattern expansion =====================

func (g *SlotGenerator) expandPatterns(profile *entity.AvailabilityProfile, from, to time.Time) []entity.Slot {
	loc := profile.Location()
	hours := profile.WorkingHours.V
	windowStartDay := startOfDay(from.In(loc))

	var slots []entity.Slot
	for _, pattern := range profile.Patterns.V {
		if pattern.Type == entity.PatternTypeBlackout {
			continue
		}
		if !g.patternValid(profile.ID, pattern) {
			continue
		}

		patternStart, _ := entity.MinuteOfDay(pattern.StartTime)
		patternEnd, _ := entity.MinuteOfDay(pattern.EndTime)

		for day := windowStartDay; day.Before(to); day = day.AddDate(0, 0, 1) {
			if !pattern.HasDay(day.Weekday()) {
				continue
			}
			if pattern.Frequency == entity.FrequencyBiweekly && !biweeklyWeek(windowStartDay, day) {
				continue
			}

			wh, ok := hours.ForWeekday(day.Weekday())
			if !ok || !wh.Enabled {
				continue
			}
			whStart, err1 := entity.MinuteOfDay(wh.Start)
			whEnd, err2 := entity.MinuteOfDay(wh.End)
			if err1 != nil || err2 != nil {
				logger.Warn("SlotGenerator:InvalidWorkingHours",
					"profile_id", profile.ID, "day", day.Weekday().String())
				continue
			}

			effStart := max(patternStart, whStart)
			effEnd := min(patternEnd, whEnd)
			if effStart >= effEnd {
				continue
			}

			slots = append(slots, g.cutSlots(profile, pattern, day, effStart, effEnd, wh.Breaks, from)...)
		}
	}
	return slots
}

func (g *SlotGenerator) patternValid(profileID uuid.UUID, p entity.Pattern) bool {
	if len(p.Days) == 0 {
		logger.Warn("SlotGenerator:SkippingPattern", "profile_id", profileID, "pattern_id", p.ID, "reason", "empty day set")
		return false
	}
	start, err1 := entity.MinuteOfDay(p.StartTime)
	end, err2 := entity.MinuteOfDay(p.EndTime)
	if err1 != nil || err2 != nil || start >= end {
		logger.Warn("SlotGenerator:SkippingPattern", "profile_id", profileID, "pattern_id", p.ID, "reason", "invalid time range")
		return false
	}
	return true
}

// cutSlots cuts fixed-duration slots from the effective minute range of one
// day, discarding slots that intersect a break or start before the window.
func (g *SlotGenerator) cutSlots(
	profile *entity.AvailabilityProfile,
	pattern entity.Pattern,
	day time.Time,
	effStart, effEnd int,
	breaks []entity.BreakInterval,
	notBefore time.Time,
) []entity.Slot {
	duration := g.SlotDurationMinutes

	var out []entity.Slot
	for m := effStart; m+duration <= effEnd; m += duration {
		slotStart := day.Add(time.Duration(m) * time.Minute)
		slotEnd := slotStart.Add(time.Duration(duration) * time.Minute)

		if slotStart.Before(notBefore) {
			continue
		}
		if intersectsBreak(m, m+duration, breaks) {
			continue
		}

		maxBookings := pattern.MaxBookings
		if maxBookings < 1 {
			maxBookings = 1
		}

		out = append(out, entity.Slot{
			BaseEntity:   coreEntity.BaseEntity{ID: uuid.New()},
			ProfileID:    profile.ID,
			UserID:       profile.UserID,
			StartTime:    slotStart,
			EndTime:      slotEnd,
			Status:       entity.SlotAvailable,
			Source:       entity.SourcePattern,
			MaxBookings:  maxBookings,
			BookingIDs:   coreEntity.NewJSONDoc([]string{}),
			BufferBefore: pattern.BufferBefore,
			BufferAfter:  pattern.BufferAfter,
			MeetingTypes: coreEntity.NewJSONDoc(pattern.MeetingTypes),
		})
	}
	return out
}

func intersectsBreak(startMin, endMin int, breaks []entity.BreakInterval) bool {
	for _, b := range breaks {
		bs, err1 := entity.MinuteOfDay(b.Start)
		be, err2 := entity.MinuteOfDay(b.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if startMin < be && bs < endMin {
			return true
		}
	}
	return false
}

// ===================== Exceptions =====================

func (g *SlotGenerator) applyExceptions(profile *entity.AvailabilityProfile, slots []entity.Slot, from, to time.Time) []entity.Slot {
	loc := profile.Location()

	for _, ex := range profile.Exceptions.V {
		day, err := time.ParseInLocation("2006-01-02", ex.Date, loc)
		if err != nil {
			logger.Warn("SlotGenerator:SkippingException", "profile_id", profile.ID, "exception_id", ex.ID, "reason", "invalid date")
			continue
		}
		exStart, exEnd := exceptionRange(day, ex)
		if !exStart.Before(to) || !exEnd.After(from) {
			continue
		}

		switch ex.Type {
		case entity.ExceptionUnavailable:
			for i := range slots {
				if slots[i].Intersects(exStart, exEnd) {
					slots[i].Status = entity.SlotBlocked
				}
			}
		case entity.ExceptionLimited:
			cap := ex.MaxBookings
			if cap < 1 {
				cap = 1
			}
			for i := range slots {
				if slots[i].Intersects(exStart, exEnd) && slots[i].MaxBookings > cap {
					slots[i].MaxBookings = cap
					if slots[i].CurrentBookings >= slots[i].MaxBookings && slots[i].Status == entity.SlotAvailable {
						slots[i].Status = entity.SlotBooked
					}
				}
			}
		case entity.ExceptionAvailable:
			// Synthesized slots ignore working hours and patterns.
			cap := ex.MaxBookings
			if cap < 1 {
				cap = 1
			}
			duration := time.Duration(g.SlotDurationMinutes) * time.Minute
			for t := exStart; !t.Add(duration).After(exEnd); t = t.Add(duration) {
				if t.Before(from) {
					continue
				}
				slots = append(slots, entity.Slot{
					BaseEntity:   coreEntity.BaseEntity{ID: uuid.New()},
					ProfileID:    profile.ID,
					UserID:       profile.UserID,
					StartTime:    t,
					EndTime:      t.Add(duration),
					Status:       entity.SlotAvailable,
					Source:       entity.SourceException,
					MaxBookings:  cap,
					BookingIDs:   coreEntity.NewJSONDoc([]string{}),
					MeetingTypes: coreEntity.NewJSONDoc([]string{}),
				})
			}
		}
	}
	return slots
}

func exceptionRange(day time.Time, ex entity.Exception) (time.Time, time.Time) {
	start, end := day, day.AddDate(0, 0, 1)
	if ex.StartTime != "" && ex.EndTime != "" {
		s, err1 := entity.MinuteOfDay(ex.StartTime)
		e, err2 := entity.MinuteOfDay(ex.EndTime)
		if err1 == nil && err2 == nil && s < e {
			start = day.Add(time.Duration(s) * time.Minute)
			end = day.Add(time.Duration(e) * time.Minute)
		}
	}
	return start, end
}

// ===================== Overrides =====================

func (g *SlotGenerator) applyOverrides(profile *entity.AvailabilityProfile, slots []entity.Slot, from, to time.Time) []entity.Slot {
	for _, ov := range profile.Overrides.V {
		if !ov.StartTime.Before(ov.EndTime) {
			logger.Warn("SlotGenerator:SkippingOverride", "profile_id", profile.ID, "override_id", ov.ID, "reason", "inverted range")
			continue
		}
		if !ov.StartTime.Before(to) || !ov.EndTime.After(from) {
			continue
		}

		// The override is authoritative for its interval: intersecting slots
		// are dropped before anything new is created.
		kept := slots[:0]
		for _, s := range slots {
			if !s.Intersects(ov.StartTime, ov.EndTime) {
				kept = append(kept, s)
			}
		}
		slots = kept

		if ov.Type != entity.OverrideAvailable {
			continue
		}

		cap := ov.MaxBookings
		if cap < 1 {
			cap = 1
		}
		bookingIDs := ov.BookingIDs
		if bookingIDs == nil {
			bookingIDs = []string{}
		}
		status := entity.SlotAvailable
		if len(bookingIDs) >= cap {
			status = entity.SlotBooked
		}

		slots = append(slots, entity.Slot{
			BaseEntity:      coreEntity.BaseEntity{ID: uuid.New()},
			ProfileID:       profile.ID,
			UserID:          profile.UserID,
			StartTime:       ov.StartTime,
			EndTime:         ov.EndTime,
			Status:          status,
			Source:          entity.SourceOverride,
			MaxBookings:     cap,
			CurrentBookings: len(bookingIDs),
			BookingIDs:      coreEntity.NewJSONDoc(bookingIDs),
			MeetingTypes:    coreEntity.NewJSONDoc([]string{}),
		})
	}
	return slots
}

// ===================== helpers =====================

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// biweeklyWeek reports whether day falls on an even week counted from the
// window start week. Documented rule: biweekly patterns fire on the window's
// first week and every other week after it.
func biweeklyWeek(windowStart, day time.Time) bool {
	weeks := int(day.Sub(startOfWeek(windowStart)).Hours() / (24 * 7))
	return weeks%2 == 0
}

func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday-based
	return d.AddDate(0, 0, -offset)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
