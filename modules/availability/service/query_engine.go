package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/cache"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/availability/dto"
	"go-meeting-core/modules/availability/entity"
	"go-meeting-core/modules/availability/repository"
)

// BusyProvider supplies externally sourced busy intervals (calendar events)
// that the query engine overlays as conflicts.
type BusyProvider interface {
	BusyIntervals(ctx context.Context, userID uuid.UUID, from, to time.Time) ([][2]time.Time, error)
}

// QueryEngine answers availability queries over generated slots. Results are
// memoized with a time-bounded cache; merging for presentation never touches
// the stored slots.
type QueryEngine struct {
	slotRepo repository.SlotRepositoryInterface
	cache    cache.Cache
	busy     BusyProvider

	CacheTTL time.Duration
	Now      func() time.Time
}

func NewQueryEngine(slotRepo repository.SlotRepositoryInterface, c cache.Cache, busy BusyProvider, cacheTTL time.Duration) *QueryEngine {
	return &QueryEngine{
		slotRepo: slotRepo,
		cache:    c,
		busy:     busy,
		CacheTTL: cacheTTL,
		Now:      time.Now,
	}
}

func (e *QueryEngine) Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, *errors.AppError) {
	if len(req.UserIDs) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "At least one user id is required", nil)
	}
	if !req.End.After(req.Start) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Query window end must be after start", nil)
	}
	if req.DurationMinutes <= 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Duration must be positive", nil)
	}

	key := e.cacheKey(req)
	if e.cache != nil {
		if raw, ok := e.cache.Get(ctx, key); ok {
			var cached dto.QueryResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.CacheHit = true
				e.present(&cached, req.Preferences)
				return &cached, nil
			}
		}
	}

	resp := &dto.QueryResponse{GeneratedAt: e.Now()}
	for _, raw := range req.UserIDs {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Invalid user id %q", raw), err)
		}
		result, appErr := e.queryUser(ctx, userID, req)
		if appErr != nil {
			return nil, appErr
		}
		resp.Users = append(resp.Users, *result)
	}

	// Cache the content result before any presentation shaping so one stored
	// computation serves every merge/ranking variant of the same scope.
	if e.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			e.cache.Set(ctx, key, raw, e.CacheTTL)
		}
	}

	e.present(resp, req.Preferences)
	return resp, nil
}

// present applies the per-request shaping preferences to a content result:
// consecutive-slot merging, available counts, and user ranking. It runs after
// the cache fetch, never before the cache write.
func (e *QueryEngine) present(resp *dto.QueryResponse, prefs dto.QueryPreferences) {
	for i := range resp.Users {
		user := &resp.Users[i]
		if prefs.GroupConsecutive {
			user.Slots = mergeConsecutive(user.Slots)
		}
		user.TotalAvailable = 0
		for _, s := range user.Slots {
			if s.Status == string(entity.SlotAvailable) {
				user.TotalAvailable++
			}
		}
	}
	e.rank(resp.Users, prefs)
}

func (e *QueryEngine) queryUser(ctx context.Context, userID uuid.UUID, req *dto.QueryRequest) (*dto.UserAvailability, *errors.AppError) {
	slots, err := e.slotRepo.ListByUser(ctx, userID, req.Start, req.End)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load slots", err)
	}

	result := &dto.UserAvailability{UserID: userID.String()}
	duration := time.Duration(req.DurationMinutes) * time.Minute

	var busyIntervals [][2]time.Time
	if req.Preferences.ConsultCalendars && e.busy != nil {
		intervals, busyErr := e.busy.BusyIntervals(ctx, userID, req.Start, req.End)
		if busyErr != nil {
			logger.Warn("QueryEngine:BusyLookupFailed", "user_id", userID, "error", busyErr)
		} else {
			busyIntervals = intervals
		}
	}

	var filtered []entity.Slot
	for _, s := range slots {
		if s.Status != entity.SlotAvailable {
			result.Conflicts = append(result.Conflicts, dto.ConflictView{
				SlotID:    s.ID.String(),
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
				Reason:    conflictReason(s.Status),
			})
			if !req.Preferences.IncludeUnavailable {
				continue
			}
		}
		if s.Duration() < duration {
			continue
		}
		if !s.AllowsMeetingType(req.MeetingType) {
			continue
		}
		if !matchesTimeOfDay(s, req.Preferences) || !matchesDayOfWeek(s, req.Preferences) {
			continue
		}
		if overlapsBusy(s, busyIntervals) {
			result.Conflicts = append(result.Conflicts, dto.ConflictView{
				SlotID:    s.ID.String(),
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
				Reason:    "busy in external calendar",
			})
			continue
		}
		result.BookingLoad += s.CurrentBookings
		filtered = append(filtered, s)
	}

	for i := range filtered {
		result.Slots = append(result.Slots, dto.ToSlotView(&filtered[i]))
	}

	next, err := e.slotRepo.NextAvailable(ctx, userID, req.End)
	if err == nil && next != nil {
		view := dto.ToSlotView(next)
		result.NextAvailable = &view
	}

	return result, nil
}

// mergeConsecutive merges adjacent slot views whose gap fits inside their
// buffers. The merge is presentation-only: merged entries take source
// manual_merge and the underlying slots are never written back.
func mergeConsecutive(slots []dto.SlotView) []dto.SlotView {
	if len(slots) < 2 {
		return slots
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })

	merged := []dto.SlotView{slots[0]}
	for _, next := range slots[1:] {
		last := &merged[len(merged)-1]
		allowedGap := time.Duration(last.BufferAfter+next.BufferBefore) * time.Minute
		gap := next.StartTime.Sub(last.EndTime)
		if gap >= 0 && gap <= allowedGap {
			last.EndTime = next.EndTime
			last.Source = string(entity.SourceManualMerge)
			last.MaxBookings += next.MaxBookings
			last.CurrentBookings += next.CurrentBookings
			last.BookingIDs = unionIDs(last.BookingIDs, next.BookingIDs)
			last.BufferAfter = next.BufferAfter
		} else {
			merged = append(merged, next)
		}
	}
	return merged
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string{}, a...), b...) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// rank orders users by descending available-slot count when optimization is
// on; load balancing re-sorts by ascending booking load.
func (e *QueryEngine) rank(users []dto.UserAvailability, prefs dto.QueryPreferences) {
	if prefs.Optimize {
		sort.SliceStable(users, func(i, j int) bool {
			return users[i].TotalAvailable > users[j].TotalAvailable
		})
	}
	if prefs.LoadBalance {
		sort.SliceStable(users, func(i, j int) bool {
			return users[i].BookingLoad < users[j].BookingLoad
		})
	}
}

// cacheKey covers everything that changes the cached content: the query scope
// plus the filtering preferences. Presentation preferences (grouping, ranking)
// are applied after the fetch and stay out of the key.
func (e *QueryEngine) cacheKey(req *dto.QueryRequest) string {
	users := append([]string{}, req.UserIDs...)
	sort.Strings(users)
	days := append([]string{}, req.Preferences.DaysOfWeek...)
	sort.Strings(days)
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%d|%s|%s-%s|%s|%t|%t",
		strings.Join(users, ","),
		req.Start.Unix(), req.End.Unix(),
		req.DurationMinutes, req.MeetingType,
		req.Preferences.TimeOfDayStart, req.Preferences.TimeOfDayEnd,
		strings.Join(days, ","),
		req.Preferences.IncludeUnavailable, req.Preferences.ConsultCalendars)))
	return "availability:query:" + hex.EncodeToString(h[:16])
}

func conflictReason(status entity.SlotStatus) string {
	switch status {
	case entity.SlotBooked:
		return "fully booked"
	case entity.SlotBlocked:
		return "blocked by exception"
	case entity.SlotTentative:
		return "tentative hold"
	default:
		return string(status)
	}
}

func matchesTimeOfDay(s entity.Slot, prefs dto.QueryPreferences) bool {
	if prefs.TimeOfDayStart == "" || prefs.TimeOfDayEnd == "" {
		return true
	}
	lo, err1 := entity.MinuteOfDay(prefs.TimeOfDayStart)
	hi, err2 := entity.MinuteOfDay(prefs.TimeOfDayEnd)
	if err1 != nil || err2 != nil {
		return true
	}
	start := s.StartTime.Hour()*60 + s.StartTime.Minute()
	return start >= lo && start < hi
}

func matchesDayOfWeek(s entity.Slot, prefs dto.QueryPreferences) bool {
	if len(prefs.DaysOfWeek) == 0 {
		return true
	}
	day := strings.ToLower(s.StartTime.Weekday().String())
	for _, d := range prefs.DaysOfWeek {
		if strings.ToLower(d) == day {
			return true
		}
	}
	return false
}

func overlapsBusy(s entity.Slot, busy [][2]time.Time) bool {
	for _, b := range busy {
		if s.StartTime.Before(b[1]) && b[0].Before(s.EndTime) {
			return true
		}
	}
	return false
}
