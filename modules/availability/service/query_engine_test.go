package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/cache"
	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/errors"
	"go-meeting-core/modules/availability/dto"
	"go-meeting-core/modules/availability/entity"
	"go-meeting-core/modules/availability/repository"
)

type stubBusyProvider struct {
	intervals [][2]time.Time
}

func (p *stubBusyProvider) BusyIntervals(_ context.Context, _ uuid.UUID, _, _ time.Time) ([][2]time.Time, error) {
	return p.intervals, nil
}

func seedUserSlots(t *testing.T, repo *repository.MemorySlotRepository, userID uuid.UUID, starts []time.Time, durationMin int) []uuid.UUID {
	t.Helper()
	profileID := uuid.New()
	slots := make([]entity.Slot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, entity.Slot{
			BaseEntity:   coreEntity.BaseEntity{ID: uuid.New()},
			ProfileID:    profileID,
			UserID:       userID,
			StartTime:    start,
			EndTime:      start.Add(time.Duration(durationMin) * time.Minute),
			Status:       entity.SlotAvailable,
			Source:       entity.SourcePattern,
			MaxBookings:  1,
			BookingIDs:   coreEntity.NewJSONDoc([]string{}),
			MeetingTypes: coreEntity.NewJSONDoc([]string{}),
		})
	}
	if err := repo.InsertBatch(context.Background(), slots); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	ids := make([]uuid.UUID, len(slots))
	for i := range slots {
		ids[i] = slots[i].ID
	}
	return ids
}

func baseRequest(userID uuid.UUID, durationMin int) *dto.QueryRequest {
	return &dto.QueryRequest{
		UserIDs:         []string{userID.String()},
		Start:           refTime,
		End:             refTime.AddDate(0, 0, 7),
		DurationMinutes: durationMin,
	}
}

func TestQuery_DurationFilterExcludesShortSlots(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, nil, nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	seedUserSlots(t, repo, userID, []time.Time{
		refTime.Add(9 * time.Hour),
		refTime.Add(10 * time.Hour),
	}, 30)

	// A 60-minute meeting cannot fit a 30-minute slot without merging.
	resp, appErr := engine.Query(context.Background(), baseRequest(userID, 60))
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}
	if len(resp.Users) != 1 || len(resp.Users[0].Slots) != 0 {
		t.Fatalf("expected zero matching slots, got %d", len(resp.Users[0].Slots))
	}

	resp, appErr = engine.Query(context.Background(), baseRequest(userID, 30))
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}
	if len(resp.Users[0].Slots) != 2 {
		t.Fatalf("expected both slots at 30 minutes, got %d", len(resp.Users[0].Slots))
	}
}

func TestQuery_MergeConsecutiveIsPresentationOnly(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, nil, nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	ids := seedUserSlots(t, repo, userID, []time.Time{
		refTime.Add(9 * time.Hour),
		refTime.Add(9*time.Hour + 30*time.Minute),
		refTime.Add(14 * time.Hour), // detached, must not merge
	}, 30)

	req := baseRequest(userID, 30)
	req.Preferences.GroupConsecutive = true
	resp, appErr := engine.Query(context.Background(), req)
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}

	slots := resp.Users[0].Slots
	if len(slots) != 2 {
		t.Fatalf("expected 2 entries after merging, got %d", len(slots))
	}
	merged := slots[0]
	if merged.Source != string(entity.SourceManualMerge) {
		t.Fatalf("merged entry source = %s", merged.Source)
	}
	if !merged.StartTime.Equal(refTime.Add(9*time.Hour)) || !merged.EndTime.Equal(refTime.Add(10*time.Hour)) {
		t.Fatalf("merged span mismatch: %s - %s", merged.StartTime, merged.EndTime)
	}
	if merged.MaxBookings != 2 {
		t.Fatalf("merged capacity should sum, got %d", merged.MaxBookings)
	}

	// Stored slots keep their original boundaries.
	for _, id := range ids {
		stored, _ := repo.GetByID(context.Background(), id)
		if stored == nil || stored.Duration() != 30*time.Minute {
			t.Fatalf("merge mutated stored slot %s", id)
		}
	}
}

func TestQuery_NonAvailableSlotsSurfaceAsConflicts(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, nil, nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	ids := seedUserSlots(t, repo, userID, []time.Time{
		refTime.Add(9 * time.Hour),
		refTime.Add(10 * time.Hour),
	}, 30)

	blocked, _ := repo.GetByID(context.Background(), ids[1])
	blocked.Status = entity.SlotBlocked
	if err := repo.Update(context.Background(), blocked); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp, appErr := engine.Query(context.Background(), baseRequest(userID, 30))
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}
	user := resp.Users[0]
	if len(user.Slots) != 1 {
		t.Fatalf("expected 1 available slot, got %d", len(user.Slots))
	}
	if len(user.Conflicts) != 1 || user.Conflicts[0].Reason != "blocked by exception" {
		t.Fatalf("expected one conflict with a blocked reason, got %+v", user.Conflicts)
	}
}

func TestQuery_BusyOverlayMarksConflicts(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	busy := &stubBusyProvider{intervals: [][2]time.Time{{
		refTime.Add(9 * time.Hour), refTime.Add(9*time.Hour + 30*time.Minute),
	}}}
	engine := NewQueryEngine(repo, nil, busy, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	seedUserSlots(t, repo, userID, []time.Time{
		refTime.Add(9 * time.Hour),
		refTime.Add(10 * time.Hour),
	}, 30)

	req := baseRequest(userID, 30)
	req.Preferences.ConsultCalendars = true
	resp, appErr := engine.Query(context.Background(), req)
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}
	user := resp.Users[0]
	if len(user.Slots) != 1 || !user.Slots[0].StartTime.Equal(refTime.Add(10*time.Hour)) {
		t.Fatalf("busy slot should be filtered, got %+v", user.Slots)
	}
	if len(user.Conflicts) != 1 || user.Conflicts[0].Reason != "busy in external calendar" {
		t.Fatalf("expected a calendar-busy conflict, got %+v", user.Conflicts)
	}
}

func TestQuery_TimeAndDayPreferences(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, nil, nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	seedUserSlots(t, repo, userID, []time.Time{
		refTime.Add(9 * time.Hour),                     // Monday 09:00
		refTime.Add(15 * time.Hour),                    // Monday 15:00
		refTime.AddDate(0, 0, 1).Add(10 * time.Hour),   // Tuesday 10:00
	}, 30)

	req := baseRequest(userID, 30)
	req.Preferences.TimeOfDayStart = "08:00"
	req.Preferences.TimeOfDayEnd = "12:00"
	req.Preferences.DaysOfWeek = []string{"monday"}
	resp, appErr := engine.Query(context.Background(), req)
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}
	slots := resp.Users[0].Slots
	if len(slots) != 1 || !slots[0].StartTime.Equal(refTime.Add(9*time.Hour)) {
		t.Fatalf("expected only Monday morning slot, got %+v", slots)
	}
}

func TestQuery_CacheHitOnRepeat(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, cache.NewMemoryCache(64, time.Minute), nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	seedUserSlots(t, repo, userID, []time.Time{refTime.Add(9 * time.Hour)}, 30)

	first, appErr := engine.Query(context.Background(), baseRequest(userID, 30))
	if appErr != nil {
		t.Fatalf("first Query: %v", appErr)
	}
	if first.CacheHit {
		t.Fatal("first query must not be a cache hit")
	}

	second, appErr := engine.Query(context.Background(), baseRequest(userID, 30))
	if appErr != nil {
		t.Fatalf("second Query: %v", appErr)
	}
	if !second.CacheHit {
		t.Fatal("identical repeat query should hit the cache")
	}
	if len(second.Users) != 1 || len(second.Users[0].Slots) != 1 {
		t.Fatalf("cached payload mismatch: %+v", second.Users)
	}

	// A different duration is a different key.
	other, appErr := engine.Query(context.Background(), baseRequest(userID, 15))
	if appErr != nil {
		t.Fatalf("third Query: %v", appErr)
	}
	if other.CacheHit {
		t.Fatal("changed duration must miss the cache")
	}
}

func TestQuery_CachedResultHonorsGrouping(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, cache.NewMemoryCache(64, time.Minute), nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	userID := uuid.New()
	seedUserSlots(t, repo, userID, []time.Time{
		refTime.Add(9 * time.Hour),
		refTime.Add(9*time.Hour + 30*time.Minute),
	}, 30)

	grouped := baseRequest(userID, 30)
	grouped.Preferences.GroupConsecutive = true
	first, appErr := engine.Query(context.Background(), grouped)
	if appErr != nil {
		t.Fatalf("grouped Query: %v", appErr)
	}
	if len(first.Users[0].Slots) != 1 {
		t.Fatalf("expected 1 merged slot, got %d", len(first.Users[0].Slots))
	}

	// Same scope without grouping must share the cache entry yet come back
	// unmerged.
	plain := baseRequest(userID, 30)
	second, appErr := engine.Query(context.Background(), plain)
	if appErr != nil {
		t.Fatalf("plain Query: %v", appErr)
	}
	if !second.CacheHit {
		t.Fatal("same scope should hit the cache")
	}
	if len(second.Users[0].Slots) != 2 {
		t.Fatalf("cached result must not carry the merge, got %d slots", len(second.Users[0].Slots))
	}
	if second.Users[0].TotalAvailable != 2 {
		t.Fatalf("available count must follow the unmerged list, got %d", second.Users[0].TotalAvailable)
	}

	// And grouping on a cache hit still merges.
	third, appErr := engine.Query(context.Background(), grouped)
	if appErr != nil {
		t.Fatalf("grouped repeat Query: %v", appErr)
	}
	if !third.CacheHit || len(third.Users[0].Slots) != 1 {
		t.Fatalf("cache hit with grouping should merge, got hit=%t slots=%d", third.CacheHit, len(third.Users[0].Slots))
	}
}

func TestQuery_RankingOrders(t *testing.T) {
	repo := repository.NewMemorySlotRepository()
	engine := NewQueryEngine(repo, nil, nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	rich := uuid.New()
	poor := uuid.New()
	seedUserSlots(t, repo, rich, []time.Time{
		refTime.Add(9 * time.Hour),
		refTime.Add(10 * time.Hour),
		refTime.Add(11 * time.Hour),
	}, 30)
	seedUserSlots(t, repo, poor, []time.Time{refTime.Add(9 * time.Hour)}, 30)

	req := baseRequest(poor, 30)
	req.UserIDs = []string{poor.String(), rich.String()}
	req.Preferences.Optimize = true
	resp, appErr := engine.Query(context.Background(), req)
	if appErr != nil {
		t.Fatalf("Query: %v", appErr)
	}
	if resp.Users[0].UserID != rich.String() {
		t.Fatalf("optimize should rank the user with more availability first, got %s", resp.Users[0].UserID)
	}
}

func TestQuery_Validation(t *testing.T) {
	engine := NewQueryEngine(repository.NewMemorySlotRepository(), nil, nil, time.Minute)
	engine.Now = func() time.Time { return refTime }

	cases := []struct {
		name string
		req  *dto.QueryRequest
	}{
		{"no users", &dto.QueryRequest{Start: refTime, End: refTime.Add(time.Hour), DurationMinutes: 30}},
		{"inverted window", &dto.QueryRequest{UserIDs: []string{uuid.NewString()}, Start: refTime.Add(time.Hour), End: refTime, DurationMinutes: 30}},
		{"zero duration", &dto.QueryRequest{UserIDs: []string{uuid.NewString()}, Start: refTime, End: refTime.Add(time.Hour)}},
		{"bad user id", &dto.QueryRequest{UserIDs: []string{"not-a-uuid"}, Start: refTime, End: refTime.Add(time.Hour), DurationMinutes: 30}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, appErr := engine.Query(context.Background(), tc.req)
			if appErr == nil || appErr.Code != errors.ErrInvalidInput {
				t.Fatalf("expected invalid input, got %+v", appErr)
			}
		})
	}
}
