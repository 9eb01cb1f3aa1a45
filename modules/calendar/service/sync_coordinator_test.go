package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/constants"
	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/crypto"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/signal"
	"go-meeting-core/core/tasks"
	bookingEntity "go-meeting-core/modules/booking/entity"
	"go-meeting-core/modules/calendar/dto"
	"go-meeting-core/modules/calendar/entity"
	"go-meeting-core/modules/calendar/provider"
	"go-meeting-core/modules/calendar/repository"
)

var syncRef = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

const testCipherKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// fakeProvider scripts remote behavior for the coordinator.
type fakeProvider struct {
	mu           sync.Mutex
	changes      []provider.RemoteEvent
	nextCursor   string
	seenCursor   string
	failLists   int
	failCreates int
	created     []string
	updated     []string
	deleted     []string
	refreshed   int
}

func (p *fakeProvider) Descriptor() entity.ProviderDescriptor {
	return entity.ProviderDescriptor{Type: entity.ProviderGoogle, Name: "Fake", SupportsIncremental: true}
}

func (p *fakeProvider) Refresh(_ context.Context, _ string) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed++
	return "fresh-token", syncRef.Add(time.Hour), nil
}

func (p *fakeProvider) CreateRemoteEvent(_ context.Context, _ string, event *entity.CalendarEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreates > 0 {
		p.failCreates--
		return "", errors.NewAppError(errors.ErrSyncFailed, "remote unavailable", nil)
	}
	id := "ext-" + uuid.NewString()[:8]
	p.created = append(p.created, event.Title)
	return id, nil
}

func (p *fakeProvider) UpdateRemoteEvent(_ context.Context, _ string, event *entity.CalendarEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, event.ExternalID)
	return nil
}

func (p *fakeProvider) DeleteRemoteEvent(_ context.Context, _ string, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, externalID)
	return nil
}

func (p *fakeProvider) ListChangesSince(_ context.Context, _ string, cursor string) ([]provider.RemoteEvent, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seenCursor = cursor
	if p.failLists > 0 {
		p.failLists--
		return nil, "", errors.NewAppError(errors.ErrSyncFailed, "remote unavailable", nil)
	}
	return p.changes, p.nextCursor, nil
}

type coordinatorFixture struct {
	coordinator *SyncCoordinator
	conns       *repository.MemoryConnectionRepository
	events      *repository.MemoryEventRepository
	syncs       *repository.MemorySyncRepository
	provider    *fakeProvider
	scheduler   *tasks.InlineScheduler
	signals     *signal.Registry
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	cipher, err := crypto.NewTokenCipher(testCipherKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	fake := &fakeProvider{}
	registry := provider.NewRegistry()
	registry.Register(fake)

	f := &coordinatorFixture{
		conns:     repository.NewMemoryConnectionRepository(),
		events:    repository.NewMemoryEventRepository(),
		syncs:     repository.NewMemorySyncRepository(),
		provider:  fake,
		scheduler: tasks.NewInlineScheduler(),
		signals:   signal.NewRegistry(),
	}
	f.coordinator = NewSyncCoordinator(SyncCoordinatorDeps{
		ConnRepo:  f.conns,
		EventRepo: f.events,
		SyncRepo:  f.syncs,
		Providers: registry,
		Cipher:    cipher,
		Signals:   f.signals,
		Scheduler: f.scheduler,
	})
	f.coordinator.Now = func() time.Time { return syncRef }
	f.coordinator.RetryDelay = time.Minute
	f.scheduler.Handle(constants.TaskRunSync, f.coordinator.HandleRunSyncTask)
	return f
}

func (f *coordinatorFixture) connect(t *testing.T, userID uuid.UUID, email string) uuid.UUID {
	t.Helper()
	resp, appErr := f.coordinator.CreateConnection(context.Background(), userID, &dto.CreateConnectionRequest{
		Provider:       string(entity.ProviderGoogle),
		CalendarEmail:  email,
		AccessToken:    "access-plain",
		RefreshToken:   "refresh-plain",
		TokenExpiresAt: syncRef.Add(time.Hour),
	})
	if appErr != nil {
		t.Fatalf("CreateConnection: %v", appErr)
	}
	return uuid.MustParse(resp.ID)
}

func TestCoordinator_CreateConnectionEncryptsTokens(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()

	connID := f.connect(t, userID, "host@example.com")

	conn, err := f.conns.GetByID(context.Background(), connID)
	if err != nil || conn == nil {
		t.Fatalf("stored connection missing: %v", err)
	}
	if conn.AccessToken == "access-plain" || conn.RefreshToken == "refresh-plain" {
		t.Fatalf("tokens stored in the clear")
	}
	if conn.Status != entity.ConnectionConnected {
		t.Fatalf("status = %s, want connected", conn.Status)
	}
	if conn.NextSyncAt == nil || !conn.NextSyncAt.After(syncRef) {
		t.Fatalf("next sync not scheduled: %v", conn.NextSyncAt)
	}
	if !conn.Settings.V.Enabled {
		t.Fatalf("sync should default to enabled")
	}
}

func TestCoordinator_ConnectionCap(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.coordinator.MaxConnectionsPerUser = 2
	userID := uuid.New()

	f.connect(t, userID, "a@example.com")
	f.connect(t, userID, "b@example.com")

	_, appErr := f.coordinator.CreateConnection(context.Background(), userID, &dto.CreateConnectionRequest{
		Provider:       string(entity.ProviderGoogle),
		CalendarEmail:  "c@example.com",
		TokenExpiresAt: syncRef.Add(time.Hour),
	})
	if appErr == nil || appErr.Code != errors.ErrConflict {
		t.Fatalf("expected conflict at cap, got %v", appErr)
	}
}

func TestCoordinator_DomainRules(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.coordinator.AllowedDomains = []string{"corp.example"}
	f.coordinator.BlockedDomains = []string{"rival.example"}
	userID := uuid.New()

	cases := []struct {
		email string
		code  errors.ErrorCode
		ok    bool
	}{
		{email: "ok@corp.example", ok: true},
		{email: "no@rival.example", code: errors.ErrForbidden},
		{email: "no@elsewhere.example", code: errors.ErrForbidden},
		{email: "not-an-email", code: errors.ErrInvalidInput},
	}
	for _, tc := range cases {
		_, appErr := f.coordinator.CreateConnection(context.Background(), userID, &dto.CreateConnectionRequest{
			Provider:       string(entity.ProviderGoogle),
			CalendarEmail:  tc.email,
			TokenExpiresAt: syncRef.Add(time.Hour),
		})
		if tc.ok {
			if appErr != nil {
				t.Fatalf("%s: unexpected error %v", tc.email, appErr)
			}
			continue
		}
		if appErr == nil || appErr.Code != tc.code {
			t.Fatalf("%s: got %v, want code %s", tc.email, appErr, tc.code)
		}
	}
}

func TestCoordinator_RunSyncPullAppliesChanges(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	f.provider.changes = []provider.RemoteEvent{
		{ID: "r1", Title: "Standup", Start: syncRef.Add(time.Hour), End: syncRef.Add(90 * time.Minute), ShowAs: entity.ShowBusy},
		{ID: "r2", Title: "OOO", Start: syncRef.Add(24 * time.Hour), End: syncRef.Add(32 * time.Hour), ShowAs: entity.ShowOutOfOffice},
	}
	f.provider.nextCursor = "cursor-1"

	job, appErr := f.coordinator.TriggerSync(context.Background(), connID, userID, entity.SyncIncremental)
	if appErr != nil {
		t.Fatalf("TriggerSync: %v", appErr)
	}
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	done, err := f.syncs.GetByID(context.Background(), uuid.MustParse(job.ID))
	if err != nil || done == nil {
		t.Fatalf("sync job missing: %v", err)
	}
	if done.Status != entity.SyncCompleted || done.Progress != 100 {
		t.Fatalf("job = %s/%d, want completed/100", done.Status, done.Progress)
	}
	if done.Created != 2 || done.Processed != 2 {
		t.Fatalf("counters created=%d processed=%d, want 2/2", done.Created, done.Processed)
	}

	conn, _ := f.conns.GetByID(context.Background(), connID)
	if conn.Cursor != "cursor-1" {
		t.Fatalf("cursor = %q, want cursor-1", conn.Cursor)
	}
	if conn.LastSyncAt == nil {
		t.Fatalf("last sync not recorded")
	}

	events, _ := f.events.ListByConnection(context.Background(), connID)
	if len(events) != 2 {
		t.Fatalf("stored %d events, want 2", len(events))
	}
}

func TestCoordinator_RunSyncDeleteAndUpdate(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	seed := &entity.CalendarEvent{
		ConnectionID: connID,
		UserID:       userID,
		ExternalID:   "r1",
		Title:        "Old title",
		StartTime:    syncRef.Add(time.Hour),
		EndTime:      syncRef.Add(2 * time.Hour),
		Attendees:    coreEntity.NewJSONDoc([]string{}),
		ShowAs:       entity.ShowBusy,
		SyncStatus:   entity.EventSynced,
	}
	if _, err := f.events.Create(context.Background(), seed); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	gone := &entity.CalendarEvent{
		ConnectionID: connID,
		UserID:       userID,
		ExternalID:   "r2",
		Title:        "Cancelled remotely",
		StartTime:    syncRef.Add(3 * time.Hour),
		EndTime:      syncRef.Add(4 * time.Hour),
		Attendees:    coreEntity.NewJSONDoc([]string{}),
		ShowAs:       entity.ShowBusy,
		SyncStatus:   entity.EventSynced,
	}
	if _, err := f.events.Create(context.Background(), gone); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	f.provider.changes = []provider.RemoteEvent{
		{ID: "r1", Title: "New title", Start: seed.StartTime, End: seed.EndTime, ShowAs: entity.ShowBusy},
		{ID: "r2", Deleted: true},
	}

	job, _ := f.coordinator.TriggerSync(context.Background(), connID, userID, entity.SyncIncremental)
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	done, _ := f.syncs.GetByID(context.Background(), uuid.MustParse(job.ID))
	if done.Updated != 1 || done.Deleted != 1 {
		t.Fatalf("counters updated=%d deleted=%d, want 1/1", done.Updated, done.Deleted)
	}
	updated, _ := f.events.GetByExternalID(context.Background(), connID, "r1")
	if updated == nil || updated.Title != "New title" {
		t.Fatalf("remote update not applied")
	}
	if removed, _ := f.events.GetByExternalID(context.Background(), connID, "r2"); removed != nil {
		t.Fatalf("remote delete not applied")
	}
}

func TestCoordinator_SyncRetriesThenFails(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	var syncErrors int
	f.signals.Subscribe("sync.error", func(signal.Event) { syncErrors++ })

	// Default settings allow 2 retries; fail every attempt.
	f.provider.failLists = 10

	job, _ := f.coordinator.TriggerSync(context.Background(), connID, userID, entity.SyncIncremental)
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	done, _ := f.syncs.GetByID(context.Background(), uuid.MustParse(job.ID))
	if done.Status != entity.SyncFailed {
		t.Fatalf("job status = %s, want failed", done.Status)
	}
	if done.Attempt != 3 {
		t.Fatalf("attempts = %d, want 3", done.Attempt)
	}
	if len(done.Errors.V) != 3 {
		t.Fatalf("recorded %d errors, want 3", len(done.Errors.V))
	}
	if syncErrors != 3 {
		t.Fatalf("sync.error published %d times, want 3", syncErrors)
	}

	conn, _ := f.conns.GetByID(context.Background(), connID)
	if conn.Status != entity.ConnectionError {
		t.Fatalf("connection status = %s, want error", conn.Status)
	}
	if conn.NextSyncAt == nil || !conn.NextSyncAt.After(syncRef) {
		t.Fatalf("failed connection should stay scheduled")
	}
}

func TestCoordinator_TransientFailureRecovers(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	f.provider.failLists = 1
	f.provider.changes = []provider.RemoteEvent{
		{ID: "r1", Title: "Recovered", Start: syncRef.Add(time.Hour), End: syncRef.Add(2 * time.Hour), ShowAs: entity.ShowBusy},
	}

	job, _ := f.coordinator.TriggerSync(context.Background(), connID, userID, entity.SyncIncremental)
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	done, _ := f.syncs.GetByID(context.Background(), uuid.MustParse(job.ID))
	if done.Status != entity.SyncCompleted {
		t.Fatalf("job status = %s, want completed", done.Status)
	}
	if done.Attempt != 2 {
		t.Fatalf("attempts = %d, want 2", done.Attempt)
	}
	if done.Created != 1 {
		t.Fatalf("created = %d, want 1", done.Created)
	}
}

func TestCoordinator_ScanEnqueuesDueConnections(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	due := f.connect(t, userID, "due@example.com")
	notDue := f.connect(t, userID, "later@example.com")

	past := syncRef.Add(-time.Minute)
	conn, _ := f.conns.GetByID(context.Background(), due)
	conn.NextSyncAt = &past
	if err := f.conns.Update(context.Background(), conn); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := f.coordinator.HandleSyncScanTask(context.Background(), nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if active, _ := f.syncs.GetActiveByConnection(context.Background(), notDue); active != nil {
		t.Fatalf("not-due connection should have no job")
	}
	refreshed, _ := f.conns.GetByID(context.Background(), due)
	if refreshed.LastSyncAt == nil {
		t.Fatalf("due connection should have synced")
	}
	if f.provider.seenCursor != "" {
		t.Fatalf("first incremental pass should start from empty cursor, got %q", f.provider.seenCursor)
	}
}

func TestCoordinator_DeleteConnectionRemovesMirrors(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	bookingID := uuid.New()
	mirrored := &entity.CalendarEvent{
		ConnectionID: connID,
		UserID:       userID,
		BookingID:    &bookingID,
		ExternalID:   "ext-keep",
		Title:        "Mirrored booking",
		StartTime:    syncRef.Add(time.Hour),
		EndTime:      syncRef.Add(2 * time.Hour),
		Attendees:    coreEntity.NewJSONDoc([]string{}),
		ShowAs:       entity.ShowBusy,
		SyncStatus:   entity.EventSynced,
	}
	if _, err := f.events.Create(context.Background(), mirrored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if appErr := f.coordinator.DeleteConnection(context.Background(), connID, userID); appErr != nil {
		t.Fatalf("DeleteConnection: %v", appErr)
	}

	if conn, _ := f.conns.GetByID(context.Background(), connID); conn != nil {
		t.Fatalf("connection still present")
	}
	if events, _ := f.events.ListByConnection(context.Background(), connID); len(events) != 0 {
		t.Fatalf("events still present: %d", len(events))
	}
	if len(f.provider.deleted) != 1 || f.provider.deleted[0] != "ext-keep" {
		t.Fatalf("remote delete not attempted: %v", f.provider.deleted)
	}

	f.coordinator.locksMu.Lock()
	_, held := f.coordinator.locks[connID]
	f.coordinator.locksMu.Unlock()
	if held {
		t.Fatal("deleted connection should drop its serializer")
	}
}

func TestCoordinator_DeleteRejectsForeignConnection(t *testing.T) {
	f := newCoordinatorFixture(t)
	connID := f.connect(t, uuid.New(), "host@example.com")

	appErr := f.coordinator.DeleteConnection(context.Background(), connID, uuid.New())
	if appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Fatalf("expected forbidden, got %v", appErr)
	}
}

func TestCoordinator_MirrorBookingPushesAndFailsSoft(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	var syncErrors int
	f.signals.Subscribe("sync.error", func(signal.Event) { syncErrors++ })

	booking := &bookingEntity.Booking{
		HostUserID: userID,
		Title:      "Interview",
		StartTime:  syncRef.Add(2 * time.Hour),
		EndTime:    syncRef.Add(3 * time.Hour),
		Attendees: coreEntity.NewJSONDoc([]bookingEntity.Attendee{
			{Email: "candidate@example.com", Role: bookingEntity.AttendeeRequired},
		}),
	}
	booking.ID = uuid.New()

	if err := f.coordinator.MirrorBooking(context.Background(), booking); err != nil {
		t.Fatalf("MirrorBooking: %v", err)
	}

	events, _ := f.events.ListByBooking(context.Background(), booking.ID)
	if len(events) != 1 {
		t.Fatalf("mirrored %d events, want 1", len(events))
	}
	if events[0].SyncStatus != entity.EventSynced || events[0].ExternalID == "" {
		t.Fatalf("event not pushed: status=%s external=%q", events[0].SyncStatus, events[0].ExternalID)
	}
	if syncErrors != 0 {
		t.Fatalf("unexpected sync.error signals: %d", syncErrors)
	}

	// A provider outage leaves the event pending and signals, but never
	// bubbles an error back to the booking flow.
	f.provider.failCreates = 1
	second := &bookingEntity.Booking{
		HostUserID: userID,
		Title:      "Retro",
		StartTime:  syncRef.Add(5 * time.Hour),
		EndTime:    syncRef.Add(6 * time.Hour),
		Attendees:  coreEntity.NewJSONDoc([]bookingEntity.Attendee{}),
	}
	second.ID = uuid.New()
	if err := f.coordinator.MirrorBooking(context.Background(), second); err != nil {
		t.Fatalf("MirrorBooking during outage: %v", err)
	}

	events, _ = f.events.ListByBooking(context.Background(), second.ID)
	if len(events) != 1 || events[0].SyncStatus != entity.EventSyncPending {
		t.Fatalf("outage should leave event pending, got %+v", events)
	}
	if events[0].LastError == "" {
		t.Fatalf("pending event should record the failure")
	}
	if syncErrors != 1 {
		t.Fatalf("sync.error published %d times, want 1", syncErrors)
	}

	// The next sync run drains the pending event.
	if _, appErr := f.coordinator.TriggerSync(context.Background(), connID, userID, entity.SyncIncremental); appErr != nil {
		t.Fatalf("TriggerSync: %v", appErr)
	}
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	events, _ = f.events.ListByBooking(context.Background(), second.ID)
	if events[0].SyncStatus != entity.EventSynced {
		t.Fatalf("pending event not drained: %s", events[0].SyncStatus)
	}
}

func TestCoordinator_RemoveBookingDeletesRemoteAndLocal(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	f.connect(t, userID, "host@example.com")

	booking := &bookingEntity.Booking{
		HostUserID: userID,
		Title:      "1:1",
		StartTime:  syncRef.Add(time.Hour),
		EndTime:    syncRef.Add(90 * time.Minute),
		Attendees:  coreEntity.NewJSONDoc([]bookingEntity.Attendee{}),
	}
	booking.ID = uuid.New()
	if err := f.coordinator.MirrorBooking(context.Background(), booking); err != nil {
		t.Fatalf("MirrorBooking: %v", err)
	}

	if err := f.coordinator.RemoveBooking(context.Background(), booking); err != nil {
		t.Fatalf("RemoveBooking: %v", err)
	}
	if events, _ := f.events.ListByBooking(context.Background(), booking.ID); len(events) != 0 {
		t.Fatalf("mirror not removed: %d events", len(events))
	}
	if len(f.provider.deleted) != 1 {
		t.Fatalf("remote delete count = %d, want 1", len(f.provider.deleted))
	}
}

func TestCoordinator_BusyIntervalsSkipTentative(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	seedEvent := func(offset time.Duration, showAs entity.ShowAs) {
		ev := &entity.CalendarEvent{
			ConnectionID: connID,
			UserID:       userID,
			ExternalID:   uuid.NewString(),
			Title:        "ev",
			StartTime:    syncRef.Add(offset),
			EndTime:      syncRef.Add(offset + 30*time.Minute),
			Attendees:    coreEntity.NewJSONDoc([]string{}),
			ShowAs:       showAs,
			SyncStatus:   entity.EventSynced,
		}
		if _, err := f.events.Create(context.Background(), ev); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seedEvent(time.Hour, entity.ShowBusy)
	seedEvent(2*time.Hour, entity.ShowTentative)
	seedEvent(3*time.Hour, entity.ShowOutOfOffice)
	seedEvent(4*time.Hour, entity.ShowFree)

	busy, err := f.coordinator.BusyIntervals(context.Background(), userID, syncRef, syncRef.Add(8*time.Hour))
	if err != nil {
		t.Fatalf("BusyIntervals: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("busy intervals = %d, want 2 (busy + out_of_office)", len(busy))
	}
}

func TestCoordinator_DayAvailabilitySlices(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	ev := &entity.CalendarEvent{
		ConnectionID: connID,
		UserID:       userID,
		ExternalID:   "r1",
		Title:        "Planning",
		StartTime:    day.Add(10 * time.Hour),
		EndTime:      day.Add(11 * time.Hour),
		Attendees:    coreEntity.NewJSONDoc([]string{}),
		ShowAs:       entity.ShowBusy,
		SyncStatus:   entity.EventSynced,
	}
	if _, err := f.events.Create(context.Background(), ev); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp2, appErr := f.coordinator.DayAvailability(context.Background(), userID, "2026-03-03", true)
	if appErr != nil {
		t.Fatalf("DayAvailability: %v", appErr)
	}
	// Business hours 9-17 in quarter-hour slices.
	if len(resp2.Slices) != 32 {
		t.Fatalf("slices = %d, want 32", len(resp2.Slices))
	}

	var busyCount int
	for _, s := range resp2.Slices {
		if s.Status == "busy" {
			busyCount++
			if s.Start.Before(ev.StartTime) || s.End.After(ev.EndTime) {
				t.Fatalf("busy slice %v-%v outside event", s.Start, s.End)
			}
		}
	}
	if busyCount != 4 {
		t.Fatalf("busy slices = %d, want 4", busyCount)
	}

	if _, appErr := f.coordinator.DayAvailability(context.Background(), userID, "03/03/2026", false); appErr == nil || appErr.Code != errors.ErrInvalidInput {
		t.Fatalf("malformed date should be rejected, got %v", appErr)
	}
}

type stubWorkingHours struct {
	start, end time.Time
	breaks     [][2]time.Time
	ok         bool
}

func (s *stubWorkingHours) WorkingDay(_ context.Context, _ uuid.UUID, _ time.Time) (time.Time, time.Time, [][2]time.Time, bool, error) {
	return s.start, s.end, s.breaks, s.ok, nil
}

func TestCoordinator_DayAvailabilityFollowsProfileHours(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()
	connID := f.connect(t, userID, "host@example.com")

	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	f.coordinator.Windows = &stubWorkingHours{
		start:  day.Add(8 * time.Hour),
		end:    day.Add(12 * time.Hour),
		breaks: [][2]time.Time{{day.Add(10 * time.Hour), day.Add(10*time.Hour + 30*time.Minute)}},
		ok:     true,
	}

	ev := &entity.CalendarEvent{
		ConnectionID: connID,
		UserID:       userID,
		ExternalID:   "r1",
		Title:        "Standup",
		StartTime:    day.Add(9 * time.Hour),
		EndTime:      day.Add(10 * time.Hour),
		Attendees:    coreEntity.NewJSONDoc([]string{}),
		ShowAs:       entity.ShowBusy,
		SyncStatus:   entity.EventSynced,
	}
	if _, err := f.events.Create(context.Background(), ev); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, appErr := f.coordinator.DayAvailability(context.Background(), userID, "2026-03-03", true)
	if appErr != nil {
		t.Fatalf("DayAvailability: %v", appErr)
	}
	// 08:00-12:00 is 16 quarter-hour slices, two of which fall inside the
	// break.
	if len(resp.Slices) != 14 {
		t.Fatalf("slices = %d, want 14", len(resp.Slices))
	}
	if !resp.Slices[0].Start.Equal(day.Add(8 * time.Hour)) {
		t.Fatalf("first slice starts %v, want 08:00", resp.Slices[0].Start)
	}
	if !resp.Slices[len(resp.Slices)-1].End.Equal(day.Add(12 * time.Hour)) {
		t.Fatalf("last slice ends %v, want 12:00", resp.Slices[len(resp.Slices)-1].End)
	}

	var busyCount int
	for _, s := range resp.Slices {
		if s.Start.Before(day.Add(10*time.Hour+30*time.Minute)) && day.Add(10*time.Hour).Before(s.End) {
			t.Fatalf("slice %v-%v overlaps the break", s.Start, s.End)
		}
		if s.Status == "busy" {
			busyCount++
		}
	}
	if busyCount != 4 {
		t.Fatalf("busy slices = %d, want 4", busyCount)
	}

	// A provider that reports no configuration falls back to the fixed
	// business window.
	f.coordinator.Windows = &stubWorkingHours{}
	fallback, appErr := f.coordinator.DayAvailability(context.Background(), userID, "2026-03-03", true)
	if appErr != nil {
		t.Fatalf("DayAvailability fallback: %v", appErr)
	}
	if len(fallback.Slices) != 32 {
		t.Fatalf("fallback slices = %d, want 32", len(fallback.Slices))
	}
}

func TestCoordinator_TokenRefreshPersists(t *testing.T) {
	f := newCoordinatorFixture(t)
	userID := uuid.New()

	resp, appErr := f.coordinator.CreateConnection(context.Background(), userID, &dto.CreateConnectionRequest{
		Provider:       string(entity.ProviderGoogle),
		CalendarEmail:  "host@example.com",
		AccessToken:    "stale",
		RefreshToken:   "refresh-plain",
		TokenExpiresAt: syncRef.Add(time.Minute), // inside the refresh slack
	})
	if appErr != nil {
		t.Fatalf("CreateConnection: %v", appErr)
	}
	connID := uuid.MustParse(resp.ID)

	if _, appErr := f.coordinator.TriggerSync(context.Background(), connID, userID, entity.SyncIncremental); appErr != nil {
		t.Fatalf("TriggerSync: %v", appErr)
	}
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if f.provider.refreshed != 1 {
		t.Fatalf("refresh calls = %d, want 1", f.provider.refreshed)
	}
	conn, _ := f.conns.GetByID(context.Background(), connID)
	if !conn.TokenExpiresAt.After(syncRef.Add(30 * time.Minute)) {
		t.Fatalf("refreshed expiry not persisted: %v", conn.TokenExpiresAt)
	}
	if conn.AccessToken == "fresh-token" {
		t.Fatalf("refreshed token stored in the clear")
	}
}
