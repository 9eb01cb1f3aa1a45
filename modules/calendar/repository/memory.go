package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/modules/calendar/entity"
)

// In-memory repositories back single-process deployments and tests.

type MemoryConnectionRepository struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]entity.CalendarConnection
}

func NewMemoryConnectionRepository() *MemoryConnectionRepository {
	return &MemoryConnectionRepository{conns: make(map[uuid.UUID]entity.CalendarConnection)}
}

func (r *MemoryConnectionRepository) Create(_ context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	r.conns[conn.ID] = *conn
	return conn, nil
}

func (r *MemoryConnectionRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conns[id]; ok {
		cp := c
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryConnectionRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]entity.CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.CalendarConnection
	for _, c := range r.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConnectionRepository) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, c := range r.conns {
		if c.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryConnectionRepository) Update(_ context.Context, conn *entity.CalendarConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.UpdatedAt = time.Now()
	r.conns[conn.ID] = *conn
	return nil
}

func (r *MemoryConnectionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	return nil
}

func (r *MemoryConnectionRepository) ListDue(_ context.Context, now time.Time) ([]entity.CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.CalendarConnection
	for _, c := range r.conns {
		if c.Status != entity.ConnectionConnected || !c.Settings.V.Enabled {
			continue
		}
		if c.NextSyncAt == nil || c.NextSyncAt.After(now) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextSyncAt.Before(*out[j].NextSyncAt) })
	return out, nil
}

type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]entity.CalendarEvent
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[uuid.UUID]entity.CalendarEvent)}
}

func (r *MemoryEventRepository) Create(_ context.Context, event *entity.CalendarEvent) (*entity.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	r.events[event.ID] = *event
	return event, nil
}

func (r *MemoryEventRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.events[id]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryEventRepository) GetByExternalID(_ context.Context, connectionID uuid.UUID, externalID string) (*entity.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.ConnectionID == connectionID && e.ExternalID == externalID {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryEventRepository) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]entity.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.CalendarEvent
	for _, e := range r.events {
		if e.BookingID != nil && *e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *MemoryEventRepository) ListByConnection(_ context.Context, connectionID uuid.UUID) ([]entity.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.CalendarEvent
	for _, e := range r.events {
		if e.ConnectionID == connectionID {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *MemoryEventRepository) ListByUserWindow(_ context.Context, userID uuid.UUID, from, to time.Time) ([]entity.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.CalendarEvent
	for _, e := range r.events {
		if e.UserID == userID && e.Overlaps(from, to) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *MemoryEventRepository) ListPendingByConnection(_ context.Context, connectionID uuid.UUID) ([]entity.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.CalendarEvent
	for _, e := range r.events {
		if e.ConnectionID == connectionID && (e.SyncStatus == entity.EventSyncPending || e.SyncStatus == entity.EventSyncFailed) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *MemoryEventRepository) Update(_ context.Context, event *entity.CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.UpdatedAt = time.Now()
	r.events[event.ID] = *event
	return nil
}

func (r *MemoryEventRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, id)
	return nil
}

func (r *MemoryEventRepository) DeleteByConnection(_ context.Context, connectionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.events {
		if e.ConnectionID == connectionID {
			delete(r.events, id)
		}
	}
	return nil
}

func sortEvents(events []entity.CalendarEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
}

type MemorySyncRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]entity.CalendarSync
}

func NewMemorySyncRepository() *MemorySyncRepository {
	return &MemorySyncRepository{jobs: make(map[uuid.UUID]entity.CalendarSync)}
}

func (r *MemorySyncRepository) Create(_ context.Context, job *entity.CalendarSync) (*entity.CalendarSync, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = *job
	return job, nil
}

func (r *MemorySyncRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.CalendarSync, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if j, ok := r.jobs[id]; ok {
		cp := j
		return &cp, nil
	}
	return nil, nil
}

func (r *MemorySyncRepository) GetActiveByConnection(_ context.Context, connectionID uuid.UUID) (*entity.CalendarSync, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *entity.CalendarSync
	for _, j := range r.jobs {
		if j.ConnectionID != connectionID || j.Status.IsTerminal() {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			cp := j
			latest = &cp
		}
	}
	return latest, nil
}

func (r *MemorySyncRepository) Update(_ context.Context, job *entity.CalendarSync) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.UpdatedAt = time.Now()
	r.jobs[job.ID] = *job
	return nil
}
