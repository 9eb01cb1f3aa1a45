package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/modules/booking/entity"
)

// In-memory repositories back single-process deployments and tests.

type MemoryWorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]entity.BookingWorkflow
}

func NewMemoryWorkflowRepository() *MemoryWorkflowRepository {
	return &MemoryWorkflowRepository{workflows: make(map[uuid.UUID]entity.BookingWorkflow)}
}

func (r *MemoryWorkflowRepository) Create(_ context.Context, workflow *entity.BookingWorkflow) (*entity.BookingWorkflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	now := time.Now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	r.workflows[workflow.ID] = *workflow
	return workflow, nil
}

func (r *MemoryWorkflowRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.BookingWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workflows[id]; ok {
		cp := w
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryWorkflowRepository) List(_ context.Context) ([]entity.BookingWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.BookingWorkflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryWorkflowRepository) Update(_ context.Context, workflow *entity.BookingWorkflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	workflow.UpdatedAt = time.Now()
	r.workflows[workflow.ID] = *workflow
	return nil
}

func (r *MemoryWorkflowRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workflows, id)
	return nil
}

type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]entity.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[uuid.UUID]entity.Booking)}
}

func (r *MemoryBookingRepository) Create(_ context.Context, booking *entity.Booking) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.bookings[booking.ID] = *booking
	return booking, nil
}

func (r *MemoryBookingRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.bookings[id]; ok {
		cp := b
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryBookingRepository) Update(_ context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking.UpdatedAt = time.Now()
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryBookingRepository) ListByRequester(_ context.Context, requesterID uuid.UUID) ([]entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.Booking
	for _, b := range r.bookings {
		if b.RequesterID == requesterID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryBookingRepository) CountActive(_ context.Context, requesterID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, b := range r.bookings {
		if b.RequesterID == requesterID && !b.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryBookingRepository) ListOverlappingByAttendee(_ context.Context, email string, start, end time.Time) ([]entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.Booking
	for _, b := range r.bookings {
		if !b.Status.IsTerminal() && b.Overlaps(start, end) && b.HasAttendee(email) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}
