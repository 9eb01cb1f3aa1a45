package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/modules/resource/entity"
)

type MemoryResourceRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]entity.Resource
}

func NewMemoryResourceRepository() *MemoryResourceRepository {
	return &MemoryResourceRepository{items: make(map[uuid.UUID]entity.Resource)}
}

func (r *MemoryResourceRepository) Create(_ context.Context, resource *entity.Resource) (*entity.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resource.ID == uuid.Nil {
		resource.ID = uuid.New()
	}
	r.items[resource.ID] = *resource
	return resource, nil
}

func (r *MemoryResourceRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.items[id]; ok {
		out := res
		return &out, nil
	}
	return nil, nil
}

func (r *MemoryResourceRepository) ListByType(_ context.Context, resourceType string) ([]entity.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.Resource
	for _, res := range r.items {
		if res.Type == resourceType && res.IsActive {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryResourceRepository) List(_ context.Context) ([]entity.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.Resource, 0, len(r.items))
	for _, res := range r.items {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryResourceRepository) Update(_ context.Context, resource *entity.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[resource.ID] = *resource
	return nil
}

func (r *MemoryResourceRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type MemoryReservationRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]entity.Reservation
}

func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{items: make(map[uuid.UUID]entity.Reservation)}
}

func (r *MemoryReservationRepository) Create(_ context.Context, reservation *entity.Reservation) (*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	r.items[reservation.ID] = *reservation
	return reservation, nil
}

func (r *MemoryReservationRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.items[id]; ok {
		out := res
		return &out, nil
	}
	return nil, nil
}

func (r *MemoryReservationRepository) ReservedUnits(_ context.Context, resourceID uuid.UUID, start, end time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	used := 0
	for _, res := range r.items {
		if res.ResourceID == resourceID && res.Status == entity.ReservationConfirmed && res.Overlaps(start, end) {
			used += res.Quantity
		}
	}
	return used, nil
}

func (r *MemoryReservationRepository) Update(_ context.Context, reservation *entity.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[reservation.ID] = *reservation
	return nil
}
