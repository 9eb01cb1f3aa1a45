package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/modules/availability/entity"
)

// In-memory repositories back single-process deployments and tests. They
// implement the same interfaces as the Postgres repositories.

type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]entity.AvailabilityProfile
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[uuid.UUID]entity.AvailabilityProfile)}
}

func (r *MemoryProfileRepository) Create(_ context.Context, profile *entity.AvailabilityProfile) (*entity.AvailabilityProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	r.profiles[profile.ID] = *profile
	return profile, nil
}

func (r *MemoryProfileRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.AvailabilityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryProfileRepository) GetBySlug(_ context.Context, slug string) (*entity.AvailabilityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.Slug == slug {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryProfileRepository) GetByUserID(_ context.Context, userID uuid.UUID) ([]entity.AvailabilityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.AvailabilityProfile
	for _, p := range r.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryProfileRepository) GetDefaultByUserID(_ context.Context, userID uuid.UUID) (*entity.AvailabilityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.UserID == userID && p.IsDefault {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryProfileRepository) Update(_ context.Context, profile *entity.AvailabilityProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile.UpdatedAt = time.Now()
	r.profiles[profile.ID] = *profile
	return nil
}

func (r *MemoryProfileRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
	return nil
}

func (r *MemoryProfileRepository) ClearDefault(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.profiles {
		if p.UserID == userID && p.IsDefault {
			p.IsDefault = false
			r.profiles[id] = p
		}
	}
	return nil
}

func (r *MemoryProfileRepository) ListAll(_ context.Context) ([]entity.AvailabilityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.AvailabilityProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MemorySlotRepository struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]entity.Slot
}

func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{slots: make(map[uuid.UUID]entity.Slot)}
}

func (r *MemorySlotRepository) InsertBatch(_ context.Context, slots []entity.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := range slots {
		if slots[i].ID == uuid.Nil {
			slots[i].ID = uuid.New()
		}
		slots[i].CreatedAt = now
		slots[i].UpdatedAt = now
		r.slots[slots[i].ID] = slots[i]
	}
	return nil
}

func (r *MemorySlotRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.slots[id]; ok {
		cp := s
		return &cp, nil
	}
	return nil, nil
}

func (r *MemorySlotRepository) Update(_ context.Context, slot *entity.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot.UpdatedAt = time.Now()
	r.slots[slot.ID] = *slot
	return nil
}

func (r *MemorySlotRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, id)
	return nil
}

func (r *MemorySlotRepository) ClearGenerated(_ context.Context, profileID uuid.UUID, from, to time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.slots {
		if s.ProfileID == profileID && s.CurrentBookings == 0 &&
			!s.StartTime.Before(from) && s.StartTime.Before(to) {
			delete(r.slots, id)
		}
	}
	return nil
}

func (r *MemorySlotRepository) DeleteByProfile(_ context.Context, profileID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.slots {
		if s.ProfileID == profileID {
			delete(r.slots, id)
		}
	}
	return nil
}

func (r *MemorySlotRepository) ListByProfile(_ context.Context, profileID uuid.UUID, from, to time.Time) ([]entity.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.Slot
	for _, s := range r.slots {
		if s.ProfileID == profileID && s.Intersects(from, to) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *MemorySlotRepository) ListByUser(_ context.Context, userID uuid.UUID, from, to time.Time) ([]entity.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.Slot
	for _, s := range r.slots {
		if s.UserID == userID && s.Intersects(from, to) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *MemorySlotRepository) NextAvailable(_ context.Context, userID uuid.UUID, after time.Time) (*entity.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *entity.Slot
	for _, s := range r.slots {
		if s.UserID != userID || s.Status != entity.SlotAvailable || s.StartTime.Before(after) {
			continue
		}
		if best == nil || s.StartTime.Before(best.StartTime) {
			cp := s
			best = &cp
		}
	}
	return best, nil
}

func sortSlots(slots []entity.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
}
