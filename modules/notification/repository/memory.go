package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/params"
	"go-meeting-core/modules/notification/entity"
)

// MemoryNotificationRepository backs tests without Postgres.
type MemoryNotificationRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]entity.Notification
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{items: make(map[uuid.UUID]entity.Notification)}
}

func (r *MemoryNotificationRepository) Create(_ context.Context, notification *entity.Notification) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	r.items[notification.ID] = *notification
	return notification, nil
}

func (r *MemoryNotificationRepository) ListByUser(_ context.Context, userID uuid.UUID, qp params.QueryParams) (*entity.PaginatedNotifications, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []entity.Notification
	for _, n := range r.items {
		if n.UserID == userID {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := (qp.PageNumber - 1) * qp.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + qp.PageSize
	if end > len(all) {
		end = len(all)
	}

	return &entity.PaginatedNotifications{
		Items:      all[start:end],
		TotalItems: len(all),
		PageNumber: qp.PageNumber,
		PageSize:   qp.PageSize,
	}, nil
}

func (r *MemoryNotificationRepository) MarkAsRead(_ context.Context, userID uuid.UUID, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if n, ok := r.items[id]; ok && n.UserID == userID {
			n.IsRead = true
			r.items[id] = n
		}
	}
	return nil
}

func (r *MemoryNotificationRepository) MarkAllAsRead(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.items {
		if n.UserID == userID {
			n.IsRead = true
			r.items[id] = n
		}
	}
	return nil
}

func (r *MemoryNotificationRepository) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type MemoryOutboxRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]entity.OutboxMessage
}

func NewMemoryOutboxRepository() *MemoryOutboxRepository {
	return &MemoryOutboxRepository{items: make(map[uuid.UUID]entity.OutboxMessage)}
}

func (r *MemoryOutboxRepository) Create(_ context.Context, msg *entity.OutboxMessage) (*entity.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.items[msg.ID] = *msg
	return msg, nil
}

func (r *MemoryOutboxRepository) ListPending(_ context.Context, limit int) ([]entity.OutboxMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.OutboxMessage
	for _, m := range r.items {
		if m.Status == entity.OutboxPending {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOutboxRepository) Update(_ context.Context, msg *entity.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[msg.ID] = *msg
	return nil
}

// All returns every stored message, newest last. Test helper.
func (r *MemoryOutboxRepository) All() []entity.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.OutboxMessage, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
