package service

import (
	"context"
	"time"

	"go-meeting-core/modules/booking/entity"
)

// The engine drives side effects through narrow collaborator interfaces so
// the notification, resource and calendar modules stay decoupled from it.

// DeliveryOutcome is one channel's result for a notification send.
type DeliveryOutcome struct {
	Channel string
	Status  string // sent | failed | queued
	Detail  string
}

// Notifier delivers a message over the requested channels. Fire-and-forget:
// the engine records outcomes but a failed channel alone does not fail the
// step unless the send call itself errors.
type Notifier interface {
	Send(ctx context.Context, subject, body string, recipients []string, channels []string) ([]DeliveryOutcome, error)
}

// ResourceReserver books rooms/equipment for a time window.
type ResourceReserver interface {
	Reserve(ctx context.Context, resourceType string, quantity int, start, end time.Time) (reservationID string, err error)
	Release(ctx context.Context, reservationID string) error
}

// EventMirror materializes a confirmed booking on external calendars.
type EventMirror interface {
	MirrorBooking(ctx context.Context, booking *entity.Booking) error
	RemoveBooking(ctx context.Context, booking *entity.Booking) error
}

// CustomAction executes a named custom step action against the booking.
type CustomAction func(ctx context.Context, booking *entity.Booking, params map[string]string) error

// ActionRegistry maps custom action names to their handlers. Registration
// happens at wiring time, before the engine starts executing steps.
type ActionRegistry struct {
	actions map[string]CustomAction
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]CustomAction)}
}

func (r *ActionRegistry) Register(name string, action CustomAction) {
	r.actions[name] = action
}

func (r *ActionRegistry) Get(name string) (CustomAction, bool) {
	action, ok := r.actions[name]
	return action, ok
}
