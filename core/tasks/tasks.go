package tasks

import (
	"context"
	"time"
)

// Task is a unit of background work identified by a registered type name.
type Task struct {
	Type    string
	Payload []byte
}

// CancelFunc stops a recurring registration.
type CancelFunc func()

// Scheduler schedules deferred and recurring background work. Implementations
// must not execute tasks inline with Enqueue; handlers run on worker
// goroutines so foreground calls are never blocked.
type Scheduler interface {
	// Enqueue runs the task as soon as a worker is free.
	Enqueue(ctx context.Context, task Task) error
	// EnqueueIn runs the task after the given delay.
	EnqueueIn(ctx context.Context, delay time.Duration, task Task) error
	// Periodic registers a recurring task on a cron spec and returns a
	// cancellable handle.
	Periodic(spec string, task Task) (CancelFunc, error)
}

// Handler processes one task payload.
type Handler func(ctx context.Context, payload []byte) error
