package tasks

import (
	"context"
	"sync"
	"time"
)

// InlineScheduler records scheduled work and lets callers drain it manually.
// It backs tests and single-process deployments that run without Redis.
type InlineScheduler struct {
	mu       sync.Mutex
	handlers map[string]Handler
	queue    []Task
	delayed  []DelayedTask
	periodic []PeriodicEntry
}

type DelayedTask struct {
	Task  Task
	Delay time.Duration
}

type PeriodicEntry struct {
	Spec string
	Task Task
}

func NewInlineScheduler() *InlineScheduler {
	return &InlineScheduler{handlers: make(map[string]Handler)}
}

func (s *InlineScheduler) Enqueue(_ context.Context, task Task) error {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()
	return nil
}

func (s *InlineScheduler) EnqueueIn(_ context.Context, delay time.Duration, task Task) error {
	s.mu.Lock()
	s.delayed = append(s.delayed, DelayedTask{Task: task, Delay: delay})
	s.mu.Unlock()
	return nil
}

func (s *InlineScheduler) Periodic(spec string, task Task) (CancelFunc, error) {
	s.mu.Lock()
	s.periodic = append(s.periodic, PeriodicEntry{Spec: spec, Task: task})
	idx := len(s.periodic) - 1
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if idx < len(s.periodic) {
			s.periodic[idx] = PeriodicEntry{}
		}
		s.mu.Unlock()
	}, nil
}

func (s *InlineScheduler) Handle(taskType string, h Handler) {
	s.mu.Lock()
	s.handlers[taskType] = h
	s.mu.Unlock()
}

// Drain runs every immediate and delayed task (delays collapsed) until the
// queue is empty. Tasks enqueued by handlers are processed in the same pass.
func (s *InlineScheduler) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		var next *Task
		if len(s.queue) > 0 {
			t := s.queue[0]
			s.queue = s.queue[1:]
			next = &t
		} else if len(s.delayed) > 0 {
			t := s.delayed[0].Task
			s.delayed = s.delayed[1:]
			next = &t
		}
		h := Handler(nil)
		if next != nil {
			h = s.handlers[next.Type]
		}
		s.mu.Unlock()

		if next == nil {
			return nil
		}
		if h == nil {
			continue
		}
		if err := h(ctx, next.Payload); err != nil {
			return err
		}
	}
}

// Pending reports queued immediate and delayed task counts.
func (s *InlineScheduler) Pending() (immediate, delayed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), len(s.delayed)
}
