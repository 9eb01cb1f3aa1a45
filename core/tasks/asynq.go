package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"go-meeting-core/core/logger"
)

// AsynqScheduler is the production Scheduler backed by asynq over Redis.
type AsynqScheduler struct {
	client    *asynq.Client
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
}

func NewAsynqScheduler(redisAddr, redisPassword string, redisDB int) *AsynqScheduler {
	opt := asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB}

	return &AsynqScheduler{
		client:    asynq.NewClient(opt),
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{}),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 10,
		}),
		mux: asynq.NewServeMux(),
	}
}

func (s *AsynqScheduler) Enqueue(ctx context.Context, task Task) error {
	_, err := s.client.EnqueueContext(ctx, asynq.NewTask(task.Type, task.Payload))
	return err
}

func (s *AsynqScheduler) EnqueueIn(ctx context.Context, delay time.Duration, task Task) error {
	_, err := s.client.EnqueueContext(ctx, asynq.NewTask(task.Type, task.Payload), asynq.ProcessIn(delay))
	return err
}

func (s *AsynqScheduler) Periodic(spec string, task Task) (CancelFunc, error) {
	entryID, err := s.scheduler.Register(spec, asynq.NewTask(task.Type, task.Payload))
	if err != nil {
		return nil, err
	}
	return func() {
		if err := s.scheduler.Unregister(entryID); err != nil {
			logger.Warn("Tasks:Unregister:Error", "entry_id", entryID, "error", err)
		}
	}, nil
}

// Handle registers a handler for a task type. Must be called before Run.
func (s *AsynqScheduler) Handle(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, t.Payload())
	})
}

// Run starts the worker server and the periodic scheduler. Blocks until the
// server stops.
func (s *AsynqScheduler) Run() error {
	go func() {
		if err := s.scheduler.Run(); err != nil {
			logger.Error("Tasks:Scheduler:Run:Error", "error", err)
		}
	}()
	return s.server.Run(s.mux)
}

func (s *AsynqScheduler) Shutdown() {
	s.scheduler.Shutdown()
	s.server.Shutdown()
	_ = s.client.Close()
}
