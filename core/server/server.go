package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"go-meeting-core/core/cache"
	"go-meeting-core/core/config"
	"go-meeting-core/core/constants"
	"go-meeting-core/core/crypto"
	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/middleware"
	"go-meeting-core/core/otel"
	sig "go-meeting-core/core/signal"
	"go-meeting-core/core/storage"
	"go-meeting-core/core/tasks"

	"go-meeting-core/modules/availability"
	availRepo "go-meeting-core/modules/availability/repository"
	availService "go-meeting-core/modules/availability/service"
	"go-meeting-core/modules/booking"
	bookingRepo "go-meeting-core/modules/booking/repository"
	bookingService "go-meeting-core/modules/booking/service"
	"go-meeting-core/modules/calendar"
	calendarProvider "go-meeting-core/modules/calendar/provider"
	calendarRepo "go-meeting-core/modules/calendar/repository"
	calendarService "go-meeting-core/modules/calendar/service"
	"go-meeting-core/modules/notification"
	notifRepo "go-meeting-core/modules/notification/repository"
	notifService "go-meeting-core/modules/notification/service"
	"go-meeting-core/modules/resource"
	resourceRepo "go-meeting-core/modules/resource/repository"
	resourceService "go-meeting-core/modules/resource/service"
)

// workScheduler is the surface both the asynq-backed and the inline
// scheduler expose: enqueueing plus handler registration.
type workScheduler interface {
	tasks.Scheduler
	Handle(taskType string, h tasks.Handler)
}

// Run wires the full application and blocks until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Format, cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := context.Background()

	var otelShutdown func(context.Context) error
	if cfg.Otel.Enabled {
		otelShutdown, err = otel.Setup(ctx, "meetcore", cfg.Otel.Endpoint)
		if err != nil {
			return fmt.Errorf("init otel: %w", err)
		}
	}

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	var c cache.Cache
	if cfg.Redis.Enabled {
		c, err = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("init redis cache: %w", err)
		}
	} else {
		c = cache.NewMemoryCache(4096, time.Hour)
	}

	signals := sig.NewRegistry()
	var kafkaSink *sig.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink = sig.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		signals.AttachSink(kafkaSink)
	}

	var scheduler workScheduler
	var asynqScheduler *tasks.AsynqScheduler
	var inlineScheduler *tasks.InlineScheduler
	if cfg.Redis.Enabled {
		asynqScheduler = tasks.NewAsynqScheduler(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		scheduler = asynqScheduler
	} else {
		inlineScheduler = tasks.NewInlineScheduler()
		scheduler = inlineScheduler
	}

	// ===================== Availability =====================

	profileRepo := availRepo.NewProfileRepository(&db)
	slotRepo := availRepo.NewSlotRepository(&db)

	generator := availService.NewSlotGenerator(profileRepo, slotRepo, signals,
		cfg.Scheduling.SlotDurationMinutes, cfg.Scheduling.GenerationWindowDays)
	profiles := availService.NewProfileService(profileRepo, slotRepo, generator, signals)
	ledger := availService.NewSlotLedger(slotRepo, signals)

	// ===================== Calendar =====================

	cipher, err := crypto.NewTokenCipher(cfg.Calendar.TokenCipherKey)
	if err != nil {
		return fmt.Errorf("init token cipher: %w", err)
	}
	providers := calendarProvider.NewRegistry()
	providers.Register(calendarProvider.NewGoogleProvider(cfg.Calendar.GoogleClientID, cfg.Calendar.GoogleClientSecret))

	coordinator := calendarService.NewSyncCoordinator(calendarService.SyncCoordinatorDeps{
		ConnRepo:  calendarRepo.NewConnectionRepository(&db),
		EventRepo: calendarRepo.NewEventRepository(&db),
		SyncRepo:  calendarRepo.NewSyncRepository(&db),
		Providers: providers,
		Cipher:    cipher,
		Signals:   signals,
		Scheduler: scheduler,
	})
	if cfg.Scheduling.MaxConnectionsPerUser > 0 {
		coordinator.MaxConnectionsPerUser = cfg.Scheduling.MaxConnectionsPerUser
	}
	if cfg.Scheduling.SyncIntervalMinutes > 0 {
		coordinator.SyncFrequencyMinutes = cfg.Scheduling.SyncIntervalMinutes
	}
	coordinator.AllowedDomains = cfg.Calendar.AllowedDomains
	coordinator.BlockedDomains = cfg.Calendar.BlockedDomains
	coordinator.Windows = profiles

	queryTTL := time.Duration(cfg.Scheduling.QueryCacheTTLSeconds) * time.Second
	query := availService.NewQueryEngine(slotRepo, c, coordinator, queryTTL)

	// ===================== Notification and resources =====================

	feedRepo := notifRepo.NewNotificationRepository(&db)
	outboxRepo := notifRepo.NewOutboxRepository(&db)
	notifier := notifService.NewNotificationService(feedRepo)
	notifier.RegisterSender(notifService.NewInAppSender(feedRepo))
	notifier.RegisterSender(notifService.NewOutboxSender(notifService.ChannelEmail, outboxRepo))
	notifier.RegisterSender(notifService.NewOutboxSender(notifService.ChannelSMS, outboxRepo))

	resources := resourceService.NewResourceService(
		resourceRepo.NewResourceRepository(&db),
		resourceRepo.NewReservationRepository(&db),
	)

	// ===================== Booking =====================

	var uploader storage.Uploader = storage.NoopUploader{}
	if cfg.Storage.Enabled {
		uploader = storage.NewS3Uploader(cfg.Storage)
	}

	workflowSvc := bookingService.NewWorkflowService(bookingRepo.NewWorkflowRepository(&db))
	engine := bookingService.NewWorkflowEngine(bookingService.WorkflowEngineDeps{
		WorkflowRepo: bookingRepo.NewWorkflowRepository(&db),
		BookingRepo:  bookingRepo.NewBookingRepository(&db),
		Ledger:       ledger,
		Query:        query,
		Notifier:     notifier,
		Resources:    resources,
		Mirror:       coordinator,
		Exporter:     bookingService.NewICSExporter(uploader),
		Scheduler:    scheduler,
		Signals:      signals,
		Tokens:       bookingService.NewActionTokenIssuer(cfg.Server.TokenSecret, 72*time.Hour),
	})
	if cfg.Scheduling.MaxConcurrentBookings > 0 {
		engine.MaxConcurrent = cfg.Scheduling.MaxConcurrentBookings
	}

	// ===================== Background work =====================

	scheduler.Handle(constants.TaskWorkflowStep, engine.HandleStepTask)
	scheduler.Handle(constants.TaskRunSync, coordinator.HandleRunSyncTask)
	scheduler.Handle(constants.TaskSyncScan, coordinator.HandleSyncScanTask)
	scheduler.Handle(constants.TaskSlotRegeneration, func(ctx context.Context, _ []byte) error {
		return generator.GenerateAll(ctx)
	})

	syncEvery := coordinator.SyncFrequencyMinutes
	if _, err := scheduler.Periodic(fmt.Sprintf("@every %dm", syncEvery), tasks.Task{Type: constants.TaskSyncScan}); err != nil {
		logger.Warn("Server:Periodic:SyncScan", "error", err)
	}
	if _, err := scheduler.Periodic("@every 24h", tasks.Task{Type: constants.TaskSlotRegeneration}); err != nil {
		logger.Warn("Server:Periodic:SlotRegeneration", "error", err)
	}

	if asynqScheduler != nil {
		go func() {
			if err := asynqScheduler.Run(); err != nil {
				logger.Error("Server:Asynq:Run", err)
			}
		}()
	}
	var stopDrain chan struct{}
	if inlineScheduler != nil {
		stopDrain = make(chan struct{})
		go drainLoop(ctx, inlineScheduler, stopDrain)
	}

	// ===================== HTTP =====================

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMw.Recover())
	mw := middleware.NewMiddleware()
	e.Use(mw.RequestLogger())
	if cfg.Otel.Enabled {
		e.Use(otelecho.Middleware("meetcore"))
	}

	e.GET("/healthz", func(ec echo.Context) error {
		return ec.JSON(200, map[string]string{"status": "ok"})
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	availability.Init(e, mw, profiles, query, ledger)
	booking.Init(e, mw, workflowSvc, engine)
	calendar.Init(e, mw, coordinator)
	notification.Init(e, mw, notifier)
	resource.Init(e, mw, resources)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := e.Start(addr); err != nil {
			logger.Info("Server:HTTP:Stopped", "reason", err.Error())
		}
	}()
	logger.Info("Server:Started", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server:Shutdown:Start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server:Shutdown:HTTP", err)
	}
	if asynqScheduler != nil {
		asynqScheduler.Shutdown()
	}
	if stopDrain != nil {
		close(stopDrain)
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("Server:Shutdown:Kafka", "error", err)
		}
	}
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Warn("Server:Shutdown:Otel", "error", err)
		}
	}
	logger.Info("Server:Shutdown:Done")
	return nil
}

// drainLoop services the inline scheduler when Redis (and with it asynq) is
// turned off, so dev environments still process background tasks.
func drainLoop(ctx context.Context, s *tasks.InlineScheduler, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Drain(ctx); err != nil {
				logger.Warn("Server:InlineDrain", "error", err)
			}
		}
	}
}
