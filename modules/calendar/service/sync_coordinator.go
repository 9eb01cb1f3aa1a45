package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/constants"
	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/crypto"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/signal"
	"go-meeting-core/core/tasks"
	bookingEntity "go-meeting-core/modules/booking/entity"
	"go-meeting-core/modules/calendar/dto"
	"go-meeting-core/modules/calendar/entity"
	"go-meeting-core/modules/calendar/provider"
	"go-meeting-core/modules/calendar/repository"
)

const (
	// Fallback business window for users without an availability profile.
	businessStartHour = 9
	businessEndHour   = 17
	tokenRefreshSlack = 5 * time.Minute
)

// WorkingHoursProvider resolves a user's configured working window for one
// date so business-hours day slices follow the availability profile instead
// of a fixed clock. ok false means no usable configuration exists.
type WorkingHoursProvider interface {
	WorkingDay(ctx context.Context, userID uuid.UUID, day time.Time) (start, end time.Time, breaks [][2]time.Time, ok bool, err error)
}

// SyncCoordinator is the single owner of connection, event and sync-job
// state. Mutations are serialized per connection so a scheduled sync and a
// foreground mirror never race on the same connection.
type SyncCoordinator struct {
	connRepo  repository.ConnectionRepositoryInterface
	eventRepo repository.EventRepositoryInterface
	syncRepo  repository.SyncRepositoryInterface
	providers *provider.Registry
	cipher    *crypto.TokenCipher
	signals   *signal.Registry
	scheduler tasks.Scheduler

	MaxConnectionsPerUser int
	AllowedDomains        []string
	BlockedDomains        []string
	SyncFrequencyMinutes  int
	RetryDelay            time.Duration
	Windows               WorkingHoursProvider
	Now                   func() time.Time

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

type SyncCoordinatorDeps struct {
	ConnRepo  repository.ConnectionRepositoryInterface
	EventRepo repository.EventRepositoryInterface
	SyncRepo  repository.SyncRepositoryInterface
	Providers *provider.Registry
	Cipher    *crypto.TokenCipher
	Signals   *signal.Registry
	Scheduler tasks.Scheduler
}

func NewSyncCoordinator(deps SyncCoordinatorDeps) *SyncCoordinator {
	return &SyncCoordinator{
		connRepo:              deps.ConnRepo,
		eventRepo:             deps.EventRepo,
		syncRepo:              deps.SyncRepo,
		providers:             deps.Providers,
		cipher:                deps.Cipher,
		signals:               deps.Signals,
		scheduler:             deps.Scheduler,
		MaxConnectionsPerUser: constants.DefaultMaxConnectionsPerUser,
		SyncFrequencyMinutes:  constants.DefaultSyncIntervalMinutes,
		RetryDelay:            2 * time.Minute,
		Now:                   time.Now,
		locks:                 make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *SyncCoordinator) lockFor(connectionID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if mu, ok := s.locks[connectionID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.locks[connectionID] = mu
	return mu
}

// dropLock evicts a deleted connection's serializer. RunSync re-reads the
// connection and its job under the lock, so a racer on either mutex sees the
// deletion and bails.
func (s *SyncCoordinator) dropLock(connectionID uuid.UUID) {
	s.locksMu.Lock()
	delete(s.locks, connectionID)
	s.locksMu.Unlock()
}

// ===================== Connections =====================

func (s *SyncCoordinator) CreateConnection(ctx context.Context, userID uuid.UUID, req *dto.CreateConnectionRequest) (*dto.ConnectionResponse, *errors.AppError) {
	logger.Info("SyncCoordinator:CreateConnection:Start", "user_id", userID, "provider", req.Provider)

	providerType := entity.ProviderType(req.Provider)
	if _, ok := s.providers.Get(providerType); !ok {
		return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Unknown provider %q", req.Provider), nil)
	}
	if appErr := s.checkDomain(req.CalendarEmail); appErr != nil {
		return nil, appErr
	}

	count, err := s.connRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to count connections", err)
	}
	if count >= s.MaxConnectionsPerUser {
		return nil, errors.NewConflictError(
			fmt.Sprintf("Connection limit of %d reached", s.MaxConnectionsPerUser), nil)
	}

	access, err := s.cipher.Encrypt(req.AccessToken)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to encrypt access token", err)
	}
	refresh, err := s.cipher.Encrypt(req.RefreshToken)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to encrypt refresh token", err)
	}

	settings := entity.SyncSettings{
		Direction:        entity.SyncBoth,
		FrequencyMinutes: s.SyncFrequencyMinutes,
		ConflictPolicy:   entity.RemoteWins,
		Enabled:          true,
		MaxRetries:       2,
	}
	if req.Settings != nil {
		settings = *req.Settings
		if settings.FrequencyMinutes <= 0 {
			settings.FrequencyMinutes = s.SyncFrequencyMinutes
		}
	}

	next := s.Now().Add(time.Duration(settings.FrequencyMinutes) * time.Minute)
	conn := &entity.CalendarConnection{
		UserID:         userID,
		Provider:       providerType,
		CalendarEmail:  req.CalendarEmail,
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenExpiresAt: req.TokenExpiresAt,
		Status:         entity.ConnectionConnected,
		Settings:       coreEntity.NewJSONDoc(settings),
		NextSyncAt:     &next,
	}
	if _, err := s.connRepo.Create(ctx, conn); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create connection", err)
	}

	s.publish("connection.created", conn.ID, map[string]any{"user_id": userID.String(), "provider": req.Provider})
	return dto.ToConnectionResponse(conn), nil
}

func (s *SyncCoordinator) checkDomain(email string) *errors.AppError {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return errors.NewAppError(errors.ErrInvalidInput, "Invalid calendar email", nil)
	}
	domain := strings.ToLower(email[at+1:])

	for _, blocked := range s.BlockedDomains {
		if strings.EqualFold(blocked, domain) {
			return errors.NewAppError(errors.ErrForbidden, fmt.Sprintf("Domain %s is not allowed", domain), nil)
		}
	}
	if len(s.AllowedDomains) > 0 {
		for _, allowed := range s.AllowedDomains {
			if strings.EqualFold(allowed, domain) {
				return nil
			}
		}
		return errors.NewAppError(errors.ErrForbidden, fmt.Sprintf("Domain %s is not allowed", domain), nil)
	}
	return nil
}

func (s *SyncCoordinator) ListConnections(ctx context.Context, userID uuid.UUID) ([]dto.ConnectionResponse, *errors.AppError) {
	conns, err := s.connRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list connections", err)
	}
	out := make([]dto.ConnectionResponse, 0, len(conns))
	for i := range conns {
		out = append(out, *dto.ToConnectionResponse(&conns[i]))
	}
	return out, nil
}

func (s *SyncCoordinator) UpdateSettings(ctx context.Context, connectionID, userID uuid.UUID, req *dto.UpdateSettingsRequest) (*dto.ConnectionResponse, *errors.AppError) {
	mu := s.lockFor(connectionID)
	mu.Lock()
	defer mu.Unlock()

	conn, appErr := s.loadOwned(ctx, connectionID, userID)
	if appErr != nil {
		return nil, appErr
	}

	settings := req.Settings
	if settings.FrequencyMinutes <= 0 {
		settings.FrequencyMinutes = s.SyncFrequencyMinutes
	}
	conn.Settings = coreEntity.NewJSONDoc(settings)
	next := s.Now().Add(time.Duration(settings.FrequencyMinutes) * time.Minute)
	conn.NextSyncAt = &next

	if err := s.connRepo.Update(ctx, conn); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to update connection", err)
	}
	return dto.ToConnectionResponse(conn), nil
}

// DeleteConnection cancels any in-flight sync job, removes mirrored remote
// events best-effort, and drops the connection and its local events.
func (s *SyncCoordinator) DeleteConnection(ctx context.Context, connectionID, userID uuid.UUID) *errors.AppError {
	mu := s.lockFor(connectionID)
	mu.Lock()
	defer mu.Unlock()

	conn, appErr := s.loadOwned(ctx, connectionID, userID)
	if appErr != nil {
		return appErr
	}

	if job, err := s.syncRepo.GetActiveByConnection(ctx, connectionID); err == nil && job != nil {
		now := s.Now()
		job.Status = entity.SyncCancelled
		job.FinishedAt = &now
		if err := s.syncRepo.Update(ctx, job); err != nil {
			logger.Warn("SyncCoordinator:DeleteConnection:CancelJob", "sync_id", job.ID, "error", err)
		}
	}

	adapter, accessToken, err := s.adapterFor(ctx, conn)
	if err == nil {
		events, listErr := s.eventRepo.ListByConnection(ctx, connectionID)
		if listErr == nil {
			for _, ev := range events {
				if ev.BookingID == nil || ev.ExternalID == "" {
					continue
				}
				if delErr := adapter.DeleteRemoteEvent(ctx, accessToken, ev.ExternalID); delErr != nil {
					logger.Warn("SyncCoordinator:DeleteConnection:RemoteDelete",
						"connection_id", connectionID, "external_id", ev.ExternalID, "error", delErr)
				}
			}
		}
	}

	if err := s.eventRepo.DeleteByConnection(ctx, connectionID); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to delete connection events", err)
	}
	if err := s.connRepo.Delete(ctx, connectionID); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to delete connection", err)
	}

	s.publish("connection.deleted", connectionID, map[string]any{"user_id": userID.String()})
	s.dropLock(connectionID)
	logger.Info("SyncCoordinator:DeleteConnection:Done", "connection_id", connectionID)
	return nil
}

func (s *SyncCoordinator) loadOwned(ctx context.Context, connectionID, userID uuid.UUID) (*entity.CalendarConnection, *errors.AppError) {
	conn, err := s.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load connection", err)
	}
	if conn == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Connection not found", nil)
	}
	if conn.UserID != userID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Connection belongs to another user", nil)
	}
	return conn, nil
}

// adapterFor resolves the provider adapter and a valid decrypted access
// token, refreshing and re-persisting it when close to expiry.
func (s *SyncCoordinator) adapterFor(ctx context.Context, conn *entity.CalendarConnection) (provider.Provider, string, error) {
	adapter, ok := s.providers.Get(conn.Provider)
	if !ok {
		return nil, "", fmt.Errorf("no adapter for provider %s", conn.Provider)
	}

	accessToken, err := s.cipher.Decrypt(conn.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("decrypt access token: %w", err)
	}
	if s.Now().Before(conn.TokenExpiresAt.Add(-tokenRefreshSlack)) {
		return adapter, accessToken, nil
	}

	refreshToken, err := s.cipher.Decrypt(conn.RefreshToken)
	if err != nil {
		return nil, "", fmt.Errorf("decrypt refresh token: %w", err)
	}
	fresh, expiresAt, err := adapter.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, "", err
	}

	sealed, err := s.cipher.Encrypt(fresh)
	if err != nil {
		return nil, "", fmt.Errorf("encrypt refreshed token: %w", err)
	}
	conn.AccessToken = sealed
	conn.TokenExpiresAt = expiresAt
	if err := s.connRepo.Update(ctx, conn); err != nil {
		logger.Warn("SyncCoordinator:TokenRefresh:Persist", "connection_id", conn.ID, "error", err)
	}
	return adapter, fresh, nil
}

// ===================== Outbound mirroring =====================

// MirrorBooking mirrors a booking onto the host's push-enabled connections.
// A provider failure leaves the local event sync_pending and emits
// sync.error; the originating booking mutation is never rolled back.
func (s *SyncCoordinator) MirrorBooking(ctx context.Context, booking *bookingEntity.Booking) error {
	conns, err := s.connRepo.ListByUser(ctx, booking.HostUserID)
	if err != nil {
		return err
	}

	for i := range conns {
		conn := &conns[i]
		if conn.Status != entity.ConnectionConnected || conn.Settings.V.Direction == entity.SyncPull {
			continue
		}
		mu := s.lockFor(conn.ID)
		mu.Lock()
		s.mirrorToConnection(ctx, conn, booking)
		mu.Unlock()
	}
	return nil
}

func (s *SyncCoordinator) mirrorToConnection(ctx context.Context, conn *entity.CalendarConnection, booking *bookingEntity.Booking) {
	event := s.findBookingEvent(ctx, conn.ID, booking.ID)
	if event == nil {
		emails := make([]string, 0, len(booking.Attendees.V))
		for _, a := range booking.Attendees.V {
			emails = append(emails, a.Email)
		}
		bookingID := booking.ID
		event = &entity.CalendarEvent{
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			BookingID:    &bookingID,
			Title:        booking.Title,
			StartTime:    booking.StartTime,
			EndTime:      booking.EndTime,
			Attendees:    coreEntity.NewJSONDoc(emails),
			ShowAs:       entity.ShowBusy,
			SyncStatus:   entity.EventSyncPending,
		}
		if _, err := s.eventRepo.Create(ctx, event); err != nil {
			logger.Error("SyncCoordinator:Mirror:CreateLocal", err)
			return
		}
	} else {
		event.Title = booking.Title
		event.StartTime = booking.StartTime
		event.EndTime = booking.EndTime
		event.SyncStatus = entity.EventSyncPending
	}

	if err := s.pushEvent(ctx, conn, event); err != nil {
		event.SyncStatus = entity.EventSyncPending
		event.LastError = err.Error()
		s.publish("sync.error", conn.ID, map[string]any{
			"event_id": event.ID.String(),
			"error":    err.Error(),
		})
		logger.Warn("SyncCoordinator:Mirror:PushFailed", "connection_id", conn.ID, "event_id", event.ID, "error", err)
	} else {
		event.SyncStatus = entity.EventSynced
		event.LastError = ""
	}
	if err := s.eventRepo.Update(ctx, event); err != nil {
		logger.Error("SyncCoordinator:Mirror:SaveLocal", err)
	}
}

func (s *SyncCoordinator) pushEvent(ctx context.Context, conn *entity.CalendarConnection, event *entity.CalendarEvent) error {
	adapter, accessToken, err := s.adapterFor(ctx, conn)
	if err != nil {
		return err
	}
	if event.ExternalID == "" {
		externalID, err := adapter.CreateRemoteEvent(ctx, accessToken, event)
		if err != nil {
			return err
		}
		event.ExternalID = externalID
		return nil
	}
	return adapter.UpdateRemoteEvent(ctx, accessToken, event)
}

// RemoveBooking deletes the booking's mirrored events, remotely best-effort
// and locally always.
func (s *SyncCoordinator) RemoveBooking(ctx context.Context, booking *bookingEntity.Booking) error {
	events, err := s.eventRepo.ListByBooking(ctx, booking.ID)
	if err != nil {
		return err
	}

	for i := range events {
		event := &events[i]
		mu := s.lockFor(event.ConnectionID)
		mu.Lock()
		if event.ExternalID != "" {
			if conn, connErr := s.connRepo.GetByID(ctx, event.ConnectionID); connErr == nil && conn != nil {
				if adapter, accessToken, adErr := s.adapterFor(ctx, conn); adErr == nil {
					if delErr := adapter.DeleteRemoteEvent(ctx, accessToken, event.ExternalID); delErr != nil {
						s.publish("sync.error", event.ConnectionID, map[string]any{
							"event_id": event.ID.String(),
							"error":    delErr.Error(),
						})
						logger.Warn("SyncCoordinator:RemoveBooking:RemoteDelete", "event_id", event.ID, "error", delErr)
					}
				}
			}
		}
		if err := s.eventRepo.Delete(ctx, event.ID); err != nil {
			logger.Error("SyncCoordinator:RemoveBooking:DeleteLocal", err)
		}
		mu.Unlock()
	}
	return nil
}

func (s *SyncCoordinator) findBookingEvent(ctx context.Context, connectionID, bookingID uuid.UUID) *entity.CalendarEvent {
	events, err := s.eventRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil
	}
	for i := range events {
		if events[i].ConnectionID == connectionID {
			return &events[i]
		}
	}
	return nil
}

// ===================== Sync jobs =====================

type runSyncPayload struct {
	SyncID string `json:"sync_id"`
}

// EnqueueSync creates a pending job for the connection and schedules its
// execution. At most one non-terminal job exists per connection.
func (s *SyncCoordinator) EnqueueSync(ctx context.Context, connectionID uuid.UUID, mode entity.SyncMode) (*dto.SyncResponse, *errors.AppError) {
	if active, err := s.syncRepo.GetActiveByConnection(ctx, connectionID); err == nil && active != nil {
		return dto.ToSyncResponse(active), nil
	}

	job := &entity.CalendarSync{
		ConnectionID: connectionID,
		Mode:         mode,
		Status:       entity.SyncPending,
		Errors:       coreEntity.NewJSONDoc([]string{}),
		Attempt:      1,
	}
	if _, err := s.syncRepo.Create(ctx, job); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create sync job", err)
	}

	if s.scheduler != nil {
		payload, _ := json.Marshal(runSyncPayload{SyncID: job.ID.String()})
		if err := s.scheduler.Enqueue(ctx, tasks.Task{Type: constants.TaskRunSync, Payload: payload}); err != nil {
			logger.Error("SyncCoordinator:EnqueueSync", "sync_id", job.ID, "error", err)
		}
	}
	return dto.ToSyncResponse(job), nil
}

// TriggerSync is the user-facing entry: it checks ownership before queueing.
func (s *SyncCoordinator) TriggerSync(ctx context.Context, connectionID, userID uuid.UUID, mode entity.SyncMode) (*dto.SyncResponse, *errors.AppError) {
	if _, appErr := s.loadOwned(ctx, connectionID, userID); appErr != nil {
		return nil, appErr
	}
	return s.EnqueueSync(ctx, connectionID, mode)
}

// HandleRunSyncTask is registered under constants.TaskRunSync.
func (s *SyncCoordinator) HandleRunSyncTask(ctx context.Context, payload []byte) error {
	var p runSyncPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	syncID, err := uuid.Parse(p.SyncID)
	if err != nil {
		return err
	}
	return s.RunSync(ctx, syncID)
}

// RunSync executes one sync job: pull remote changes through the cursor,
// push local events still pending, then recompute the connection's next
// sync time.
func (s *SyncCoordinator) RunSync(ctx context.Context, syncID uuid.UUID) error {
	job, err := s.syncRepo.GetByID(ctx, syncID)
	if err != nil {
		return err
	}
	if job == nil || job.Status.IsTerminal() {
		return nil
	}

	mu := s.lockFor(job.ConnectionID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock: DeleteConnection may have cancelled the job.
	job, err = s.syncRepo.GetByID(ctx, syncID)
	if err != nil || job == nil || job.Status.IsTerminal() {
		return err
	}

	conn, err := s.connRepo.GetByID(ctx, job.ConnectionID)
	if err != nil {
		return err
	}
	if conn == nil {
		now := s.Now()
		job.Status = entity.SyncCancelled
		job.FinishedAt = &now
		s.dropLock(job.ConnectionID)
		return s.syncRepo.Update(ctx, job)
	}

	now := s.Now()
	job.Status = entity.SyncRunning
	job.StartedAt = &now
	job.Progress = 0
	if err := s.syncRepo.Update(ctx, job); err != nil {
		return err
	}
	logger.Info("SyncCoordinator:RunSync:Start", "sync_id", syncID, "connection_id", conn.ID, "mode", job.Mode, "attempt", job.Attempt)

	if runErr := s.executeSync(ctx, conn, job); runErr != nil {
		return s.handleSyncFailure(ctx, conn, job, runErr)
	}

	finished := s.Now()
	job.Status = entity.SyncCompleted
	job.Progress = 100
	job.FinishedAt = &finished
	if err := s.syncRepo.Update(ctx, job); err != nil {
		return err
	}

	next := finished.Add(time.Duration(conn.Settings.V.FrequencyMinutes) * time.Minute)
	conn.LastSyncAt = &finished
	conn.NextSyncAt = &next
	conn.Status = entity.ConnectionConnected
	if err := s.connRepo.Update(ctx, conn); err != nil {
		return err
	}

	s.publish("sync.completed", conn.ID, map[string]any{
		"sync_id":   syncID.String(),
		"processed": job.Processed,
	})
	logger.Info("SyncCoordinator:RunSync:Done", "sync_id", syncID,
		"processed", job.Processed, "created", job.Created, "updated", job.Updated, "deleted", job.Deleted)
	return nil
}

func (s *SyncCoordinator) executeSync(ctx context.Context, conn *entity.CalendarConnection, job *entity.CalendarSync) error {
	adapter, accessToken, err := s.adapterFor(ctx, conn)
	if err != nil {
		return err
	}
	settings := conn.Settings.V

	if settings.Direction != entity.SyncPush {
		cursor := conn.Cursor
		if job.Mode == entity.SyncFull {
			cursor = ""
		}
		changes, nextCursor, err := adapter.ListChangesSince(ctx, accessToken, cursor)
		if err != nil {
			return fmt.Errorf("list changes: %w", err)
		}
		for i := range changes {
			s.applyChange(ctx, conn, job, &changes[i])
		}
		conn.Cursor = nextCursor
	}
	job.Progress = 50
	if err := s.syncRepo.Update(ctx, job); err != nil {
		return err
	}

	if settings.Direction != entity.SyncPull {
		pending, err := s.eventRepo.ListPendingByConnection(ctx, conn.ID)
		if err != nil {
			return err
		}
		for i := range pending {
			event := &pending[i]
			if err := s.pushEvent(ctx, conn, event); err != nil {
				return fmt.Errorf("push event %s: %w", event.ID, err)
			}
			event.SyncStatus = entity.EventSynced
			event.LastError = ""
			if err := s.eventRepo.Update(ctx, event); err != nil {
				return err
			}
			job.Processed++
			job.Updated++
		}
	}
	return nil
}

// applyChange reconciles one remote change into the local event store.
// Booking-linked events are protected under local_wins.
func (s *SyncCoordinator) applyChange(ctx context.Context, conn *entity.CalendarConnection, job *entity.CalendarSync, change *provider.RemoteEvent) {
	job.Processed++

	local, err := s.eventRepo.GetByExternalID(ctx, conn.ID, change.ID)
	if err != nil {
		job.Errors.V = append(job.Errors.V, err.Error())
		return
	}

	if change.Deleted {
		if local != nil {
			if err := s.eventRepo.Delete(ctx, local.ID); err != nil {
				job.Errors.V = append(job.Errors.V, err.Error())
				return
			}
			job.Deleted++
		}
		return
	}

	if local == nil {
		event := &entity.CalendarEvent{
			ConnectionID:   conn.ID,
			UserID:         conn.UserID,
			ExternalID:     change.ID,
			Title:          change.Title,
			StartTime:      change.Start,
			EndTime:        change.End,
			Attendees:      coreEntity.NewJSONDoc(change.Attendees),
			RecurrenceRule: change.RecurrenceRule,
			ShowAs:         change.ShowAs,
			SyncStatus:     entity.EventSynced,
		}
		if _, err := s.eventRepo.Create(ctx, event); err != nil {
			job.Errors.V = append(job.Errors.V, err.Error())
			return
		}
		job.Created++
		return
	}

	if conn.Settings.V.ConflictPolicy == entity.LocalWins && local.BookingID != nil {
		return
	}
	local.Title = change.Title
	local.StartTime = change.Start
	local.EndTime = change.End
	local.Attendees = coreEntity.NewJSONDoc(change.Attendees)
	local.RecurrenceRule = change.RecurrenceRule
	local.ShowAs = change.ShowAs
	local.SyncStatus = entity.EventSynced
	if err := s.eventRepo.Update(ctx, local); err != nil {
		job.Errors.V = append(job.Errors.V, err.Error())
		return
	}
	job.Updated++
}

func (s *SyncCoordinator) handleSyncFailure(ctx context.Context, conn *entity.CalendarConnection, job *entity.CalendarSync, runErr error) error {
	job.Errors.V = append(job.Errors.V, runErr.Error())
	s.publish("sync.error", conn.ID, map[string]any{
		"sync_id": job.ID.String(),
		"error":   runErr.Error(),
	})
	logger.Warn("SyncCoordinator:RunSync:Failed", "sync_id", job.ID, "attempt", job.Attempt, "error", runErr)

	if job.Attempt <= conn.Settings.V.MaxRetries {
		job.Attempt++
		job.Status = entity.SyncPending
		if err := s.syncRepo.Update(ctx, job); err != nil {
			return err
		}
		if s.scheduler != nil {
			payload, _ := json.Marshal(runSyncPayload{SyncID: job.ID.String()})
			if err := s.scheduler.EnqueueIn(ctx, s.RetryDelay, tasks.Task{Type: constants.TaskRunSync, Payload: payload}); err != nil {
				logger.Error("SyncCoordinator:ScheduleRetry", "sync_id", job.ID, "error", err)
			}
		}
		return nil
	}

	now := s.Now()
	job.Status = entity.SyncFailed
	job.FinishedAt = &now
	if err := s.syncRepo.Update(ctx, job); err != nil {
		return err
	}

	// Keep scanning the connection; the next scheduled pass retries fresh.
	next := now.Add(time.Duration(conn.Settings.V.FrequencyMinutes) * time.Minute)
	conn.Status = entity.ConnectionError
	conn.NextSyncAt = &next
	return s.connRepo.Update(ctx, conn)
}

// HandleSyncScanTask enqueues an incremental sync for every due connection.
// Registered under constants.TaskSyncScan.
func (s *SyncCoordinator) HandleSyncScanTask(ctx context.Context, _ []byte) error {
	due, err := s.connRepo.ListDue(ctx, s.Now())
	if err != nil {
		return err
	}
	for i := range due {
		if _, appErr := s.EnqueueSync(ctx, due[i].ID, entity.SyncIncremental); appErr != nil {
			logger.Error("SyncCoordinator:SyncScan:Enqueue", "connection_id", due[i].ID, "error", appErr)
		}
	}
	if len(due) > 0 {
		logger.Info("SyncCoordinator:SyncScan", "due_connections", len(due))
	}
	return nil
}

func (s *SyncCoordinator) GetSync(ctx context.Context, syncID uuid.UUID) (*dto.SyncResponse, *errors.AppError) {
	job, err := s.syncRepo.GetByID(ctx, syncID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load sync job", err)
	}
	if job == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Sync job not found", nil)
	}
	return dto.ToSyncResponse(job), nil
}

// ===================== Availability derivation =====================

// BusyIntervals feeds the availability query engine's external-calendar
// overlay. Tentative events do not count as busy.
func (s *SyncCoordinator) BusyIntervals(ctx context.Context, userID uuid.UUID, from, to time.Time) ([][2]time.Time, error) {
	events, err := s.eventRepo.ListByUserWindow(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	var out [][2]time.Time
	for _, e := range events {
		if e.ShowAs == entity.ShowBusy || e.ShowAs == entity.ShowOutOfOffice {
			out = append(out, [2]time.Time{e.StartTime, e.EndTime})
		}
	}
	return out, nil
}

// DayAvailability slices one calendar day into 15-minute intervals and marks
// each by the strongest overlapping event state. With businessHoursOnly the
// window comes from the user's availability profile (working hours, timezone,
// breaks); the fixed 9-17 clock is only a fallback for unconfigured users.
func (s *SyncCoordinator) DayAvailability(ctx context.Context, userID uuid.UUID, date string, businessHoursOnly bool) (*dto.DayAvailabilityResponse, *errors.AppError) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Date must be YYYY-MM-DD", err)
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	var breaks [][2]time.Time
	if businessHoursOnly {
		dayStart, dayEnd, breaks = s.businessWindow(ctx, userID, day)
	}

	events, err := s.eventRepo.ListByUserWindow(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load events", err)
	}

	step := constants.AvailabilitySliceMinutes * time.Minute
	resp := &dto.DayAvailabilityResponse{Date: date}
	for slice := dayStart; slice.Before(dayEnd); slice = slice.Add(step) {
		sliceEnd := slice.Add(step)
		if overlapsBreak(slice, sliceEnd, breaks) {
			continue
		}
		status := "available"
		for i := range events {
			if !events[i].Overlaps(slice, sliceEnd) {
				continue
			}
			status = strongerStatus(status, events[i].ShowAs)
		}
		resp.Slices = append(resp.Slices, dto.DaySlice{Start: slice, End: sliceEnd, Status: status})
	}
	return resp, nil
}

// businessWindow asks the availability profile for the day's working hours,
// falling back to a fixed UTC business window when none are configured.
func (s *SyncCoordinator) businessWindow(ctx context.Context, userID uuid.UUID, day time.Time) (time.Time, time.Time, [][2]time.Time) {
	if s.Windows != nil {
		start, end, breaks, ok, err := s.Windows.WorkingDay(ctx, userID, day)
		if err != nil {
			logger.Warn("SyncCoordinator:DayAvailability:WorkingDay", "user_id", userID, "error", err)
		} else if ok {
			return start, end, breaks
		}
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), businessStartHour, 0, 0, 0, time.UTC)
	end := time.Date(day.Year(), day.Month(), day.Day(), businessEndHour, 0, 0, 0, time.UTC)
	return start, end, nil
}

func overlapsBreak(start, end time.Time, breaks [][2]time.Time) bool {
	for _, b := range breaks {
		if start.Before(b[1]) && b[0].Before(end) {
			return true
		}
	}
	return false
}

// strongerStatus keeps the most restrictive state seen so far:
// out_of_office > busy > tentative > available.
func strongerStatus(current string, showAs entity.ShowAs) string {
	rank := map[string]int{"available": 0, "tentative": 1, "busy": 2, "out_of_office": 3}
	candidate := current
	switch showAs {
	case entity.ShowOutOfOffice:
		candidate = "out_of_office"
	case entity.ShowBusy:
		candidate = "busy"
	case entity.ShowTentative:
		candidate = "tentative"
	}
	if rank[candidate] > rank[current] {
		return candidate
	}
	return current
}

func (s *SyncCoordinator) publish(topic string, connectionID uuid.UUID, payload map[string]any) {
	if s.signals == nil {
		return
	}
	payload["connection_id"] = connectionID.String()
	s.signals.Publish(topic, payload)
}
