package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/constants"
	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/signal"
	"go-meeting-core/core/tasks"
	availDto "go-meeting-core/modules/availability/dto"
	availService "go-meeting-core/modules/availability/service"
	"go-meeting-core/modules/booking/dto"
	"go-meeting-core/modules/booking/entity"
	"go-meeting-core/modules/booking/repository"
)

const (
	businessStartHour = 9
	businessEndHour   = 17
)

// WorkflowEngine owns booking workflow state. Bookings are serialized per id:
// admission, step execution, approval decisions and cancellation for one
// booking never interleave, so a step completing after a cancellation cannot
// re-activate the booking.
type WorkflowEngine struct {
	workflowRepo repository.WorkflowRepositoryInterface
	bookingRepo  repository.BookingRepositoryInterface
	ledger       *availService.SlotLedger
	query        *availService.QueryEngine
	notifier     Notifier
	resources    ResourceReserver
	mirror       EventMirror
	exporter     *ICSExporter
	scheduler    tasks.Scheduler
	signals      *signal.Registry
	tokens       *ActionTokenIssuer
	registry     *ActionRegistry

	RetryDelay    time.Duration
	MaxConcurrent int
	Now           func() time.Time

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

type WorkflowEngineDeps struct {
	WorkflowRepo repository.WorkflowRepositoryInterface
	BookingRepo  repository.BookingRepositoryInterface
	Ledger       *availService.SlotLedger
	Query        *availService.QueryEngine
	Notifier     Notifier
	Resources    ResourceReserver
	Mirror       EventMirror
	Exporter     *ICSExporter
	Scheduler    tasks.Scheduler
	Signals      *signal.Registry
	Tokens       *ActionTokenIssuer
	Registry     *ActionRegistry
}

func NewWorkflowEngine(deps WorkflowEngineDeps) *WorkflowEngine {
	registry := deps.Registry
	if registry == nil {
		registry = NewActionRegistry()
	}
	return &WorkflowEngine{
		workflowRepo:  deps.WorkflowRepo,
		bookingRepo:   deps.BookingRepo,
		ledger:        deps.Ledger,
		query:         deps.Query,
		notifier:      deps.Notifier,
		resources:     deps.Resources,
		mirror:        deps.Mirror,
		exporter:      deps.Exporter,
		scheduler:     deps.Scheduler,
		signals:       deps.Signals,
		tokens:        deps.Tokens,
		registry:      registry,
		RetryDelay:    5 * time.Minute,
		MaxConcurrent: constants.DefaultMaxConcurrentBookings,
		Now:           time.Now,
		locks:         make(map[uuid.UUID]*sync.Mutex),
	}
}

func (e *WorkflowEngine) lockFor(bookingID uuid.UUID) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	if mu, ok := e.locks[bookingID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	e.locks[bookingID] = mu
	return mu
}

// dropLock evicts a terminal booking's serializer so the map does not grow
// unbounded. Every critical section re-reads the booking after locking, so a
// racer holding the old mutex (or a fresh one) observes the terminal status
// and backs off.
func (e *WorkflowEngine) dropLock(bookingID uuid.UUID) {
	e.locksMu.Lock()
	delete(e.locks, bookingID)
	e.locksMu.Unlock()
}

// ===================== Admission =====================

func (e *WorkflowEngine) CreateBookingRequest(ctx context.Context, requesterID uuid.UUID, req *dto.CreateBookingRequest) (*dto.BookingResponse, *errors.AppError) {
	logger.Info("WorkflowEngine:CreateBookingRequest:Start", "requester_id", requesterID, "workflow_id", req.WorkflowID)

	workflowID, err := uuid.Parse(req.WorkflowID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid workflow id", err)
	}
	hostID, err := uuid.Parse(req.HostUserID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid host user id", err)
	}
	if len(req.CandidateWindows) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "At least one candidate window is required", nil)
	}

	workflow, err := e.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load workflow", err)
	}
	if workflow == nil || !workflow.IsActive {
		return nil, errors.NewAppError(errors.ErrNotFound, "Workflow not found or inactive", nil)
	}

	now := e.Now()
	reqs := workflow.Requirements.V
	candidates, appErr := e.admissibleCandidates(now, req, reqs)
	if appErr != nil {
		return nil, appErr
	}

	if appErr := e.checkConcurrentCap(ctx, requesterID, reqs); appErr != nil {
		return nil, appErr
	}

	bookingID := uuid.New()
	slot, window, appErr := e.resolveSlot(ctx, hostID, req, candidates)
	if appErr != nil {
		return nil, appErr
	}
	start := slot.StartTime
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	if appErr := e.checkAttendeeConflicts(ctx, req.Attendees, start, end); appErr != nil {
		return nil, appErr
	}

	slotID, err := uuid.Parse(slot.ID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Invalid slot id from query engine", err)
	}
	if _, appErr := e.ledger.Book(ctx, slotID, bookingID.String(), req.MeetingType); appErr != nil {
		return nil, appErr
	}

	steps := workflow.Steps.V
	pending := make([]string, 0, len(steps))
	for _, s := range steps {
		pending = append(pending, s.ID)
	}

	booking := &entity.Booking{
		BaseEntity:      coreEntity.BaseEntity{ID: bookingID},
		RequesterID:     requesterID,
		HostUserID:      hostID,
		WorkflowID:      workflowID,
		SlotID:          &slotID,
		Title:           req.Title,
		MeetingType:     req.MeetingType,
		Location:        req.Location,
		DurationMinutes: req.DurationMinutes,
		StartTime:       start,
		EndTime:         end,
		Status:          entity.BookingDraft,
		CandidateWindows: coreEntity.NewJSONDoc(req.CandidateWindows),
		Attendees:        coreEntity.NewJSONDoc(req.Attendees),
		Resources:        coreEntity.NewJSONDoc([]entity.ResourceReservation{}),
		WorkflowSteps:    coreEntity.NewJSONDoc(steps),
		State:            coreEntity.NewJSONDoc(entity.WorkflowState{PendingStepIDs: pending}),
	}

	if _, err := e.bookingRepo.Create(ctx, booking); err != nil {
		// Undo the reservation so the slot is not leaked.
		if _, relErr := e.ledger.Release(ctx, slotID, bookingID.String()); relErr != nil {
			logger.Error("WorkflowEngine:CreateBookingRequest:ReleaseAfterCreateFailure", "booking_id", bookingID, "error", relErr)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create booking", err)
	}

	e.publish("booking.created", booking)
	logger.Info("WorkflowEngine:CreateBookingRequest:Admitted",
		"booking_id", bookingID, "slot_id", slotID, "start", start, "window_priority", window.Priority)

	mu := e.lockFor(bookingID)
	mu.Lock()
	defer mu.Unlock()
	if appErr := e.runSteps(ctx, booking); appErr != nil {
		return nil, appErr
	}
	return dto.ToBookingResponse(booking), nil
}

// admissibleCandidates filters candidate windows against the workflow's
// requirements and orders survivors by priority, ties broken by earliest
// start. The ordering rule is deterministic so re-admitting the same request
// always picks the same window.
func (e *WorkflowEngine) admissibleCandidates(now time.Time, req *dto.CreateBookingRequest, reqs entity.Requirements) ([]entity.CandidateWindow, *errors.AppError) {
	if reqs.MinDurationMinutes > 0 && req.DurationMinutes < reqs.MinDurationMinutes {
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			fmt.Sprintf("Duration below workflow minimum of %d minutes", reqs.MinDurationMinutes), nil)
	}
	if reqs.MaxDurationMinutes > 0 && req.DurationMinutes > reqs.MaxDurationMinutes {
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			fmt.Sprintf("Duration above workflow maximum of %d minutes", reqs.MaxDurationMinutes), nil)
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	minStart := now.Add(time.Duration(reqs.MinNoticeHours) * time.Hour)

	var out []entity.CandidateWindow
	for _, c := range req.CandidateWindows {
		if !c.End.After(c.Start) || c.End.Sub(c.Start) < duration {
			continue
		}
		if c.Start.Before(minStart) {
			continue
		}
		if reqs.MaxAdvanceDays > 0 && c.Start.After(now.AddDate(0, 0, reqs.MaxAdvanceDays)) {
			continue
		}
		if !reqs.AllowWeekends && isWeekend(c.Start) {
			continue
		}
		if reqs.BusinessHoursOnly && !withinBusinessHours(c.Start, c.End) {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "No candidate window satisfies the workflow requirements", nil)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (e *WorkflowEngine) checkConcurrentCap(ctx context.Context, requesterID uuid.UUID, reqs entity.Requirements) *errors.AppError {
	cap := reqs.MaxConcurrentActive
	if cap <= 0 {
		cap = e.MaxConcurrent
	}
	active, err := e.bookingRepo.CountActive(ctx, requesterID)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to count active bookings", err)
	}
	if active >= cap {
		return errors.NewConflictError("Concurrent booking limit reached", []errors.ConflictDetail{{
			Type:        "concurrent_cap",
			Severity:    "error",
			Description: fmt.Sprintf("requester already has %d active bookings (cap %d)", active, cap),
		}})
	}
	return nil
}

// resolveSlot walks the ordered candidates and returns the first bookable
// slot fully inside one of them.
func (e *WorkflowEngine) resolveSlot(ctx context.Context, hostID uuid.UUID, req *dto.CreateBookingRequest, candidates []entity.CandidateWindow) (*availDto.SlotView, entity.CandidateWindow, *errors.AppError) {
	for _, c := range candidates {
		resp, appErr := e.query.Query(ctx, &availDto.QueryRequest{
			UserIDs:         []string{hostID.String()},
			Start:           c.Start,
			End:             c.End,
			DurationMinutes: req.DurationMinutes,
			MeetingType:     req.MeetingType,
		})
		if appErr != nil {
			return nil, entity.CandidateWindow{}, appErr
		}
		for i := range resp.Users[0].Slots {
			s := resp.Users[0].Slots[i]
			if s.StartTime.Before(c.Start) || s.EndTime.After(c.End) {
				continue
			}
			return &s, c, nil
		}
	}
	return nil, entity.CandidateWindow{}, errors.NewConflictError("No available slot in any candidate window", []errors.ConflictDetail{{
		Type:        "no_slot",
		Severity:    "error",
		Description: "host has no bookable slot inside the admissible candidate windows",
	}})
}

func (e *WorkflowEngine) checkAttendeeConflicts(ctx context.Context, attendees []entity.Attendee, start, end time.Time) *errors.AppError {
	var details []errors.ConflictDetail
	for _, a := range attendees {
		if a.Role != entity.AttendeeRequired {
			continue
		}
		overlapping, err := e.bookingRepo.ListOverlappingByAttendee(ctx, a.Email, start, end)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to check attendee conflicts", err)
		}
		if len(overlapping) > 0 {
			details = append(details, errors.ConflictDetail{
				Type:        "attendee_double_booking",
				Severity:    "error",
				Description: fmt.Sprintf("%s is already booked in this window", a.Email),
				AttendeeID:  a.Email,
			})
		}
	}
	if len(details) > 0 {
		return errors.NewConflictError("One or more required attendees are double-booked", details)
	}
	return nil
}

// ===================== Step execution =====================

type stepTaskPayload struct {
	BookingID string `json:"booking_id"`
}

// HandleStepTask resumes step execution after a scheduled retry delay. It is
// registered under constants.TaskWorkflowStep.
func (e *WorkflowEngine) HandleStepTask(ctx context.Context, payload []byte) error {
	var p stepTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	bookingID, err := uuid.Parse(p.BookingID)
	if err != nil {
		return err
	}

	mu := e.lockFor(bookingID)
	mu.Lock()
	defer mu.Unlock()

	booking, err := e.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking == nil || booking.Status.IsTerminal() {
		e.dropLock(bookingID)
		return nil
	}
	if booking.State.V.AwaitingApproval {
		return nil
	}
	if appErr := e.runSteps(ctx, booking); appErr != nil {
		return appErr
	}
	return nil
}

// runSteps advances the booking until it confirms, suspends on an approval,
// schedules a retry, or reaches a terminal status. Caller holds the booking's
// lock.
func (e *WorkflowEngine) runSteps(ctx context.Context, booking *entity.Booking) *errors.AppError {
	for {
		if booking.Status.IsTerminal() {
			return nil
		}
		state := &booking.State.V
		if state.AwaitingApproval {
			return nil
		}

		steps := booking.WorkflowSteps.V
		if state.CurrentStep >= len(steps) {
			return e.confirm(ctx, booking)
		}

		step := steps[state.CurrentStep]
		if !conditionsMet(booking, step.Conditions) {
			e.completeStep(booking, step.ID)
			if appErr := e.save(ctx, booking); appErr != nil {
				return appErr
			}
			continue
		}

		suspended, err := e.executeStep(ctx, booking, step)
		if err != nil {
			return e.handleStepFailure(ctx, booking, step, err)
		}
		if suspended {
			booking.Status = entity.BookingPendingApproval
			state.AwaitingApproval = true
			if appErr := e.save(ctx, booking); appErr != nil {
				return appErr
			}
			logger.Info("WorkflowEngine:StepSuspended", "booking_id", booking.ID, "step", step.ID)
			return nil
		}

		e.completeStep(booking, step.ID)
		if appErr := e.save(ctx, booking); appErr != nil {
			return appErr
		}
	}
}

// executeStep runs the step's actions in order. The step fails as a unit on
// the first action error; side effects already taken are reconciled by the
// retry of the whole step, not rolled back.
func (e *WorkflowEngine) executeStep(ctx context.Context, booking *entity.Booking, step entity.WorkflowStep) (suspended bool, err error) {
	for _, action := range step.Actions {
		switch action.Type {
		case entity.ActionSendNotification:
			if err := e.runSendNotification(ctx, booking, step, action); err != nil {
				return false, err
			}
		case entity.ActionRequestApproval:
			if err := e.runRequestApproval(ctx, booking, step, action); err != nil {
				return false, err
			}
			suspended = true
		case entity.ActionBookResource:
			if err := e.runBookResource(ctx, booking, step, action); err != nil {
				return false, err
			}
		case entity.ActionCreateEvent:
			if err := e.runCreateEvent(ctx, booking); err != nil {
				return false, err
			}
		case entity.ActionCustom:
			if err := e.runCustom(ctx, booking, action); err != nil {
				return false, err
			}
		default:
			return false, fmt.Errorf("unknown action type %q", action.Type)
		}
	}

	// An approval step suspends even when no explicit request_approval action
	// issued a record (a manually decided gate).
	if step.Type == entity.StepApproval && !suspended {
		booking.State.V.Approvals = append(booking.State.V.Approvals, entity.ApprovalRecord{
			StepID:      step.ID,
			Decision:    entity.ApprovalPending,
			RequestedAt: e.Now(),
		})
		suspended = true
	}
	return suspended, nil
}

func (e *WorkflowEngine) runSendNotification(ctx context.Context, booking *entity.Booking, step entity.WorkflowStep, action entity.StepAction) error {
	if e.notifier == nil {
		logger.Warn("WorkflowEngine:NotifierUnset", "booking_id", booking.ID, "step", step.ID)
		return nil
	}
	recipients := splitParam(action.Params["recipients"])
	if len(recipients) == 0 {
		for _, a := range booking.Attendees.V {
			recipients = append(recipients, a.Email)
		}
	}
	channels := splitParam(action.Params["channels"])
	if len(channels) == 0 {
		channels = []string{"email"}
	}
	subject := action.Params["subject"]
	if subject == "" {
		subject = booking.Title
	}

	outcomes, err := e.notifier.Send(ctx, subject, action.Params["body"], recipients, channels)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	now := e.Now()
	for _, o := range outcomes {
		booking.State.V.Notifications = append(booking.State.V.Notifications, entity.NotificationRecord{
			StepID:  step.ID,
			Channel: o.Channel,
			Outcome: o.Status,
			SentAt:  now,
			Detail:  o.Detail,
		})
	}
	return nil
}

func (e *WorkflowEngine) runRequestApproval(ctx context.Context, booking *entity.Booking, step entity.WorkflowStep, action entity.StepAction) error {
	approver := action.Params["approver"]
	booking.State.V.Approvals = append(booking.State.V.Approvals, entity.ApprovalRecord{
		StepID:      step.ID,
		Approver:    approver,
		Decision:    entity.ApprovalPending,
		RequestedAt: e.Now(),
	})

	if e.tokens != nil && e.notifier != nil && approver != "" {
		token, err := e.tokens.Issue(booking.ID, step.ID, approver)
		if err != nil {
			return fmt.Errorf("issue approval token: %w", err)
		}
		body := fmt.Sprintf("Approval requested for %q (%s). Token: %s",
			booking.Title, booking.StartTime.Format(time.RFC3339), token)
		if _, err := e.notifier.Send(ctx, "Approval requested: "+booking.Title, body, []string{approver}, []string{"email"}); err != nil {
			return fmt.Errorf("notify approver: %w", err)
		}
	}
	return nil
}

func (e *WorkflowEngine) runBookResource(ctx context.Context, booking *entity.Booking, step entity.WorkflowStep, action entity.StepAction) error {
	if e.resources == nil {
		return fmt.Errorf("no resource reserver configured")
	}
	resourceType := action.Params["resource_type"]
	if resourceType == "" {
		resourceType = "room"
	}
	quantity := 1
	if q, err := strconv.Atoi(action.Params["quantity"]); err == nil && q > 0 {
		quantity = q
	}

	reservationID, err := e.resources.Reserve(ctx, resourceType, quantity, booking.StartTime, booking.EndTime)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", resourceType, err)
	}
	booking.Resources.V = append(booking.Resources.V, entity.ResourceReservation{
		ReservationID: reservationID,
		ResourceType:  resourceType,
		Quantity:      quantity,
		ReservedAt:    e.Now(),
	})
	return nil
}

func (e *WorkflowEngine) runCreateEvent(ctx context.Context, booking *entity.Booking) error {
	if e.mirror == nil {
		logger.Warn("WorkflowEngine:MirrorUnset", "booking_id", booking.ID)
		return nil
	}
	if err := e.mirror.MirrorBooking(ctx, booking); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

func (e *WorkflowEngine) runCustom(ctx context.Context, booking *entity.Booking, action entity.StepAction) error {
	name := action.Params["name"]
	fn, ok := e.registry.Get(name)
	if !ok {
		return fmt.Errorf("custom action %q is not registered", name)
	}
	return fn(ctx, booking, action.Params)
}

func (e *WorkflowEngine) handleStepFailure(ctx context.Context, booking *entity.Booking, step entity.WorkflowStep, stepErr error) *errors.AppError {
	state := &booking.State.V
	state.RetryCount++
	state.LastError = errors.NewAppError(errors.ErrStepExecution,
		fmt.Sprintf("step %s failed", step.ID), stepErr).Error()
	logger.Warn("WorkflowEngine:StepFailed", "booking_id", booking.ID, "step", step.ID,
		"attempt", state.RetryCount, "error", stepErr)

	if state.RetryCount <= step.MaxRetries {
		if appErr := e.save(ctx, booking); appErr != nil {
			return appErr
		}
		if e.scheduler != nil {
			payload, _ := json.Marshal(stepTaskPayload{BookingID: booking.ID.String()})
			if err := e.scheduler.EnqueueIn(ctx, e.RetryDelay, tasks.Task{Type: constants.TaskWorkflowStep, Payload: payload}); err != nil {
				logger.Error("WorkflowEngine:ScheduleRetry", "booking_id", booking.ID, "error", err)
			}
		}
		return nil
	}

	// Retries exhausted: terminal rejection, held slot and resources released.
	e.releaseHeld(ctx, booking)
	booking.Status = entity.BookingRejected
	if appErr := e.save(ctx, booking); appErr != nil {
		return appErr
	}
	e.publish("booking.rejected", booking)
	e.dropLock(booking.ID)
	return nil
}

func (e *WorkflowEngine) confirm(ctx context.Context, booking *entity.Booking) *errors.AppError {
	now := e.Now()
	booking.Status = entity.BookingConfirmed
	booking.ConfirmedAt = &now
	if appErr := e.save(ctx, booking); appErr != nil {
		return appErr
	}

	if e.exporter != nil {
		e.exporter.Export(ctx, booking)
	}
	if e.mirror != nil {
		if err := e.mirror.MirrorBooking(ctx, booking); err != nil {
			// Mirror failure never unconfirms; the sync coordinator reconciles.
			logger.Warn("WorkflowEngine:Confirm:MirrorFailed", "booking_id", booking.ID, "error", err)
		}
	}
	e.publish("booking.confirmed", booking)
	logger.Info("WorkflowEngine:Confirmed", "booking_id", booking.ID, "start", booking.StartTime)
	return nil
}

func (e *WorkflowEngine) completeStep(booking *entity.Booking, stepID string) {
	state := &booking.State.V
	state.CompletedStepIDs = append(state.CompletedStepIDs, stepID)
	kept := state.PendingStepIDs[:0]
	for _, id := range state.PendingStepIDs {
		if id != stepID {
			kept = append(kept, id)
		}
	}
	state.PendingStepIDs = kept
	state.CurrentStep++
	state.RetryCount = 0
	state.LastError = ""
}

// ===================== Decisions =====================

func (e *WorkflowEngine) ApproveBooking(ctx context.Context, bookingID uuid.UUID, approver, comment string) (*dto.BookingResponse, *errors.AppError) {
	mu := e.lockFor(bookingID)
	mu.Lock()
	defer mu.Unlock()

	booking, appErr := e.loadForDecision(ctx, bookingID)
	if appErr != nil {
		return nil, appErr
	}

	e.recordDecision(booking, approver, comment, entity.ApprovalApproved)
	booking.Status = entity.BookingApproved
	booking.State.V.AwaitingApproval = false

	steps := booking.WorkflowSteps.V
	if booking.State.V.CurrentStep < len(steps) {
		e.completeStep(booking, steps[booking.State.V.CurrentStep].ID)
	}
	if appErr := e.save(ctx, booking); appErr != nil {
		return nil, appErr
	}
	e.publish("booking.approved", booking)
	logger.Info("WorkflowEngine:Approved", "booking_id", bookingID, "approver", approver)

	if appErr := e.runSteps(ctx, booking); appErr != nil {
		return nil, appErr
	}
	return dto.ToBookingResponse(booking), nil
}

func (e *WorkflowEngine) RejectBooking(ctx context.Context, bookingID uuid.UUID, approver, comment string) (*dto.BookingResponse, *errors.AppError) {
	mu := e.lockFor(bookingID)
	mu.Lock()
	defer mu.Unlock()

	booking, appErr := e.loadForDecision(ctx, bookingID)
	if appErr != nil {
		return nil, appErr
	}

	e.recordDecision(booking, approver, comment, entity.ApprovalRejected)
	booking.State.V.AwaitingApproval = false
	e.releaseHeld(ctx, booking)
	booking.Status = entity.BookingRejected
	if appErr := e.save(ctx, booking); appErr != nil {
		return nil, appErr
	}
	e.publish("booking.rejected", booking)
	e.dropLock(bookingID)
	logger.Info("WorkflowEngine:Rejected", "booking_id", bookingID, "approver", approver)
	return dto.ToBookingResponse(booking), nil
}

// DecideByToken resolves a signed approval link into a decision.
func (e *WorkflowEngine) DecideByToken(ctx context.Context, token string, approve bool, comment string) (*dto.BookingResponse, *errors.AppError) {
	if e.tokens == nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Approval tokens are not configured", nil)
	}
	bookingID, _, approver, err := e.tokens.Parse(token)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "Invalid or expired approval token", err)
	}
	if approve {
		return e.ApproveBooking(ctx, bookingID, approver, comment)
	}
	return e.RejectBooking(ctx, bookingID, approver, comment)
}

func (e *WorkflowEngine) loadForDecision(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, *errors.AppError) {
	booking, err := e.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
	}
	if booking == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Booking not found", nil)
	}
	if booking.Status.IsTerminal() {
		e.dropLock(bookingID)
		return nil, errors.NewConflictError("Booking is already in a terminal status", nil)
	}
	if !booking.State.V.AwaitingApproval {
		return nil, errors.NewConflictError("Booking is not awaiting approval", nil)
	}
	return booking, nil
}

func (e *WorkflowEngine) recordDecision(booking *entity.Booking, approver, comment string, decision entity.ApprovalDecision) {
	now := e.Now()
	approvals := booking.State.V.Approvals
	for i := len(approvals) - 1; i >= 0; i-- {
		if approvals[i].Decision == entity.ApprovalPending {
			approvals[i].Decision = decision
			approvals[i].DecidedAt = &now
			approvals[i].Comment = comment
			if approvals[i].Approver == "" {
				approvals[i].Approver = approver
			}
			return
		}
	}
	booking.State.V.Approvals = append(approvals, entity.ApprovalRecord{
		Approver:    approver,
		Decision:    decision,
		Comment:     comment,
		RequestedAt: now,
		DecidedAt:   &now,
	})
}

// ===================== Cancellation / reads =====================

func (e *WorkflowEngine) CancelBooking(ctx context.Context, bookingID, requesterID uuid.UUID) (*dto.BookingResponse, *errors.AppError) {
	mu := e.lockFor(bookingID)
	mu.Lock()
	defer mu.Unlock()

	booking, err := e.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
	}
	if booking == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Booking not found", nil)
	}
	if booking.RequesterID != requesterID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Only the requester may cancel this booking", nil)
	}
	if booking.Status.IsTerminal() {
		e.dropLock(bookingID)
		return nil, errors.NewConflictError("Booking is already in a terminal status", nil)
	}

	e.releaseHeld(ctx, booking)
	if booking.Status == entity.BookingConfirmed && e.mirror != nil {
		if mirrorErr := e.mirror.RemoveBooking(ctx, booking); mirrorErr != nil {
			logger.Warn("WorkflowEngine:Cancel:MirrorRemoveFailed", "booking_id", bookingID, "error", mirrorErr)
		}
	}
	booking.Status = entity.BookingCancelled
	booking.State.V.AwaitingApproval = false
	if appErr := e.save(ctx, booking); appErr != nil {
		return nil, appErr
	}
	e.publish("booking.cancelled", booking)
	e.dropLock(bookingID)
	logger.Info("WorkflowEngine:Cancelled", "booking_id", bookingID)
	return dto.ToBookingResponse(booking), nil
}

func (e *WorkflowEngine) GetBooking(ctx context.Context, bookingID uuid.UUID) (*dto.BookingResponse, *errors.AppError) {
	booking, err := e.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
	}
	if booking == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Booking not found", nil)
	}
	return dto.ToBookingResponse(booking), nil
}

func (e *WorkflowEngine) ListMyBookings(ctx context.Context, requesterID uuid.UUID) ([]dto.BookingResponse, *errors.AppError) {
	bookings, err := e.bookingRepo.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list bookings", err)
	}
	out := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, *dto.ToBookingResponse(&bookings[i]))
	}
	return out, nil
}

// ===================== helpers =====================

func (e *WorkflowEngine) releaseHeld(ctx context.Context, booking *entity.Booking) {
	if booking.SlotID != nil {
		if _, appErr := e.ledger.Release(ctx, *booking.SlotID, booking.ID.String()); appErr != nil {
			logger.Warn("WorkflowEngine:ReleaseSlotFailed", "booking_id", booking.ID, "slot_id", booking.SlotID, "error", appErr)
		}
	}
	if e.resources != nil {
		for _, res := range booking.Resources.V {
			if err := e.resources.Release(ctx, res.ReservationID); err != nil {
				logger.Warn("WorkflowEngine:ReleaseResourceFailed", "booking_id", booking.ID, "reservation_id", res.ReservationID, "error", err)
			}
		}
	}
}

func (e *WorkflowEngine) save(ctx context.Context, booking *entity.Booking) *errors.AppError {
	if err := e.bookingRepo.Update(ctx, booking); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to save booking", err)
	}
	return nil
}

func (e *WorkflowEngine) publish(topic string, booking *entity.Booking) {
	if e.signals == nil {
		return
	}
	e.signals.Publish(topic, map[string]any{
		"booking_id":   booking.ID.String(),
		"requester_id": booking.RequesterID.String(),
		"status":       string(booking.Status),
		"start_time":   booking.StartTime,
	})
}

// conditionsMet evaluates the step's entry predicates against the booking.
// An unknown field never matches, so misconfigured conditions skip the step
// rather than executing it.
func conditionsMet(booking *entity.Booking, conditions []entity.Condition) bool {
	for _, c := range conditions {
		if !evalCondition(booking, c) {
			return false
		}
	}
	return true
}

func evalCondition(booking *entity.Booking, c entity.Condition) bool {
	actual, ok := bookingField(booking, c.Field)
	if !ok {
		return false
	}
	switch c.Operator {
	case entity.OpEq:
		return actual == c.Value
	case entity.OpNeq:
		return actual != c.Value
	case entity.OpContains:
		return strings.Contains(actual, c.Value)
	case entity.OpGt, entity.OpLt:
		lhs, err1 := strconv.ParseFloat(actual, 64)
		rhs, err2 := strconv.ParseFloat(c.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if c.Operator == entity.OpGt {
			return lhs > rhs
		}
		return lhs < rhs
	}
	return false
}

func bookingField(booking *entity.Booking, field string) (string, bool) {
	switch field {
	case "status":
		return string(booking.Status), true
	case "meeting_type":
		return booking.MeetingType, true
	case "location":
		return booking.Location, true
	case "title":
		return booking.Title, true
	case "duration_minutes":
		return strconv.Itoa(booking.DurationMinutes), true
	case "attendee_count":
		return strconv.Itoa(len(booking.Attendees.V)), true
	case "requester_id":
		return booking.RequesterID.String(), true
	case "host_user_id":
		return booking.HostUserID.String(), true
	}
	return "", false
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func withinBusinessHours(start, end time.Time) bool {
	if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
		return false
	}
	if start.Hour() < businessStartHour {
		return false
	}
	endMinutes := end.Hour()*60 + end.Minute()
	return endMinutes <= businessEndHour*60
}
