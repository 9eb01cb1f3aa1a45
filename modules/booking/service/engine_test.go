package service

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/constants"
	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/tasks"
	availEntity "go-meeting-core/modules/availability/entity"
	availRepo "go-meeting-core/modules/availability/repository"
	availService "go-meeting-core/modules/availability/service"
	"go-meeting-core/modules/booking/dto"
	"go-meeting-core/modules/booking/entity"
	"go-meeting-core/modules/booking/repository"
)

// bookRef is a Monday at midnight UTC.
var bookRef = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type stubNotifier struct {
	sends int
	fail  bool
}

func (n *stubNotifier) Send(_ context.Context, _, _ string, _ []string, channels []string) ([]DeliveryOutcome, error) {
	if n.fail {
		return nil, goerrors.New("smtp down")
	}
	n.sends++
	out := make([]DeliveryOutcome, 0, len(channels))
	for _, ch := range channels {
		out = append(out, DeliveryOutcome{Channel: ch, Status: "sent"})
	}
	return out, nil
}

type stubResources struct {
	failTimes int
	reserved  []string
	released  []string
}

func (r *stubResources) Reserve(_ context.Context, resourceType string, _ int, _, _ time.Time) (string, error) {
	if r.failTimes != 0 {
		if r.failTimes > 0 {
			r.failTimes--
		}
		return "", goerrors.New("room service unavailable")
	}
	id := fmt.Sprintf("res-%d", len(r.reserved)+1)
	r.reserved = append(r.reserved, id)
	return id, nil
}

func (r *stubResources) Release(_ context.Context, reservationID string) error {
	r.released = append(r.released, reservationID)
	return nil
}

type stubMirror struct {
	created int
	removed int
}

func (m *stubMirror) MirrorBooking(context.Context, *entity.Booking) error {
	m.created++
	return nil
}

func (m *stubMirror) RemoveBooking(context.Context, *entity.Booking) error {
	m.removed++
	return nil
}

type engineFixture struct {
	engine    *WorkflowEngine
	workflows *repository.MemoryWorkflowRepository
	bookings  *repository.MemoryBookingRepository
	slots     *availRepo.MemorySlotRepository
	ledger    *availService.SlotLedger
	scheduler *tasks.InlineScheduler
	notifier  *stubNotifier
	resources *stubResources
	mirror    *stubMirror
	tokens    *ActionTokenIssuer
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	slots := availRepo.NewMemorySlotRepository()
	ledger := availService.NewSlotLedger(slots, nil)
	query := availService.NewQueryEngine(slots, nil, nil, time.Minute)
	query.Now = func() time.Time { return bookRef }

	f := &engineFixture{
		workflows: repository.NewMemoryWorkflowRepository(),
		bookings:  repository.NewMemoryBookingRepository(),
		slots:     slots,
		ledger:    ledger,
		scheduler: tasks.NewInlineScheduler(),
		notifier:  &stubNotifier{},
		resources: &stubResources{},
		mirror:    &stubMirror{},
		tokens:    NewActionTokenIssuer("test-secret", time.Hour),
	}
	f.engine = NewWorkflowEngine(WorkflowEngineDeps{
		WorkflowRepo: f.workflows,
		BookingRepo:  f.bookings,
		Ledger:       ledger,
		Query:        query,
		Notifier:     f.notifier,
		Resources:    f.resources,
		Mirror:       f.mirror,
		Scheduler:    f.scheduler,
		Tokens:       f.tokens,
	})
	f.engine.Now = func() time.Time { return bookRef }
	f.scheduler.Handle(constants.TaskWorkflowStep, f.engine.HandleStepTask)
	return f
}

func (f *engineFixture) seedWorkflow(t *testing.T, steps []entity.WorkflowStep, reqs entity.Requirements) uuid.UUID {
	t.Helper()
	workflow := &entity.BookingWorkflow{
		Name:         "standard",
		IsActive:     true,
		Steps:        coreEntity.NewJSONDoc(steps),
		Requirements: coreEntity.NewJSONDoc(reqs),
	}
	if _, err := f.workflows.Create(context.Background(), workflow); err != nil {
		t.Fatalf("seed workflow: %v", err)
	}
	return workflow.ID
}

func (f *engineFixture) seedHostSlot(t *testing.T, hostID uuid.UUID, start time.Time, maxBookings int) uuid.UUID {
	t.Helper()
	slot := availEntity.Slot{
		BaseEntity:   coreEntity.BaseEntity{ID: uuid.New()},
		ProfileID:    uuid.New(),
		UserID:       hostID,
		StartTime:    start,
		EndTime:      start.Add(30 * time.Minute),
		Status:       availEntity.SlotAvailable,
		Source:       availEntity.SourcePattern,
		MaxBookings:  maxBookings,
		BookingIDs:   coreEntity.NewJSONDoc([]string{}),
		MeetingTypes: coreEntity.NewJSONDoc([]string{}),
	}
	if err := f.slots.InsertBatch(context.Background(), []availEntity.Slot{slot}); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	return slot.ID
}

func notifyStep(id string, retries int) entity.WorkflowStep {
	return entity.WorkflowStep{
		ID:         id,
		Name:       id,
		Type:       entity.StepNotification,
		Automated:  true,
		Actions:    []entity.StepAction{{Type: entity.ActionSendNotification}},
		MaxRetries: retries,
	}
}

func approvalStep(id, approver string) entity.WorkflowStep {
	return entity.WorkflowStep{
		ID:       id,
		Name:     id,
		Type:     entity.StepApproval,
		Required: true,
		Actions: []entity.StepAction{{
			Type:   entity.ActionRequestApproval,
			Params: map[string]string{"approver": approver},
		}},
	}
}

func resourceStep(id string, retries int) entity.WorkflowStep {
	return entity.WorkflowStep{
		ID:        id,
		Name:      id,
		Type:      entity.StepResourceBooking,
		Automated: true,
		Actions: []entity.StepAction{{
			Type:   entity.ActionBookResource,
			Params: map[string]string{"resource_type": "room"},
		}},
		MaxRetries: retries,
	}
}

func bookingRequest(workflowID, hostID uuid.UUID, windows ...entity.CandidateWindow) *dto.CreateBookingRequest {
	if len(windows) == 0 {
		windows = []entity.CandidateWindow{{Start: bookRef.Add(10 * time.Hour), End: bookRef.Add(12 * time.Hour), Priority: 1}}
	}
	return &dto.CreateBookingRequest{
		WorkflowID:       workflowID.String(),
		HostUserID:       hostID.String(),
		Title:            "Design review",
		DurationMinutes:  30,
		CandidateWindows: windows,
	}
}

func TestEngine_ConfirmsFullyAutomatedWorkflow(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	slotID := f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{notifyStep("notify", 0), resourceStep("room", 0)}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}

	if resp.Status != string(entity.BookingConfirmed) {
		t.Fatalf("expected confirmed, got %s", resp.Status)
	}
	if resp.ConfirmedAt == nil {
		t.Fatal("missing confirmation timestamp")
	}
	if resp.State.CurrentStep != 2 || len(resp.State.CompletedStepIDs) != 2 || len(resp.State.PendingStepIDs) != 0 {
		t.Fatalf("workflow state mismatch: %+v", resp.State)
	}
	if len(f.resources.reserved) != 1 || len(resp.Resources) != 1 {
		t.Fatalf("expected one reservation, got %d", len(f.resources.reserved))
	}
	if f.mirror.created != 1 {
		t.Fatalf("expected one mirrored event, got %d", f.mirror.created)
	}

	slot, appErr := f.ledger.Get(context.Background(), slotID)
	if appErr != nil {
		t.Fatalf("Get slot: %v", appErr)
	}
	if slot.Status != availEntity.SlotBooked || !slot.HasBooking(resp.ID) {
		t.Fatalf("slot not held by the booking: %+v", slot)
	}
}

func TestEngine_ApprovalHaltsThenResumes(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{
		notifyStep("auto-1", 0),
		notifyStep("auto-2", 0),
		approvalStep("manager-approval", "manager@corp.test"),
		notifyStep("auto-3", 0),
	}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}

	// Both automated steps completed, halted on the approval step.
	if resp.Status != string(entity.BookingPendingApproval) {
		t.Fatalf("expected pending_approval, got %s", resp.Status)
	}
	if resp.State.CurrentStep != 2 || !resp.State.AwaitingApproval {
		t.Fatalf("expected halt at step index 2, got %+v", resp.State)
	}
	if len(resp.State.Approvals) != 1 || resp.State.Approvals[0].Decision != entity.ApprovalPending {
		t.Fatalf("expected one pending approval record, got %+v", resp.State.Approvals)
	}

	bookingID := uuid.MustParse(resp.ID)
	approved, appErr := f.engine.ApproveBooking(context.Background(), bookingID, "manager@corp.test", "ok")
	if appErr != nil {
		t.Fatalf("ApproveBooking: %v", appErr)
	}
	if approved.Status != string(entity.BookingConfirmed) {
		t.Fatalf("expected confirmed after approval, got %s", approved.Status)
	}
	if approved.State.CurrentStep != 4 {
		t.Fatalf("current step should have advanced past the last step, got %d", approved.State.CurrentStep)
	}
	if approved.State.CurrentStep < resp.State.CurrentStep {
		t.Fatal("current step went backwards")
	}
	if approved.State.Approvals[0].Decision != entity.ApprovalApproved || approved.State.Approvals[0].DecidedAt == nil {
		t.Fatalf("approval record not resolved: %+v", approved.State.Approvals[0])
	}
}

func TestEngine_RejectReleasesSlotAndAbsorbs(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	slotID := f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{approvalStep("gate", "boss@corp.test")}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}
	bookingID := uuid.MustParse(resp.ID)

	rejected, appErr := f.engine.RejectBooking(context.Background(), bookingID, "boss@corp.test", "no budget")
	if appErr != nil {
		t.Fatalf("RejectBooking: %v", appErr)
	}
	if rejected.Status != string(entity.BookingRejected) {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	slot, _ := f.ledger.Get(context.Background(), slotID)
	if slot.Status != availEntity.SlotAvailable || slot.CurrentBookings != 0 {
		t.Fatalf("rejection must release the slot: %+v", slot)
	}

	// Rejection is absorbing: a later approval attempt fails.
	if _, appErr := f.engine.ApproveBooking(context.Background(), bookingID, "boss@corp.test", ""); appErr == nil {
		t.Fatal("approving a rejected booking must fail")
	}
}

func TestEngine_RetryExhaustionRejects(t *testing.T) {
	f := newEngineFixture(t)
	f.resources.failTimes = -1 // always fail
	hostID := uuid.New()
	slotID := f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{resourceStep("room", 1)}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}
	if resp.Status != string(entity.BookingDraft) {
		t.Fatalf("first failure should leave the booking retrying in draft, got %s", resp.Status)
	}
	if _, delayed := f.scheduler.Pending(); delayed != 1 {
		t.Fatalf("expected one scheduled retry, got %d", delayed)
	}

	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	booking, _ := f.bookings.GetByID(context.Background(), uuid.MustParse(resp.ID))
	if booking.Status != entity.BookingRejected {
		t.Fatalf("exhausted retries must reject, got %s", booking.Status)
	}
	if !strings.Contains(booking.State.V.LastError, string(errors.ErrStepExecution)) {
		t.Fatalf("recorded error should carry the step-execution code, got %q", booking.State.V.LastError)
	}

	slot, _ := f.ledger.Get(context.Background(), slotID)
	if slot.Status != availEntity.SlotAvailable || slot.CurrentBookings != 0 {
		t.Fatalf("terminal rejection must release the slot: %+v", slot)
	}
}

func TestEngine_TransientFailureRecoversOnRetry(t *testing.T) {
	f := newEngineFixture(t)
	f.resources.failTimes = 1
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{resourceStep("room", 2)}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}

	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	booking, _ := f.bookings.GetByID(context.Background(), uuid.MustParse(resp.ID))
	if booking.Status != entity.BookingConfirmed {
		t.Fatalf("expected confirmation after the retry, got %s", booking.Status)
	}
	if len(booking.Resources.V) != 1 {
		t.Fatalf("expected one reservation, got %d", len(booking.Resources.V))
	}
	if booking.State.V.LastError != "" {
		t.Fatalf("recovered step should clear the recorded error, got %q", booking.State.V.LastError)
	}
}

func TestEngine_CancelReleasesAndWinsOverPendingRetry(t *testing.T) {
	f := newEngineFixture(t)
	f.resources.failTimes = -1
	hostID := uuid.New()
	slotID := f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{resourceStep("room", 5)}, entity.Requirements{})

	requesterID := uuid.New()
	resp, appErr := f.engine.CreateBookingRequest(context.Background(), requesterID, bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}
	bookingID := uuid.MustParse(resp.ID)

	cancelled, appErr := f.engine.CancelBooking(context.Background(), bookingID, requesterID)
	if appErr != nil {
		t.Fatalf("CancelBooking: %v", appErr)
	}
	if cancelled.Status != string(entity.BookingCancelled) {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	slot, _ := f.ledger.Get(context.Background(), slotID)
	if slot.CurrentBookings != 0 {
		t.Fatalf("cancellation must release the slot: %+v", slot)
	}

	// The scheduled retry runs after cancellation and must not re-activate.
	if err := f.scheduler.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	booking, _ := f.bookings.GetByID(context.Background(), bookingID)
	if booking.Status != entity.BookingCancelled {
		t.Fatalf("retry re-activated a cancelled booking: %s", booking.Status)
	}

	// Cancellation is absorbing.
	if _, appErr := f.engine.CancelBooking(context.Background(), bookingID, requesterID); appErr == nil {
		t.Fatal("cancelling twice must fail")
	}

	f.engine.locksMu.Lock()
	_, held := f.engine.locks[bookingID]
	f.engine.locksMu.Unlock()
	if held {
		t.Fatal("terminal booking should drop its serializer")
	}
}

func TestEngine_ConditionSkipsStep(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)

	gated := notifyStep("interview-only", 0)
	gated.Conditions = []entity.Condition{{Field: "meeting_type", Operator: entity.OpEq, Value: "interview"}}
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{gated}, entity.Requirements{})

	req := bookingRequest(workflowID, hostID)
	req.MeetingType = "standup"
	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), req)
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}

	if resp.Status != string(entity.BookingConfirmed) {
		t.Fatalf("skipped step should confirm directly, got %s", resp.Status)
	}
	if len(resp.State.CompletedStepIDs) != 1 || resp.State.CompletedStepIDs[0] != "interview-only" {
		t.Fatalf("skipped step must still be marked completed: %+v", resp.State)
	}
	if f.notifier.sends != 0 {
		t.Fatalf("skipped step must not execute its actions, got %d sends", f.notifier.sends)
	}
}

func TestEngine_RequirementsGateAdmission(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)

	cases := []struct {
		name string
		reqs entity.Requirements
		req  func(workflowID uuid.UUID) *dto.CreateBookingRequest
	}{
		{
			name: "min notice",
			reqs: entity.Requirements{MinNoticeHours: 24},
			req: func(id uuid.UUID) *dto.CreateBookingRequest {
				return bookingRequest(id, hostID) // window 10h out, below 24h notice
			},
		},
		{
			name: "max advance",
			reqs: entity.Requirements{MaxAdvanceDays: 1},
			req: func(id uuid.UUID) *dto.CreateBookingRequest {
				return bookingRequest(id, hostID, entity.CandidateWindow{
					Start: bookRef.AddDate(0, 0, 10), End: bookRef.AddDate(0, 0, 10).Add(2 * time.Hour), Priority: 1,
				})
			},
		},
		{
			name: "weekend excluded",
			reqs: entity.Requirements{},
			req: func(id uuid.UUID) *dto.CreateBookingRequest {
				saturday := bookRef.AddDate(0, 0, 5).Add(10 * time.Hour)
				return bookingRequest(id, hostID, entity.CandidateWindow{Start: saturday, End: saturday.Add(2 * time.Hour), Priority: 1})
			},
		},
		{
			name: "duration below minimum",
			reqs: entity.Requirements{MinDurationMinutes: 60},
			req: func(id uuid.UUID) *dto.CreateBookingRequest {
				return bookingRequest(id, hostID)
			},
		},
		{
			name: "outside business hours",
			reqs: entity.Requirements{BusinessHoursOnly: true},
			req: func(id uuid.UUID) *dto.CreateBookingRequest {
				evening := bookRef.Add(19 * time.Hour)
				return bookingRequest(id, hostID, entity.CandidateWindow{Start: evening, End: evening.Add(2 * time.Hour), Priority: 1})
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			workflowID := f.seedWorkflow(t, []entity.WorkflowStep{notifyStep("n", 0)}, tc.reqs)
			_, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), tc.req(workflowID))
			if appErr == nil || appErr.Code != errors.ErrInvalidInput {
				t.Fatalf("expected validation failure, got %+v", appErr)
			}
		})
	}
}

func TestEngine_EqualPriorityPicksEarliestStart(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	early := bookRef.Add(9 * time.Hour)
	late := bookRef.Add(14 * time.Hour)
	f.seedHostSlot(t, hostID, early, 1)
	f.seedHostSlot(t, hostID, late, 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{notifyStep("n", 0)}, entity.Requirements{})

	// Later window listed first; equal priority must still pick the earlier start.
	req := bookingRequest(workflowID, hostID,
		entity.CandidateWindow{Start: late, End: late.Add(2 * time.Hour), Priority: 3},
		entity.CandidateWindow{Start: early, End: early.Add(2 * time.Hour), Priority: 3},
	)
	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), req)
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}
	if !resp.StartTime.Equal(early) {
		t.Fatalf("expected earliest equal-priority window, got %s", resp.StartTime)
	}
}

func TestEngine_HigherPriorityBeatsEarlierStart(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	early := bookRef.Add(9 * time.Hour)
	late := bookRef.Add(14 * time.Hour)
	f.seedHostSlot(t, hostID, early, 1)
	f.seedHostSlot(t, hostID, late, 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{notifyStep("n", 0)}, entity.Requirements{})

	req := bookingRequest(workflowID, hostID,
		entity.CandidateWindow{Start: early, End: early.Add(2 * time.Hour), Priority: 1},
		entity.CandidateWindow{Start: late, End: late.Add(2 * time.Hour), Priority: 5},
	)
	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), req)
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}
	if !resp.StartTime.Equal(late) {
		t.Fatalf("expected the higher-priority window, got %s", resp.StartTime)
	}
}

func TestEngine_ConcurrentCapConflict(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	f.seedHostSlot(t, hostID, bookRef.Add(11*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{notifyStep("n", 0)}, entity.Requirements{MaxConcurrentActive: 1})

	requesterID := uuid.New()
	if _, appErr := f.engine.CreateBookingRequest(context.Background(), requesterID, bookingRequest(workflowID, hostID)); appErr != nil {
		t.Fatalf("first booking: %v", appErr)
	}

	_, appErr := f.engine.CreateBookingRequest(context.Background(), requesterID, bookingRequest(workflowID, hostID))
	if appErr == nil || appErr.Code != errors.ErrConflict {
		t.Fatalf("expected concurrent-cap conflict, got %+v", appErr)
	}
	details, ok := appErr.Details.([]errors.ConflictDetail)
	if !ok || len(details) == 0 || details[0].Type != "concurrent_cap" {
		t.Fatalf("expected a concurrent_cap detail, got %+v", appErr.Details)
	}
}

func TestEngine_AttendeeDoubleBookingAborts(t *testing.T) {
	f := newEngineFixture(t)
	hostA := uuid.New()
	hostB := uuid.New()
	start := bookRef.Add(10 * time.Hour)
	f.seedHostSlot(t, hostA, start, 1)
	f.seedHostSlot(t, hostB, start, 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{notifyStep("n", 0)}, entity.Requirements{})

	attendee := entity.Attendee{Email: "dana@corp.test", Role: entity.AttendeeRequired}

	first := bookingRequest(workflowID, hostA)
	first.Attendees = []entity.Attendee{attendee}
	if _, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), first); appErr != nil {
		t.Fatalf("first booking: %v", appErr)
	}

	second := bookingRequest(workflowID, hostB)
	second.Attendees = []entity.Attendee{attendee}
	_, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), second)
	if appErr == nil || appErr.Code != errors.ErrConflict {
		t.Fatalf("expected double-booking conflict, got %+v", appErr)
	}
	details, ok := appErr.Details.([]errors.ConflictDetail)
	if !ok || len(details) == 0 || details[0].Type != "attendee_double_booking" {
		t.Fatalf("expected attendee conflict detail, got %+v", appErr.Details)
	}
}

func TestEngine_TokenDecisionConfirms(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{approvalStep("gate", "cfo@corp.test")}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}

	token, err := f.tokens.Issue(uuid.MustParse(resp.ID), "gate", "cfo@corp.test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	decided, appErr := f.engine.DecideByToken(context.Background(), token, true, "approved via link")
	if appErr != nil {
		t.Fatalf("DecideByToken: %v", appErr)
	}
	if decided.Status != string(entity.BookingConfirmed) {
		t.Fatalf("expected confirmed, got %s", decided.Status)
	}

	if _, appErr := f.engine.DecideByToken(context.Background(), "not-a-token", true, ""); appErr == nil {
		t.Fatal("garbage token must be rejected")
	}
}

func TestEngine_TemplateEditsDoNotTouchInFlightBookings(t *testing.T) {
	f := newEngineFixture(t)
	hostID := uuid.New()
	f.seedHostSlot(t, hostID, bookRef.Add(10*time.Hour), 1)
	workflowID := f.seedWorkflow(t, []entity.WorkflowStep{
		approvalStep("gate", "lead@corp.test"),
		notifyStep("after", 0),
	}, entity.Requirements{})

	resp, appErr := f.engine.CreateBookingRequest(context.Background(), uuid.New(), bookingRequest(workflowID, hostID))
	if appErr != nil {
		t.Fatalf("CreateBookingRequest: %v", appErr)
	}

	// Rewrite the template mid-flight with a step that would always fail.
	workflow, _ := f.workflows.GetByID(context.Background(), workflowID)
	workflow.Steps = coreEntity.NewJSONDoc([]entity.WorkflowStep{resourceStep("new-step", 0)})
	if err := f.workflows.Update(context.Background(), workflow); err != nil {
		t.Fatalf("Update: %v", err)
	}
	f.resources.failTimes = -1

	approved, appErr := f.engine.ApproveBooking(context.Background(), uuid.MustParse(resp.ID), "lead@corp.test", "")
	if appErr != nil {
		t.Fatalf("ApproveBooking: %v", appErr)
	}
	if approved.Status != string(entity.BookingConfirmed) {
		t.Fatalf("booking must finish on its copied steps, got %s", approved.Status)
	}
}
