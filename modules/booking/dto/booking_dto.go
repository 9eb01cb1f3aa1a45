package dto

import (
	"time"

	"go-meeting-core/modules/booking/entity"
)

// ===================== Request DTOs =====================

type CreateWorkflowRequest struct {
	Name         string                `json:"name" validate:"required"`
	Description  string                `json:"description"`
	IsActive     bool                  `json:"is_active"`
	Steps        []entity.WorkflowStep `json:"steps" validate:"required"`
	Requirements entity.Requirements   `json:"requirements"`
}

type UpdateWorkflowRequest struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	IsActive     *bool                  `json:"is_active"`
	Steps        *[]entity.WorkflowStep `json:"steps"`
	Requirements *entity.Requirements   `json:"requirements"`
}

// CreateBookingRequest admits a new booking through a workflow template.
type CreateBookingRequest struct {
	WorkflowID       string                   `json:"workflow_id" validate:"required"`
	HostUserID       string                   `json:"host_user_id" validate:"required"`
	Title            string                   `json:"title" validate:"required"`
	MeetingType      string                   `json:"meeting_type,omitempty"`
	Location         string                   `json:"location,omitempty"`
	DurationMinutes  int                      `json:"duration_minutes" validate:"required,min=5"`
	CandidateWindows []entity.CandidateWindow `json:"candidate_windows" validate:"required"`
	Attendees        []entity.Attendee        `json:"attendees"`
}

type ApprovalActionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// ===================== Response DTOs =====================

type WorkflowResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	IsActive     bool                  `json:"is_active"`
	Steps        []entity.WorkflowStep `json:"steps"`
	Requirements entity.Requirements   `json:"requirements"`
	CreatedAt    time.Time             `json:"created_at"`
}

type WorkflowStateView struct {
	CurrentStep      int                         `json:"current_step"`
	CompletedStepIDs []string                    `json:"completed_step_ids"`
	PendingStepIDs   []string                    `json:"pending_step_ids"`
	Approvals        []entity.ApprovalRecord     `json:"approvals,omitempty"`
	Notifications    []entity.NotificationRecord `json:"notifications,omitempty"`
	AwaitingApproval bool                        `json:"awaiting_approval"`
	LastError        string                      `json:"last_error,omitempty"`
}

type BookingResponse struct {
	ID              string                       `json:"id"`
	RequesterID     string                       `json:"requester_id"`
	HostUserID      string                       `json:"host_user_id"`
	WorkflowID      string                       `json:"workflow_id"`
	SlotID          string                       `json:"slot_id,omitempty"`
	Title           string                       `json:"title"`
	MeetingType     string                       `json:"meeting_type,omitempty"`
	Location        string                       `json:"location,omitempty"`
	DurationMinutes int                          `json:"duration_minutes"`
	StartTime       time.Time                    `json:"start_time"`
	EndTime         time.Time                    `json:"end_time"`
	Status          string                       `json:"status"`
	Attendees       []entity.Attendee            `json:"attendees"`
	Resources       []entity.ResourceReservation `json:"resources,omitempty"`
	State           WorkflowStateView            `json:"state"`
	ConfirmedAt     *time.Time                   `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
}

// ===================== Mappers =====================

func ToWorkflowResponse(w *entity.BookingWorkflow) *WorkflowResponse {
	return &WorkflowResponse{
		ID:           w.ID.String(),
		Name:         w.Name,
		Description:  w.Description,
		IsActive:     w.IsActive,
		Steps:        w.Steps.V,
		Requirements: w.Requirements.V,
		CreatedAt:    w.CreatedAt,
	}
}

func ToBookingResponse(b *entity.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:              b.ID.String(),
		RequesterID:     b.RequesterID.String(),
		HostUserID:      b.HostUserID.String(),
		WorkflowID:      b.WorkflowID.String(),
		Title:           b.Title,
		MeetingType:     b.MeetingType,
		Location:        b.Location,
		DurationMinutes: b.DurationMinutes,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Status:          string(b.Status),
		Attendees:       b.Attendees.V,
		Resources:       b.Resources.V,
		State: WorkflowStateView{
			CurrentStep:      b.State.V.CurrentStep,
			CompletedStepIDs: b.State.V.CompletedStepIDs,
			PendingStepIDs:   b.State.V.PendingStepIDs,
			Approvals:        b.State.V.Approvals,
			Notifications:    b.State.V.Notifications,
			AwaitingApproval: b.State.V.AwaitingApproval,
			LastError:        b.State.V.LastError,
		},
		ConfirmedAt: b.ConfirmedAt,
		CreatedAt:   b.CreatedAt,
	}
	if b.SlotID != nil {
		resp.SlotID = b.SlotID.String()
	}
	return resp
}
