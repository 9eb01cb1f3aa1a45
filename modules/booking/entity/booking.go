package entity

import (
	"time"

	"github.com/google/uuid"

	coreEntity "go-meeting-core/core/entity"
)

type BookingStatus string

const (
	BookingDraft           BookingStatus = "draft"
	BookingPendingApproval BookingStatus = "pending_approval"
	BookingApproved        BookingStatus = "approved"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingInProgress      BookingStatus = "in_progress"
	BookingCompleted       BookingStatus = "completed"
	BookingCancelled       BookingStatus = "cancelled"
	BookingRejected        BookingStatus = "rejected"
)

// IsTerminal reports whether the status absorbs: no workflow step, approval
// or cancellation may move the booking out of it.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingRejected:
		return true
	}
	return false
}

// CandidateWindow is one requester-ranked option for the meeting time.
// Higher priority wins; equal priorities are broken by earliest start.
type CandidateWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Priority int       `json:"priority"`
}

type AttendeeRole string

const (
	AttendeeRequired AttendeeRole = "required"
	AttendeeOptional AttendeeRole = "optional"
)

type Attendee struct {
	UserID   string       `json:"user_id,omitempty"` // empty for external attendees
	Email    string       `json:"email"`
	Name     string       `json:"name,omitempty"`
	Role     AttendeeRole `json:"role"`
	External bool         `json:"external"`
	Response string       `json:"response,omitempty"` // accepted | declined | tentative
}

type ApprovalDecision string

const (
	ApprovalPending  ApprovalDecision = "pending"
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalRejected ApprovalDecision = "rejected"
)

type ApprovalRecord struct {
	StepID      string           `json:"step_id"`
	Approver    string           `json:"approver"`
	Decision    ApprovalDecision `json:"decision"`
	Comment     string           `json:"comment,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
}

type NotificationRecord struct {
	StepID   string    `json:"step_id"`
	Channel  string    `json:"channel"`
	Outcome  string    `json:"outcome"` // sent | failed | queued
	SentAt   time.Time `json:"sent_at"`
	Detail   string    `json:"detail,omitempty"`
}

type ResourceReservation struct {
	ReservationID string    `json:"reservation_id"`
	ResourceType  string    `json:"resource_type"`
	Quantity      int       `json:"quantity"`
	ReservedAt    time.Time `json:"reserved_at"`
}

// WorkflowState is the durable execution state of one booking. A suspended
// approval is state here, never a blocked goroutine.
type WorkflowState struct {
	CurrentStep      int                  `json:"current_step"`
	CompletedStepIDs []string             `json:"completed_step_ids"`
	PendingStepIDs   []string             `json:"pending_step_ids"`
	Approvals        []ApprovalRecord     `json:"approvals,omitempty"`
	Notifications    []NotificationRecord `json:"notifications,omitempty"`
	RetryCount       int                  `json:"retry_count"`
	AwaitingApproval bool                 `json:"awaiting_approval"`
	LastError        string               `json:"last_error,omitempty"`
}

// Booking is an admitted request progressing through its copied workflow
// steps. Only the workflow engine mutates it.
type Booking struct {
	coreEntity.BaseEntity
	RequesterID      uuid.UUID                                 `db:"requester_id" json:"requester_id"`
	HostUserID       uuid.UUID                                 `db:"host_user_id" json:"host_user_id"`
	WorkflowID       uuid.UUID                                 `db:"workflow_id" json:"workflow_id"`
	SlotID           *uuid.UUID                                `db:"slot_id" json:"slot_id,omitempty"`
	Title            string                                    `db:"title" json:"title"`
	MeetingType      string                                    `db:"meeting_type" json:"meeting_type"`
	Location         string                                    `db:"location" json:"location"`
	DurationMinutes  int                                       `db:"duration_minutes" json:"duration_minutes"`
	StartTime        time.Time                                 `db:"start_time" json:"start_time"`
	EndTime          time.Time                                 `db:"end_time" json:"end_time"`
	Status           BookingStatus                             `db:"status" json:"status"`
	CandidateWindows coreEntity.JSONDoc[[]CandidateWindow]     `db:"candidate_windows" json:"candidate_windows"`
	Attendees        coreEntity.JSONDoc[[]Attendee]            `db:"attendees" json:"attendees"`
	Resources        coreEntity.JSONDoc[[]ResourceReservation] `db:"resources" json:"resources"`
	WorkflowSteps    coreEntity.JSONDoc[[]WorkflowStep]        `db:"workflow_steps" json:"workflow_steps"`
	State            coreEntity.JSONDoc[WorkflowState]         `db:"state" json:"state"`
	ConfirmedAt      *time.Time                                `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// Overlaps reports half-open interval overlap with [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

func (b *Booking) HasAttendee(email string) bool {
	for _, a := range b.Attendees.V {
		if a.Email == email {
			return true
		}
	}
	return false
}
