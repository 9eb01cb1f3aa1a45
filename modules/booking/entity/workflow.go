package entity

import (
	coreEntity "go-meeting-core/core/entity"
)

type StepType string

const (
	StepValidation       StepType = "validation"
	StepApproval         StepType = "approval"
	StepResourceBooking  StepType = "resource_booking"
	StepCalendarCreation StepType = "calendar_creation"
	StepNotification     StepType = "notification"
	StepCustom           StepType = "custom"
)

type ActionType string

const (
	ActionSendNotification ActionType = "send_notification"
	ActionRequestApproval  ActionType = "request_approval"
	ActionBookResource     ActionType = "book_resource"
	ActionCreateEvent      ActionType = "create_event"
	ActionCustom           ActionType = "custom"
)

type ConditionOperator string

const (
	OpEq       ConditionOperator = "eq"
	OpNeq      ConditionOperator = "neq"
	OpGt       ConditionOperator = "gt"
	OpLt       ConditionOperator = "lt"
	OpContains ConditionOperator = "contains"
)

// Condition is a predicate evaluated against booking fields before a step
// runs. All of a step's conditions must hold for the step to execute.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// StepAction is one unit of work inside a step. Params carry the
// action-specific inputs (recipients, resource type, custom action name...).
type StepAction struct {
	Type   ActionType        `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// WorkflowStep executes all of its actions or none of them: a failed action
// fails the whole step and the step is retried as a unit.
type WorkflowStep struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           StepType     `json:"type"`
	Required       bool         `json:"required"`
	Automated      bool         `json:"automated"`
	Conditions     []Condition  `json:"conditions,omitempty"`
	Actions        []StepAction `json:"actions,omitempty"`
	TimeoutMinutes int          `json:"timeout_minutes,omitempty"`
	MaxRetries     int          `json:"max_retries"`
}

// Requirements gate booking admission before any workflow state exists.
type Requirements struct {
	MinNoticeHours      int  `json:"min_notice_hours"`
	MaxAdvanceDays      int  `json:"max_advance_days"`
	MinDurationMinutes  int  `json:"min_duration_minutes"`
	MaxDurationMinutes  int  `json:"max_duration_minutes"`
	BusinessHoursOnly   bool `json:"business_hours_only"`
	AllowWeekends       bool `json:"allow_weekends"`
	MaxConcurrentActive int  `json:"max_concurrent_active"`
}

// BookingWorkflow is a reusable template. Its steps are copied onto each
// booking at admission, so editing a template never alters in-flight bookings.
type BookingWorkflow struct {
	coreEntity.BaseEntity
	Name         string                              `db:"name" json:"name"`
	Description  string                              `db:"description" json:"description"`
	IsActive     bool                                `db:"is_active" json:"is_active"`
	Steps        coreEntity.JSONDoc[[]WorkflowStep]  `db:"steps" json:"steps"`
	Requirements coreEntity.JSONDoc[Requirements]    `db:"requirements" json:"requirements"`
}

func (BookingWorkflow) TableName() string {
	return "booking_workflows"
}
