package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"go-meeting-core/core/errors"
	"go-meeting-core/modules/booking/dto"
	"go-meeting-core/modules/booking/entity"
	"go-meeting-core/modules/booking/repository"
)

func newWorkflowService() *WorkflowService {
	return NewWorkflowService(repository.NewMemoryWorkflowRepository())
}

func TestWorkflowService_CreateAndGet(t *testing.T) {
	svc := newWorkflowService()

	created, appErr := svc.CreateWorkflow(context.Background(), &dto.CreateWorkflowRequest{
		Name:     "interview loop",
		IsActive: true,
		Steps: []entity.WorkflowStep{
			{ID: "notify", Name: "notify", Type: entity.StepNotification},
			{ID: "gate", Name: "gate", Type: entity.StepApproval, Required: true},
		},
		Requirements: entity.Requirements{MinNoticeHours: 4},
	})
	if appErr != nil {
		t.Fatalf("CreateWorkflow: %v", appErr)
	}

	got, appErr := svc.GetWorkflow(context.Background(), uuid.MustParse(created.ID))
	if appErr != nil {
		t.Fatalf("GetWorkflow: %v", appErr)
	}
	if got.Name != "interview loop" || len(got.Steps) != 2 || got.Requirements.MinNoticeHours != 4 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestWorkflowService_StepValidation(t *testing.T) {
	svc := newWorkflowService()

	cases := []struct {
		name  string
		steps []entity.WorkflowStep
	}{
		{"no steps", nil},
		{"missing step id", []entity.WorkflowStep{{Name: "n", Type: entity.StepNotification}}},
		{"duplicate step id", []entity.WorkflowStep{
			{ID: "a", Type: entity.StepNotification},
			{ID: "a", Type: entity.StepApproval},
		}},
		{"negative retries", []entity.WorkflowStep{{ID: "a", Type: entity.StepNotification, MaxRetries: -1}}},
		{"unknown type", []entity.WorkflowStep{{ID: "a", Type: "teleport"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, appErr := svc.CreateWorkflow(context.Background(), &dto.CreateWorkflowRequest{
				Name:  "bad",
				Steps: tc.steps,
			})
			if appErr == nil || appErr.Code != errors.ErrInvalidInput {
				t.Fatalf("expected invalid input, got %+v", appErr)
			}
		})
	}
}

func TestWorkflowService_UpdateRevalidatesSteps(t *testing.T) {
	svc := newWorkflowService()

	created, appErr := svc.CreateWorkflow(context.Background(), &dto.CreateWorkflowRequest{
		Name:  "basic",
		Steps: []entity.WorkflowStep{{ID: "a", Type: entity.StepNotification}},
	})
	if appErr != nil {
		t.Fatalf("CreateWorkflow: %v", appErr)
	}
	id := uuid.MustParse(created.ID)

	bad := []entity.WorkflowStep{{ID: "", Type: entity.StepNotification}}
	if _, appErr := svc.UpdateWorkflow(context.Background(), id, &dto.UpdateWorkflowRequest{Steps: &bad}); appErr == nil {
		t.Fatal("update with an invalid step must fail")
	}

	active := true
	updated, appErr := svc.UpdateWorkflow(context.Background(), id, &dto.UpdateWorkflowRequest{Name: "renamed", IsActive: &active})
	if appErr != nil {
		t.Fatalf("UpdateWorkflow: %v", appErr)
	}
	if updated.Name != "renamed" || !updated.IsActive {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestWorkflowService_DeleteMissing(t *testing.T) {
	svc := newWorkflowService()
	if appErr := svc.DeleteWorkflow(context.Background(), uuid.New()); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Fatalf("expected not found, got %+v", appErr)
	}
}
