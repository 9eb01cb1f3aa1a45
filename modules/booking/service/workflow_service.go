package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/booking/dto"
	"go-meeting-core/modules/booking/entity"
	"go-meeting-core/modules/booking/repository"
)

type WorkflowServiceInterface interface {
	CreateWorkflow(ctx context.Context, req *dto.CreateWorkflowRequest) (*dto.WorkflowResponse, *errors.AppError)
	GetWorkflow(ctx context.Context, id uuid.UUID) (*dto.WorkflowResponse, *errors.AppError)
	ListWorkflows(ctx context.Context) ([]dto.WorkflowResponse, *errors.AppError)
	UpdateWorkflow(ctx context.Context, id uuid.UUID, req *dto.UpdateWorkflowRequest) (*dto.WorkflowResponse, *errors.AppError)
	DeleteWorkflow(ctx context.Context, id uuid.UUID) *errors.AppError
}

// WorkflowService manages workflow templates. Template edits never touch
// bookings already in flight: each booking carries its own copy of the steps.
type WorkflowService struct {
	workflowRepo repository.WorkflowRepositoryInterface
}

func NewWorkflowService(workflowRepo repository.WorkflowRepositoryInterface) *WorkflowService {
	return &WorkflowService{workflowRepo: workflowRepo}
}

func (s *WorkflowService) CreateWorkflow(ctx context.Context, req *dto.CreateWorkflowRequest) (*dto.WorkflowResponse, *errors.AppError) {
	logger.Info("WorkflowService:CreateWorkflow:Start", "name", req.Name)

	if req.Name == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Workflow name is required", nil)
	}
	if len(req.Steps) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Workflow needs at least one step", nil)
	}
	if appErr := validateSteps(req.Steps); appErr != nil {
		return nil, appErr
	}

	workflow := &entity.BookingWorkflow{
		Name:         req.Name,
		Description:  req.Description,
		IsActive:     req.IsActive,
		Steps:        coreEntity.NewJSONDoc(req.Steps),
		Requirements: coreEntity.NewJSONDoc(req.Requirements),
	}
	created, err := s.workflowRepo.Create(ctx, workflow)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create workflow", err)
	}
	return dto.ToWorkflowResponse(created), nil
}

func (s *WorkflowService) GetWorkflow(ctx context.Context, id uuid.UUID) (*dto.WorkflowResponse, *errors.AppError) {
	workflow, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load workflow", err)
	}
	if workflow == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Workflow not found", nil)
	}
	return dto.ToWorkflowResponse(workflow), nil
}

func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]dto.WorkflowResponse, *errors.AppError) {
	workflows, err := s.workflowRepo.List(ctx)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list workflows", err)
	}
	out := make([]dto.WorkflowResponse, 0, len(workflows))
	for i := range workflows {
		out = append(out, *dto.ToWorkflowResponse(&workflows[i]))
	}
	return out, nil
}

func (s *WorkflowService) UpdateWorkflow(ctx context.Context, id uuid.UUID, req *dto.UpdateWorkflowRequest) (*dto.WorkflowResponse, *errors.AppError) {
	logger.Info("WorkflowService:UpdateWorkflow:Start", "workflow_id", id)

	workflow, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load workflow", err)
	}
	if workflow == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Workflow not found", nil)
	}

	if req.Name != "" {
		workflow.Name = req.Name
	}
	if req.Description != "" {
		workflow.Description = req.Description
	}
	if req.IsActive != nil {
		workflow.IsActive = *req.IsActive
	}
	if req.Steps != nil {
		if appErr := validateSteps(*req.Steps); appErr != nil {
			return nil, appErr
		}
		workflow.Steps = coreEntity.NewJSONDoc(*req.Steps)
	}
	if req.Requirements != nil {
		workflow.Requirements = coreEntity.NewJSONDoc(*req.Requirements)
	}

	if err := s.workflowRepo.Update(ctx, workflow); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to update workflow", err)
	}
	return dto.ToWorkflowResponse(workflow), nil
}

func (s *WorkflowService) DeleteWorkflow(ctx context.Context, id uuid.UUID) *errors.AppError {
	workflow, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to load workflow", err)
	}
	if workflow == nil {
		return errors.NewAppError(errors.ErrNotFound, "Workflow not found", nil)
	}
	if err := s.workflowRepo.Delete(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to delete workflow", err)
	}
	logger.Info("WorkflowService:DeleteWorkflow:Success", "workflow_id", id)
	return nil
}

func validateSteps(steps []entity.WorkflowStep) *errors.AppError {
	seen := make(map[string]struct{}, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			return errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Step %d is missing an id", i), nil)
		}
		if _, dup := seen[step.ID]; dup {
			return errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Duplicate step id %q", step.ID), nil)
		}
		seen[step.ID] = struct{}{}
		if step.MaxRetries < 0 {
			return errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Step %q has a negative retry count", step.ID), nil)
		}
		switch step.Type {
		case entity.StepValidation, entity.StepApproval, entity.StepResourceBooking,
			entity.StepCalendarCreation, entity.StepNotification, entity.StepCustom:
		default:
			return errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Step %q has unknown type %q", step.ID, step.Type), nil)
		}
	}
	return nil
}
