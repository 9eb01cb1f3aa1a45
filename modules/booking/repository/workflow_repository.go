package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/booking/entity"
)

// WorkflowRepositoryInterface stores reusable workflow templates.
type WorkflowRepositoryInterface interface {
	Create(ctx context.Context, workflow *entity.BookingWorkflow) (*entity.BookingWorkflow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BookingWorkflow, error)
	List(ctx context.Context) ([]entity.BookingWorkflow, error)
	Update(ctx context.Context, workflow *entity.BookingWorkflow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type WorkflowRepository struct {
	DB database.IDatabase
}

func NewWorkflowRepository(db database.IDatabase) *WorkflowRepository {
	return &WorkflowRepository{DB: db}
}

const workflowColumns = `id, name, description, is_active, steps, requirements, created_at, updated_at`

func (r *WorkflowRepository) Create(ctx context.Context, workflow *entity.BookingWorkflow) (*entity.BookingWorkflow, error) {
	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	query := `
		INSERT INTO booking_workflows (id, name, description, is_active, steps, requirements)
		VALUES (:id, :name, :description, :is_active, :steps, :requirements)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, workflow); err != nil {
		logger.Error("WorkflowRepository:Create", err)
		return nil, err
	}
	return workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.BookingWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM booking_workflows WHERE id = $1`

	var workflow entity.BookingWorkflow
	err := r.DB.GetContext(ctx, &workflow, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("WorkflowRepository:GetByID", err)
		return nil, err
	}
	return &workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]entity.BookingWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM booking_workflows ORDER BY created_at`

	var workflows []entity.BookingWorkflow
	if err := r.DB.SelectContext(ctx, &workflows, query); err != nil {
		logger.Error("WorkflowRepository:List", err)
		return nil, err
	}
	return workflows, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *entity.BookingWorkflow) error {
	query := `
		UPDATE booking_workflows
		SET name = $2, description = $3, is_active = $4, steps = $5, requirements = $6, updated_at = NOW()
		WHERE id = $1
	`
	err := r.DB.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.IsActive, workflow.Steps, workflow.Requirements)
	if err != nil {
		logger.Error("WorkflowRepository:Update", err)
	}
	return err
}

func (r *WorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.DB.ExecContext(ctx, `DELETE FROM booking_workflows WHERE id = $1`, id)
	if err != nil {
		logger.Error("WorkflowRepository:Delete", err)
	}
	return err
}
