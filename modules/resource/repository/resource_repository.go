package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/resource/entity"
)

type ResourceRepositoryInterface interface {
	Create(ctx context.Context, resource *entity.Resource) (*entity.Resource, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Resource, error)
	ListByType(ctx context.Context, resourceType string) ([]entity.Resource, error)
	List(ctx context.Context) ([]entity.Resource, error)
	Update(ctx context.Context, resource *entity.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ReservationRepositoryInterface interface {
	Create(ctx context.Context, reservation *entity.Reservation) (*entity.Reservation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error)
	// ReservedUnits sums confirmed quantities for the resource overlapping
	// [start, end).
	ReservedUnits(ctx context.Context, resourceID uuid.UUID, start, end time.Time) (int, error)
	Update(ctx context.Context, reservation *entity.Reservation) error
}

type ResourceRepository struct {
	DB database.IDatabase
}

func NewResourceRepository(db database.IDatabase) *ResourceRepository {
	return &ResourceRepository{DB: db}
}

const resourceColumns = `id, type, name, capacity, location, is_active, created_at, updated_at`

func (r *ResourceRepository) Create(ctx context.Context, resource *entity.Resource) (*entity.Resource, error) {
	if resource.ID == uuid.Nil {
		resource.ID = uuid.New()
	}
	query := `
		INSERT INTO resources (id, type, name, capacity, location, is_active)
		VALUES (:id, :type, :name, :capacity, :location, :is_active)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, resource); err != nil {
		logger.Error("ResourceRepository:Create", err)
		return nil, err
	}
	return resource, nil
}

func (r *ResourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	var resource entity.Resource
	err := r.DB.GetContext(ctx, &resource, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ResourceRepository:GetByID", err)
		return nil, err
	}
	return &resource, nil
}

func (r *ResourceRepository) ListByType(ctx context.Context, resourceType string) ([]entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE type = $1 AND is_active = true ORDER BY name`

	var resources []entity.Resource
	if err := r.DB.SelectContext(ctx, &resources, query, resourceType); err != nil {
		logger.Error("ResourceRepository:ListByType", err)
		return nil, err
	}
	return resources, nil
}

func (r *ResourceRepository) List(ctx context.Context) ([]entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources ORDER BY type, name`

	var resources []entity.Resource
	if err := r.DB.SelectContext(ctx, &resources, query); err != nil {
		logger.Error("ResourceRepository:List", err)
		return nil, err
	}
	return resources, nil
}

func (r *ResourceRepository) Update(ctx context.Context, resource *entity.Resource) error {
	query := `
		UPDATE resources
		SET type = :type, name = :name, capacity = :capacity,
		    location = :location, is_active = :is_active, updated_at = NOW()
		WHERE id = :id
	`
	if _, err := r.DB.NamedExecContext(ctx, query, resource); err != nil {
		logger.Error("ResourceRepository:Update", err)
		return err
	}
	return nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.DB.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id); err != nil {
		logger.Error("ResourceRepository:Delete", err)
		return err
	}
	return nil
}

type ReservationRepository struct {
	DB database.IDatabase
}

func NewReservationRepository(db database.IDatabase) *ReservationRepository {
	return &ReservationRepository{DB: db}
}

const reservationColumns = `id, resource_id, quantity, start_time, end_time, status, created_at, updated_at`

func (r *ReservationRepository) Create(ctx context.Context, reservation *entity.Reservation) (*entity.Reservation, error) {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	query := `
		INSERT INTO resource_reservations (id, resource_id, quantity, start_time, end_time, status)
		VALUES (:id, :resource_id, :quantity, :start_time, :end_time, :status)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, reservation); err != nil {
		logger.Error("ReservationRepository:Create", err)
		return nil, err
	}
	return reservation, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM resource_reservations WHERE id = $1`

	var reservation entity.Reservation
	err := r.DB.GetContext(ctx, &reservation, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ReservationRepository:GetByID", err)
		return nil, err
	}
	return &reservation, nil
}

func (r *ReservationRepository) ReservedUnits(ctx context.Context, resourceID uuid.UUID, start, end time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0) FROM resource_reservations
		WHERE resource_id = $1 AND status = 'confirmed'
		  AND start_time < $3 AND $2 < end_time
	`
	var used int
	if err := r.DB.GetContext(ctx, &used, query, resourceID, start, end); err != nil {
		logger.Error("ReservationRepository:ReservedUnits", err)
		return 0, err
	}
	return used, nil
}

func (r *ReservationRepository) Update(ctx context.Context, reservation *entity.Reservation) error {
	query := `
		UPDATE resource_reservations
		SET quantity = :quantity, start_time = :start_time, end_time = :end_time,
		    status = :status, updated_at = NOW()
		WHERE id = :id
	`
	if _, err := r.DB.NamedExecContext(ctx, query, reservation); err != nil {
		logger.Error("ReservationRepository:Update", err)
		return err
	}
	return nil
}
