package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/resource/dto"
	"go-meeting-core/modules/resource/entity"
	"go-meeting-core/modules/resource/repository"
)

// ResourceService manages the resource catalog and backs the workflow
// engine's book_resource steps. Reservations are serialized so a capacity
// check and its insert cannot interleave.
type ResourceService struct {
	resources    repository.ResourceRepositoryInterface
	reservations repository.ReservationRepositoryInterface

	reserveMu sync.Mutex
}

func NewResourceService(resources repository.ResourceRepositoryInterface, reservations repository.ReservationRepositoryInterface) *ResourceService {
	return &ResourceService{resources: resources, reservations: reservations}
}

// Reserve claims quantity units of the first resource of the requested type
// with enough free capacity for [start, end). Failure here is a workflow
// step failure, so it is a plain error subject to the step's retry policy.
func (s *ResourceService) Reserve(ctx context.Context, resourceType string, quantity int, start, end time.Time) (string, error) {
	if quantity < 1 {
		quantity = 1
	}
	if !start.Before(end) {
		return "", fmt.Errorf("reservation window is empty")
	}

	s.reserveMu.Lock()
	defer s.reserveMu.Unlock()

	candidates, err := s.resources.ListByType(ctx, resourceType)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no resources of type %q", resourceType)
	}

	for i := range candidates {
		resource := &candidates[i]
		used, err := s.reservations.ReservedUnits(ctx, resource.ID, start, end)
		if err != nil {
			return "", err
		}
		if resource.Capacity-used < quantity {
			continue
		}

		reservation := &entity.Reservation{
			ResourceID: resource.ID,
			Quantity:   quantity,
			StartTime:  start,
			EndTime:    end,
			Status:     entity.ReservationConfirmed,
		}
		if _, err := s.reservations.Create(ctx, reservation); err != nil {
			return "", err
		}
		logger.Info("ResourceService:Reserve", "resource_id", resource.ID, "reservation_id", reservation.ID, "quantity", quantity)
		return reservation.ID.String(), nil
	}
	return "", fmt.Errorf("no %s available for %s to %s",
		resourceType, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

// Release frees a reservation. Releasing twice errors so the engine notices
// bookkeeping bugs.
func (s *ResourceService) Release(ctx context.Context, reservationID string) error {
	id, err := uuid.Parse(reservationID)
	if err != nil {
		return fmt.Errorf("invalid reservation id %q", reservationID)
	}

	s.reserveMu.Lock()
	defer s.reserveMu.Unlock()

	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if reservation == nil {
		return fmt.Errorf("reservation %s not found", reservationID)
	}
	if reservation.Status == entity.ReservationReleased {
		return fmt.Errorf("reservation %s already released", reservationID)
	}

	reservation.Status = entity.ReservationReleased
	return s.reservations.Update(ctx, reservation)
}

// ===================== Catalog =====================

func (s *ResourceService) CreateResource(ctx context.Context, req *dto.CreateResourceRequest) (*dto.ResourceResponse, *errors.AppError) {
	if req.Type == "" || req.Name == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Type and name are required", nil)
	}
	if req.Capacity < 1 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Capacity must be at least 1", nil)
	}

	resource := &entity.Resource{
		Type:     req.Type,
		Name:     req.Name,
		Capacity: req.Capacity,
		Location: req.Location,
		IsActive: true,
	}
	if _, err := s.resources.Create(ctx, resource); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create resource", err)
	}
	return dto.ToResourceResponse(resource), nil
}

func (s *ResourceService) ListResources(ctx context.Context) ([]dto.ResourceResponse, *errors.AppError) {
	resources, err := s.resources.List(ctx)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list resources", err)
	}
	out := make([]dto.ResourceResponse, 0, len(resources))
	for i := range resources {
		out = append(out, *dto.ToResourceResponse(&resources[i]))
	}
	return out, nil
}

func (s *ResourceService) UpdateResource(ctx context.Context, id uuid.UUID, req *dto.UpdateResourceRequest) (*dto.ResourceResponse, *errors.AppError) {
	resource, err := s.resources.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load resource", err)
	}
	if resource == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Resource not found", nil)
	}

	if req.Name != nil {
		resource.Name = *req.Name
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "Capacity must be at least 1", nil)
		}
		resource.Capacity = *req.Capacity
	}
	if req.Location != nil {
		resource.Location = *req.Location
	}
	if req.IsActive != nil {
		resource.IsActive = *req.IsActive
	}

	if err := s.resources.Update(ctx, resource); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to update resource", err)
	}
	return dto.ToResourceResponse(resource), nil
}

func (s *ResourceService) DeleteResource(ctx context.Context, id uuid.UUID) *errors.AppError {
	resource, err := s.resources.GetByID(ctx, id)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to load resource", err)
	}
	if resource == nil {
		return errors.NewAppError(errors.ErrNotFound, "Resource not found", nil)
	}
	if err := s.resources.Delete(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to delete resource", err)
	}
	return nil
}
