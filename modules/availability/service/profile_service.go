package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	coreEntity "go-meeting-core/core/entity"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/signal"
	"go-meeting-core/core/utils"
	"go-meeting-core/modules/availability/dto"
	"go-meeting-core/modules/availability/entity"
	"go-meeting-core/modules/availability/repository"
)

// ProfileServiceInterface defines the availability profile contract.
type ProfileServiceInterface interface {
	CreateProfile(ctx context.Context, userID uuid.UUID, req *dto.CreateProfileRequest) (*dto.ProfileResponse, *errors.AppError)
	GetProfile(ctx context.Context, id uuid.UUID) (*dto.ProfileResponse, *errors.AppError)
	GetMyProfiles(ctx context.Context, userID uuid.UUID) ([]dto.ProfileResponse, *errors.AppError)
	UpdateProfile(ctx context.Context, id, userID uuid.UUID, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, *errors.AppError)
	DeleteProfile(ctx context.Context, id, userID uuid.UUID) *errors.AppError
	Regenerate(ctx context.Context, id uuid.UUID) (*dto.GenerateResponse, *errors.AppError)
	WorkingDay(ctx context.Context, userID uuid.UUID, day time.Time) (start, end time.Time, breaks [][2]time.Time, ok bool, err error)
}

type ProfileService struct {
	repo      repository.ProfileRepositoryInterface
	slotRepo  repository.SlotRepositoryInterface
	generator *SlotGenerator
	signals   *signal.Registry
}

func NewProfileService(
	repo repository.ProfileRepositoryInterface,
	slotRepo repository.SlotRepositoryInterface,
	generator *SlotGenerator,
	signals *signal.Registry,
) ProfileServiceInterface {
	return &ProfileService{repo: repo, slotRepo: slotRepo, generator: generator, signals: signals}
}

func (s *ProfileService) CreateProfile(ctx context.Context, userID uuid.UUID, req *dto.CreateProfileRequest) (*dto.ProfileResponse, *errors.AppError) {
	logger.Info("ProfileService:CreateProfile:Start", "user_id", userID, "name", req.Name)

	if req.Name == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Profile name is required", nil)
	}

	if req.IsDefault {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to demote previous default", err)
		}
	}

	workingHours := req.WorkingHours
	if workingHours == nil {
		workingHours = entity.WeeklyHours{}
	}

	profile := &entity.AvailabilityProfile{
		UserID:       userID,
		Name:         req.Name,
		Slug:         slug.Make(req.Name) + "-" + utils.GenerateID(),
		Timezone:     req.Timezone,
		IsDefault:    req.IsDefault,
		WorkingHours: coreEntity.NewJSONDoc(workingHours),
		Patterns:     coreEntity.NewJSONDoc(req.Patterns),
		Exceptions:   coreEntity.NewJSONDoc(req.Exceptions),
		Overrides:    coreEntity.NewJSONDoc(req.Overrides),
	}

	created, err := s.repo.Create(ctx, profile)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create profile", err)
	}

	if _, appErr := s.generator.GenerateForProfile(ctx, created); appErr != nil {
		logger.Error("ProfileService:CreateProfile:GenerateFailed", "profile_id", created.ID, "error", appErr)
	}

	if s.signals != nil {
		s.signals.Publish("profile.created", map[string]any{
			"profile_id": created.ID.String(),
			"user_id":    userID.String(),
		})
	}
	return dto.ToProfileResponse(created), nil
}

func (s *ProfileService) GetProfile(ctx context.Context, id uuid.UUID) (*dto.ProfileResponse, *errors.AppError) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to get profile", err)
	}
	if profile == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Profile not found", nil)
	}
	return dto.ToProfileResponse(profile), nil
}

func (s *ProfileService) GetMyProfiles(ctx context.Context, userID uuid.UUID) ([]dto.ProfileResponse, *errors.AppError) {
	profiles, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list profiles", err)
	}

	result := make([]dto.ProfileResponse, 0, len(profiles))
	for i := range profiles {
		result = append(result, *dto.ToProfileResponse(&profiles[i]))
	}
	return result, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, id, userID uuid.UUID, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, *errors.AppError) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil || profile == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Profile not found", err)
	}
	if profile.UserID != userID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Not authorized", nil)
	}

	affectsAvailability := false
	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.Timezone != "" && req.Timezone != profile.Timezone {
		profile.Timezone = req.Timezone
		affectsAvailability = true
	}
	if req.IsDefault != nil && *req.IsDefault != profile.IsDefault {
		if *req.IsDefault {
			if err := s.repo.ClearDefault(ctx, userID); err != nil {
				return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to demote previous default", err)
			}
		}
		profile.IsDefault = *req.IsDefault
	}
	if req.WorkingHours != nil {
		profile.WorkingHours = coreEntity.NewJSONDoc(*req.WorkingHours)
		affectsAvailability = true
	}
	if req.Patterns != nil {
		profile.Patterns = coreEntity.NewJSONDoc(*req.Patterns)
		affectsAvailability = true
	}
	if req.Exceptions != nil {
		profile.Exceptions = coreEntity.NewJSONDoc(*req.Exceptions)
		affectsAvailability = true
	}
	if req.Overrides != nil {
		profile.Overrides = coreEntity.NewJSONDoc(*req.Overrides)
		affectsAvailability = true
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to update profile", err)
	}

	if affectsAvailability {
		if _, appErr := s.generator.GenerateForProfile(ctx, profile); appErr != nil {
			logger.Error("ProfileService:UpdateProfile:GenerateFailed", "profile_id", id, "error", appErr)
		}
	}

	if s.signals != nil {
		s.signals.Publish("profile.updated", map[string]any{"profile_id": id.String()})
	}
	return dto.ToProfileResponse(profile), nil
}

func (s *ProfileService) DeleteProfile(ctx context.Context, id, userID uuid.UUID) *errors.AppError {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil || profile == nil {
		return errors.NewAppError(errors.ErrNotFound, "Profile not found", err)
	}
	if profile.UserID != userID {
		return errors.NewAppError(errors.ErrForbidden, "Not authorized", nil)
	}

	// Cascade: the profile's slots go with it.
	if err := s.slotRepo.DeleteByProfile(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to delete slots", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to delete profile", err)
	}

	if s.signals != nil {
		s.signals.Publish("profile.deleted", map[string]any{"profile_id": id.String()})
	}
	return nil
}

func (s *ProfileService) Regenerate(ctx context.Context, id uuid.UUID) (*dto.GenerateResponse, *errors.AppError) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil || profile == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Profile not found", err)
	}

	count, appErr := s.generator.GenerateForProfile(ctx, profile)
	if appErr != nil {
		return nil, appErr
	}
	return &dto.GenerateResponse{ProfileID: id.String(), SlotCount: count}, nil
}

// WorkingDay resolves the user's default profile working hours for one date.
// Instants come back in the profile's timezone; breaks are non-bookable
// windows inside the day. ok is false when no usable configuration exists, a
// disabled day comes back ok with an empty window.
func (s *ProfileService) WorkingDay(ctx context.Context, userID uuid.UUID, day time.Time) (start, end time.Time, breaks [][2]time.Time, ok bool, err error) {
	profile, err := s.repo.GetDefaultByUserID(ctx, userID)
	if err != nil {
		return start, end, nil, false, err
	}
	if profile == nil {
		return start, end, nil, false, nil
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, profile.Location())
	hours, found := profile.WorkingHours.V.ForWeekday(day.Weekday())
	if !found {
		return start, end, nil, false, nil
	}
	if !hours.Enabled {
		return midnight, midnight, nil, true, nil
	}

	startMin, err1 := entity.MinuteOfDay(hours.Start)
	endMin, err2 := entity.MinuteOfDay(hours.End)
	if err1 != nil || err2 != nil || endMin <= startMin {
		return start, end, nil, false, nil
	}
	start = midnight.Add(time.Duration(startMin) * time.Minute)
	end = midnight.Add(time.Duration(endMin) * time.Minute)

	for _, b := range hours.Breaks {
		bs, err1 := entity.MinuteOfDay(b.Start)
		be, err2 := entity.MinuteOfDay(b.End)
		if err1 != nil || err2 != nil || be <= bs {
			continue
		}
		breaks = append(breaks, [2]time.Time{
			midnight.Add(time.Duration(bs) * time.Minute),
			midnight.Add(time.Duration(be) * time.Minute),
		})
	}
	return start, end, breaks, true, nil
}
