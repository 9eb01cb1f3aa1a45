package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/modules/availability/entity"
)

// ProfileRepositoryInterface defines storage for availability profiles.
type ProfileRepositoryInterface interface {
	Create(ctx context.Context, profile *entity.AvailabilityProfile) (*entity.AvailabilityProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.AvailabilityProfile, error)
	GetBySlug(ctx context.Context, slug string) (*entity.AvailabilityProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]entity.AvailabilityProfile, error)
	GetDefaultByUserID(ctx context.Context, userID uuid.UUID) (*entity.AvailabilityProfile, error)
	Update(ctx context.Context, profile *entity.AvailabilityProfile) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	ListAll(ctx context.Context) ([]entity.AvailabilityProfile, error)
}

type ProfileRepository struct {
	DB database.IDatabase
}

func NewProfileRepository(db database.IDatabase) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

const profileColumns = `id, user_id, name, slug, timezone, is_default, working_hours, patterns, exceptions, overrides, created_at, updated_at`

func (r *ProfileRepository) Create(ctx context.Context, profile *entity.AvailabilityProfile) (*entity.AvailabilityProfile, error) {
	query := `
		INSERT INTO availability_profiles (user_id, name, slug, timezone, is_default, working_hours, patterns, exceptions, overrides)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRowContext(ctx, query,
		profile.UserID, profile.Name, profile.Slug, profile.Timezone, profile.IsDefault,
		profile.WorkingHours, profile.Patterns, profile.Exceptions, profile.Overrides,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		logger.Error("ProfileRepository:Create", err)
		return nil, err
	}
	return profile, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.AvailabilityProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM availability_profiles WHERE id = $1`

	var profile entity.AvailabilityProfile
	err := r.DB.GetContext(ctx, &profile, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ProfileRepository:GetByID", err)
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetBySlug(ctx context.Context, slug string) (*entity.AvailabilityProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM availability_profiles WHERE slug = $1`

	var profile entity.AvailabilityProfile
	err := r.DB.GetContext(ctx, &profile, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ProfileRepository:GetBySlug", err)
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]entity.AvailabilityProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM availability_profiles WHERE user_id = $1 ORDER BY created_at`

	var profiles []entity.AvailabilityProfile
	if err := r.DB.SelectContext(ctx, &profiles, query, userID); err != nil {
		logger.Error("ProfileRepository:GetByUserID", err)
		return nil, err
	}
	return profiles, nil
}

func (r *ProfileRepository) GetDefaultByUserID(ctx context.Context, userID uuid.UUID) (*entity.AvailabilityProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM availability_profiles WHERE user_id = $1 AND is_default = true`

	var profile entity.AvailabilityProfile
	err := r.DB.GetContext(ctx, &profile, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ProfileRepository:GetDefaultByUserID", err)
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile *entity.AvailabilityProfile) error {
	query := `
		UPDATE availability_profiles
		SET name = $2, slug = $3, timezone = $4, is_default = $5,
		    working_hours = $6, patterns = $7, exceptions = $8, overrides = $9, updated_at = NOW()
		WHERE id = $1
	`
	err := r.DB.ExecContext(ctx, query,
		profile.ID, profile.Name, profile.Slug, profile.Timezone, profile.IsDefault,
		profile.WorkingHours, profile.Patterns, profile.Exceptions, profile.Overrides,
	)
	if err != nil {
		logger.Error("ProfileRepository:Update", err)
	}
	return err
}

func (r *ProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Slots cascade through the slot repository; this removes the profile row.
	query := `DELETE FROM availability_profiles WHERE id = $1`
	err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		logger.Error("ProfileRepository:Delete", err)
	}
	return err
}

func (r *ProfileRepository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE availability_profiles SET is_default = false, updated_at = NOW() WHERE user_id = $1 AND is_default = true`
	err := r.DB.ExecContext(ctx, query, userID)
	if err != nil {
		logger.Error("ProfileRepository:ClearDefault", err)
	}
	return err
}

func (r *ProfileRepository) ListAll(ctx context.Context) ([]entity.AvailabilityProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM availability_profiles ORDER BY created_at`

	var profiles []entity.AvailabilityProfile
	if err := r.DB.SelectContext(ctx, &profiles, query); err != nil {
		logger.Error("ProfileRepository:ListAll", err)
		return nil, err
	}
	return profiles, nil
}
