package couriers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
)

// Repository reads delivery profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveByCountry(ctx context.Context, countryCode string) ([]models.DeliveryProfile, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryProfile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a courier repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveByCountry(ctx context.Context, countryCode string) ([]models.DeliveryProfile, error) {
	var profiles []models.DeliveryProfile
	err := r.db.WithContext(ctx).
		Preload("User").
		Joins("JOIN users ON users.id = delivery_profiles.user_id").
		Where("delivery_profiles.is_active = ?", true).
		Where("users.country_code = ?", NormalizeCountry(countryCode)).
		Order("delivery_profiles.created_at ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// FindByUserID returns gorm.ErrRecordNotFound when the user has no profile.
func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryProfile, error) {
	var profile models.DeliveryProfile
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
