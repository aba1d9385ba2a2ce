package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
)

// Repository persists delivery jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindJob(ctx context.Context, jobID uuid.UUID) (*models.DeliveryOrder, error)
	ClaimIfPending(ctx context.Context, claim Claim) (bool, error)
}

// Claim is the single conditional transition PENDING -> ACCEPTED.
type Claim struct {
	JobID        uuid.UUID
	ProfileID    uuid.UUID
	AcceptedAt   time.Time
	DeliveryDate time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery job repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindJob loads a job with the order, buyer and sellers needed for the job
// view. Returns gorm.ErrRecordNotFound when the job does not exist.
func (r *repository) FindJob(ctx context.Context, jobID uuid.UUID) (*models.DeliveryOrder, error) {
	var job models.DeliveryOrder
	err := r.db.WithContext(ctx).
		Preload("Order.Buyer").
		Preload("Order.Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.position ASC")
		}).
		Preload("Order.Items.Product.SellerProfile.User").
		Where("id = ?", jobID).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimIfPending assigns the job in one statement. It succeeds only while the
// job is PENDING and unassigned (or pre-assigned to the same profile).
func (r *repository) ClaimIfPending(ctx context.Context, claim Claim) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryOrder{}).
		Where("id = ? AND status = ?", claim.JobID, enums.DeliveryOrderStatusPending).
		Where("(delivery_profile_id IS NULL OR delivery_profile_id = ?)", claim.ProfileID).
		Updates(map[string]any{
			"status":              enums.DeliveryOrderStatusAccepted,
			"delivery_profile_id": claim.ProfileID,
			"delivery_date":       claim.DeliveryDate,
			"accepted_at":         claim.AcceptedAt,
			"updated_at":          claim.AcceptedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
