package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
)

// Repository reads orders for dispatch.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForDispatch(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}
