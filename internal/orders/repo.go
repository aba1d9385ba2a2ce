package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

// dispatchGraph preloads everything matching needs: the buyer, and each
// line item's seller with its user row, items in cart order.
func dispatchGraph(db *gorm.DB) *gorm.DB {
	byPosition := func(q *gorm.DB) *gorm.DB { return q.Order("order_items.position ASC") }
	return db.
		Preload("Buyer").
		Preload("Items", byPosition).
		Preload("Items.Product.SellerProfile.User")
}

// FindForDispatch returns gorm.ErrRecordNotFound for unknown orders.
func (r *gormRepository) FindForDispatch(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order := new(models.Order)
	if err := r.db.WithContext(ctx).Scopes(dispatchGraph).First(order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return order, nil
}
