package orders

import (
	"errors"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
)

var (
	// ErrNoItems is returned when an order has no items to derive a seller from.
	ErrNoItems = errors.New("order has no items")
	// ErrSellerNotLoaded is returned when the first item's product or seller was not preloaded.
	ErrSellerNotLoaded = errors.New("order seller not loaded")
)

// SellerOf returns the seller of the order's first item. Orders are
// single-seller; the first item is authoritative.
func SellerOf(order *models.Order) (*models.SellerProfile, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, ErrNoItems
	}
	seller := order.Items[0].Product.SellerProfile
	if seller.ID == uuid.Nil || seller.UserID == uuid.Nil {
		return nil, ErrSellerNotLoaded
	}
	return &seller, nil
}
