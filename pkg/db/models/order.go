package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/pkg/enums"
)

// Order is a buyer's purchase. Items are ordered by Position; the first item
// identifies the seller the courier picks up from.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       int64             `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID           uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	Buyer             User              `gorm:"foreignKey:BuyerID;references:ID"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null"`
	DeliveryLatitude  *float64          `gorm:"column:delivery_latitude"`
	DeliveryLongitude *float64          `gorm:"column:delivery_longitude"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Product   Product   `gorm:"foreignKey:ProductID;references:ID"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
}
