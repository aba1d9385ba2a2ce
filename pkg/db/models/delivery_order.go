package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/localmarket/marketplace-backend/pkg/enums"
)

// DeliveryOrder is one dispatchable job derived from an order.
// DeliveryProfileID stays nil while the job is PENDING.
type DeliveryOrder struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID                 `gorm:"column:order_id;type:uuid;not null"`
	Order             Order                     `gorm:"foreignKey:OrderID;references:ID"`
	DeliveryProfileID *uuid.UUID                `gorm:"column:delivery_profile_id;type:uuid"`
	Status            enums.DeliveryOrderStatus `gorm:"column:status;type:text;not null"`
	DeliveryFee       decimal.Decimal           `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	EstimatedTime     *string                   `gorm:"column:estimated_time"`
	DeliveryDate      *time.Time                `gorm:"column:delivery_date"`
	DeliveryAddress   *string                   `gorm:"column:delivery_address"`
	Notes             *string                   `gorm:"column:notes"`
	AcceptedAt        *time.Time                `gorm:"column:accepted_at"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
