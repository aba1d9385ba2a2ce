package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a listing sold by a seller profile.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerProfileID uuid.UUID       `gorm:"column:seller_profile_id;type:uuid;not null"`
	SellerProfile   SellerProfile   `gorm:"foreignKey:SellerProfileID;references:ID"`
	Title           string          `gorm:"column:title;not null"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
