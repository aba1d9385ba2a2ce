package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerProfile is the shop front owned by a user.
type SellerProfile struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	User      User      `gorm:"foreignKey:UserID;references:ID"`
	ShopName  string    `gorm:"column:shop_name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
