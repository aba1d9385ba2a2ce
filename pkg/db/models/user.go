package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the canonical identity; buyers, sellers and couriers are all users.
// The structured address and home coordinate are filled by geocoding at
// profile edit time.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string    `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Address     *string   `gorm:"column:address"`
	PostalCode  *string   `gorm:"column:postal_code"`
	City        *string   `gorm:"column:city"`
	Place       *string   `gorm:"column:place"`
	CountryCode string    `gorm:"column:country_code;type:varchar(2);not null"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
