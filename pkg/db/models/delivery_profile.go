package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DeliveryProfile is a courier's dispatch state. The live position columns
// are written by the courier app while on shift; the home coordinate lives on
// the owning user.
type DeliveryProfile struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	User                User           `gorm:"foreignKey:UserID;references:ID"`
	IsActive            bool           `gorm:"column:is_active;not null;default:false"`
	MaxDistance         float64        `gorm:"column:max_distance;not null;default:10"`
	TransportationModes pq.StringArray `gorm:"column:transportation_modes;type:text[];not null"`
	GPSTrackingEnabled  bool           `gorm:"column:gps_tracking_enabled;not null;default:false"`
	IsOnline            bool           `gorm:"column:is_online;not null;default:false"`
	CurrentLatitude     *float64       `gorm:"column:current_latitude"`
	CurrentLongitude    *float64       `gorm:"column:current_longitude"`
	LastLocationUpdate  *time.Time     `gorm:"column:last_location_update"`
	Rating              float64        `gorm:"column:rating;not null;default:0"`
	CompletedDeliveries int            `gorm:"column:completed_deliveries;not null;default:0"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
