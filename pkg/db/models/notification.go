package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/pkg/enums"
)

// Notification is one in-app inbox entry. ReadAt stays nil until the
// recipient opens it.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"type:text;not null"`
	Title     string                 `gorm:"not null"`
	Message   string                 `gorm:"not null"`
	Link      *string
	Data      json.RawMessage `gorm:"type:jsonb"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
