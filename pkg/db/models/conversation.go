package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/pkg/enums"
)

// Conversation is the message channel attached to an order.
type Conversation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type ConversationParticipant struct {
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	JoinedAt       time.Time `gorm:"column:joined_at;autoCreateTime"`
}

// Message is a chat entry. DedupeKey is unique per conversation so
// platform-authored messages can be appended idempotently.
type Message struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID         `gorm:"column:conversation_id;type:uuid;not null"`
	SenderID       uuid.UUID         `gorm:"column:sender_id;type:uuid;not null"`
	Type           enums.MessageType `gorm:"column:type;type:text;not null"`
	Body           string            `gorm:"column:body;type:text;not null"`
	DedupeKey      *string           `gorm:"column:dedupe_key"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
