package payloads

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/localmarket/marketplace-backend/pkg/enums"
)

// DeliveryAcceptedEvent is emitted in the same transaction that claims a job.
type DeliveryAcceptedEvent struct {
	DeliveryOrderID   uuid.UUID       `json:"delivery_order_id"`
	OrderID           uuid.UUID       `json:"order_id"`
	OrderNumber       int64           `json:"order_number"`
	DeliveryProfileID uuid.UUID       `json:"delivery_profile_id"`
	CourierUserID     uuid.UUID       `json:"courier_user_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	SellerUserID      uuid.UUID       `json:"seller_user_id"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	DeliveryDate      time.Time       `json:"delivery_date"`
	AcceptedAt        time.Time       `json:"accepted_at"`
}

// NotificationRequestedEvent fans an in-app notification out to push channels.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	UserID         uuid.UUID              `json:"user_id"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           *string                `json:"link,omitempty"`
	Data           json.RawMessage        `json:"data,omitempty"`
}
