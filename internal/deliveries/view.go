package deliveries

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/localmarket/marketplace-backend/internal/orders"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
)

const (
	defaultETA      = "30-45 minutes"
	addressFallback = "Address not available"
)

// JobView is the denormalized job a courier sees.
type JobView struct {
	ID              uuid.UUID                 `json:"id"`
	OrderID         uuid.UUID                 `json:"orderId"`
	OrderNumber     int64                     `json:"orderNumber"`
	Status          enums.DeliveryOrderStatus `json:"status"`
	DeliveryFee     decimal.Decimal           `json:"deliveryFee"`
	EstimatedTime   string                    `json:"estimatedTime"`
	DeliveryDate    *time.Time                `json:"deliveryDate"`
	AcceptedAt      *time.Time                `json:"acceptedAt,omitempty"`
	PickupAddress   string                    `json:"pickupAddress"`
	DeliveryAddress string                    `json:"deliveryAddress"`
	SellerName      string                    `json:"sellerName"`
	BuyerName       string                    `json:"buyerName"`
	Notes           *string                   `json:"notes,omitempty"`
	ConversationID  *uuid.UUID                `json:"conversationId"`
}

func buildView(job *models.DeliveryOrder, seller *models.SellerProfile, conversationID *uuid.UUID) *JobView {
	view := &JobView{
		ID:              job.ID,
		OrderID:         job.OrderID,
		OrderNumber:     job.Order.OrderNumber,
		Status:          job.Status,
		DeliveryFee:     job.DeliveryFee,
		EstimatedTime:   etaFor(job),
		DeliveryDate:    job.DeliveryDate,
		AcceptedAt:      job.AcceptedAt,
		PickupAddress:   addressFallback,
		DeliveryAddress: deliveryAddress(job.Order.Buyer, job.DeliveryAddress),
		BuyerName:       job.Order.Buyer.DisplayName,
		Notes:           job.Notes,
		ConversationID:  conversationID,
	}
	if seller != nil {
		view.PickupAddress = pickupAddress(seller.User)
		view.SellerName = seller.ShopName
	}
	return view
}

func sellerFor(job *models.DeliveryOrder) *models.SellerProfile {
	seller, err := orders.SellerOf(&job.Order)
	if err != nil {
		return nil
	}
	return seller
}

func etaFor(job *models.DeliveryOrder) string {
	if job.EstimatedTime != nil {
		if eta := strings.TrimSpace(*job.EstimatedTime); eta != "" {
			return eta
		}
	}
	return defaultETA
}

// pickupAddress prefers the structured address, then the place label.
func pickupAddress(seller models.User) string {
	if addr := structuredAddress(seller); addr != "" {
		return addr
	}
	if label := trimmed(seller.Place); label != "" {
		return label
	}
	return addressFallback
}

// deliveryAddress prefers the buyer's structured address, then the address
// stored on the job.
func deliveryAddress(buyer models.User, stored *string) string {
	if addr := structuredAddress(buyer); addr != "" {
		return addr
	}
	if addr := trimmed(stored); addr != "" {
		return addr
	}
	return addressFallback
}

func structuredAddress(u models.User) string {
	street := trimmed(u.Address)
	if street == "" {
		return ""
	}
	locality := strings.TrimSpace(strings.Join(nonEmpty(trimmed(u.PostalCode), trimmed(u.City)), " "))
	return strings.Join(nonEmpty(street, locality), ", ")
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
