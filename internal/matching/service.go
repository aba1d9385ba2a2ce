package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/internal/orders"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/geo"
)

// Matcher ranks couriers for a validated query.
type Matcher interface {
	FindCandidates(ctx context.Context, q Query) (*Result, error)
}

// Service answers "who can deliver this order".
type Service interface {
	MatchOrder(ctx context.Context, input MatchInput) (*MatchResponse, error)
}

type service struct {
	orders  orders.Repository
	matcher Matcher
}

// NewService builds the matching service with the required dependencies.
func NewService(ordersRepo orders.Repository, matcher Matcher) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher required")
	}
	return &service{orders: ordersRepo, matcher: matcher}, nil
}

func (s *service) MatchOrder(ctx context.Context, input MatchInput) (*MatchResponse, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	buyerOverride, err := parseBuyerLocation(input.BuyerLatitude, input.BuyerLongitude)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindForDispatch(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	seller, err := orders.SellerOf(order)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found for order")
	}
	if input.CallerID != uuid.Nil && input.CallerID != order.BuyerID && input.CallerID != seller.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}

	sellerLocation, ok := geo.FromNullable(seller.User.Latitude, seller.User.Longitude)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller location not available")
	}

	buyerLocation := buyerOverride
	if buyerLocation == nil {
		buyerLocation = orderDeliveryPoint(order)
	}

	q, err := NewQuery(order.ID, seller.User.CountryCode, &sellerLocation, buyerLocation)
	if err != nil {
		if errors.Is(err, ErrSellerCountryMissing) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller country not available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid matching query")
	}

	res, err := s.matcher.FindCandidates(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find candidates")
	}
	return toResponse(order.ID, res), nil
}

func parseBuyerLocation(lat, lng *float64) (*geo.Point, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyerLat and buyerLng must be provided together")
	}
	p, err := geo.NewPoint(*lat, *lng)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer coordinates")
	}
	return &p, nil
}

func orderDeliveryPoint(order *models.Order) *geo.Point {
	if p, ok := geo.FromNullable(order.DeliveryLatitude, order.DeliveryLongitude); ok {
		return &p
	}
	return nil
}
