package controllers

import (
	"net/http"

	"github.com/localmarket/marketplace-backend/api/middleware"
	"github.com/localmarket/marketplace-backend/api/responses"
	"github.com/localmarket/marketplace-backend/api/validators"
	"github.com/localmarket/marketplace-backend/internal/matching"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/logger"
)

type matchCouriersQuery struct {
	BuyerLatitude  *float64 `query:"buyerLat" validate:"omitempty,latitude"`
	BuyerLongitude *float64 `query:"buyerLng" validate:"omitempty,longitude"`
}

// MatchCouriers ranks the couriers able to deliver an order.
func MatchCouriers(svc matching.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "matching service unavailable"))
			return
		}

		callerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var query matchCouriersQuery
		if query.BuyerLatitude, err = validators.ParseQueryFloat(r, "buyerLat"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if query.BuyerLongitude, err = validators.ParseQueryFloat(r, "buyerLng"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.Struct(query); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		resp, err := svc.MatchOrder(ctx, matching.MatchInput{
			OrderID:        orderID,
			CallerID:       callerID,
			BuyerLatitude:  query.BuyerLatitude,
			BuyerLongitude: query.BuyerLongitude,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
