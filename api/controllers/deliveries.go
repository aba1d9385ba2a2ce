package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/api/middleware"
	"github.com/localmarket/marketplace-backend/api/responses"
	"github.com/localmarket/marketplace-backend/api/validators"
	"github.com/localmarket/marketplace-backend/internal/deliveries"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/logger"
)

// AcceptDeliveryJob claims a pending job for the calling courier.
func AcceptDeliveryJob(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}
		userID, jobID, ok := courierJobRequest(w, r, logg)
		if !ok {
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithJobID(ctx, jobID.String())
		}

		view, err := svc.Accept(ctx, deliveries.AcceptInput{JobID: jobID, CourierUserID: userID})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// DeliveryJobDetail returns the job view for the calling courier.
func DeliveryJobDetail(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}
		userID, jobID, ok := courierJobRequest(w, r, logg)
		if !ok {
			return
		}

		view, err := svc.GetJob(r.Context(), deliveries.GetJobInput{JobID: jobID, CourierUserID: userID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func courierJobRequest(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err := validators.ParseUUIDParam(r, "jobId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, jobID, true
}
