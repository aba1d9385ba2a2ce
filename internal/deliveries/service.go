// Package deliveries moves delivery jobs through their lifecycle. Accept is
// the only transition owned here; it claims a PENDING job for a courier,
// opens the order conversation in the same transaction and then runs the
// acceptance side effects.
package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/internal/notifications"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
	"github.com/localmarket/marketplace-backend/pkg/outbox/payloads"
)

// AcceptanceWindow is the delivery deadline set when a courier accepts a job.
const AcceptanceWindow = 3 * time.Hour

// Rejection reasons returned in the error details under "reason".
const (
	ReasonNotACourier     = "NOT_A_COURIER"
	ReasonJobNotFound     = "JOB_NOT_FOUND"
	ReasonAlreadyClaimed  = "ALREADY_CLAIMED"
	ReasonAlreadyAssigned = "ALREADY_ASSIGNED"
)

const (
	claimAccepted = "accepted"
	claimLost     = "lost"
	claimRejected = "rejected"
)

var errClaimLost = errors.New("delivery job claimed concurrently")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type courierDirectory interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryProfile, error)
}

type conversationGateway interface {
	EnsureForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, participants ...uuid.UUID) (*models.Conversation, error)
	AddParticipant(ctx context.Context, tx *gorm.DB, conversationID, userID uuid.UUID) error
	PostSystemMessage(ctx context.Context, tx *gorm.DB, conversationID, senderID uuid.UUID, body, dedupeKey string) (bool, error)
	FindForOrder(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error)
}

type notifier interface {
	Create(ctx context.Context, req notifications.Request) (*models.Notification, error)
}

// AcceptInput identifies the job and the courier claiming it.
type AcceptInput struct {
	JobID         uuid.UUID
	CourierUserID uuid.UUID
}

// GetJobInput identifies the job and the courier viewing it.
type GetJobInput struct {
	JobID         uuid.UUID
	CourierUserID uuid.UUID
}

// Service exposes the courier-facing delivery job operations.
type Service interface {
	Accept(ctx context.Context, input AcceptInput) (*JobView, error)
	GetJob(ctx context.Context, input GetJobInput) (*JobView, error)
}

// ServiceParams wires the accept state machine.
type ServiceParams struct {
	Repo          Repository
	Couriers      courierDirectory
	Tx            txRunner
	Outbox        outboxPublisher
	Conversations conversationGateway
	Notifier      notifier
	Metrics       *metrics.DispatchMetrics
	Logger        *logger.Logger
	// EffectMaxRetries bounds retries per post-commit effect.
	EffectMaxRetries uint64
	EffectBaseWait   time.Duration
	Now              func() time.Time
}

type service struct {
	repo          Repository
	couriers      courierDirectory
	tx            txRunner
	outbox        outboxPublisher
	conversations conversationGateway
	notifier      notifier
	metrics       *metrics.DispatchMetrics
	logg          *logger.Logger
	maxRetries    uint64
	baseWait      time.Duration
	now           func() time.Time
}

// NewService validates dependencies and builds the delivery service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if params.Couriers == nil {
		return nil, fmt.Errorf("courier directory required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Conversations == nil {
		return nil, fmt.Errorf("conversation gateway required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseWait := params.EffectBaseWait
	if baseWait <= 0 {
		baseWait = 100 * time.Millisecond
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:          params.Repo,
		couriers:      params.Couriers,
		tx:            params.Tx,
		outbox:        params.Outbox,
		conversations: params.Conversations,
		notifier:      params.Notifier,
		metrics:       params.Metrics,
		logg:          params.Logger,
		maxRetries:    params.EffectMaxRetries,
		baseWait:      baseWait,
		now:           now,
	}, nil
}

func (s *service) Accept(ctx context.Context, input AcceptInput) (*JobView, error) {
	if input.JobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	if input.CourierUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ctx = s.logg.WithJobID(ctx, input.JobID.String())
	ctx = s.logg.WithUserID(ctx, input.CourierUserID.String())

	courier, err := s.lookupCourier(ctx, input.CourierUserID)
	if err != nil {
		return nil, s.reject(err)
	}
	ctx = s.logg.WithCourierID(ctx, courier.ID.String())

	job, err := s.lookupJob(ctx, input.JobID)
	if err != nil {
		return nil, s.reject(err)
	}
	if job.Status != enums.DeliveryOrderStatusPending {
		return nil, s.reject(claimConflict(ReasonAlreadyClaimed, "job already accepted by another courier"))
	}
	if job.DeliveryProfileID != nil && *job.DeliveryProfileID != courier.ID {
		return nil, s.reject(claimConflict(ReasonAlreadyAssigned, "job is assigned to another courier"))
	}

	seller := sellerFor(job)
	acceptedAt := s.now().UTC()
	deliveryDate := acceptedAt.Add(AcceptanceWindow)
	state := &acceptance{job: job, courier: courier, seller: seller}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.repo.WithTx(tx).ClaimIfPending(ctx, Claim{
			JobID:        job.ID,
			ProfileID:    courier.ID,
			AcceptedAt:   acceptedAt,
			DeliveryDate: deliveryDate,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}
		if err := s.openConversation(ctx, tx, state); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryAccepted,
			AggregateType: enums.AggregateDeliveryOrder,
			AggregateID:   job.ID,
			Actor:         &outbox.ActorRef{UserID: courier.UserID, Role: "courier"},
			Data:          acceptedEvent(job, courier, seller, acceptedAt, deliveryDate),
			OccurredAt:    acceptedAt,
		})
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			s.metrics.IncClaim(claimLost)
			s.logg.Warn(ctx, "delivery job claimed by a concurrent request")
			return nil, claimConflict(ReasonAlreadyClaimed, "job already accepted by another courier")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accept delivery job")
	}
	s.metrics.IncClaim(claimAccepted)

	job.Status = enums.DeliveryOrderStatusAccepted
	job.DeliveryProfileID = &courier.ID
	job.DeliveryDate = &deliveryDate
	job.AcceptedAt = &acceptedAt

	s.runEffects(ctx, state)

	s.logg.Info(ctx, "delivery job accepted")
	return buildView(job, seller, state.conversationID), nil
}

// GetJob returns jobs that are still open or assigned to the caller.
func (s *service) GetJob(ctx context.Context, input GetJobInput) (*JobView, error) {
	if input.JobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	if input.CourierUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	courier, err := s.lookupCourier(ctx, input.CourierUserID)
	if err != nil {
		return nil, err
	}
	job, err := s.lookupJob(ctx, input.JobID)
	if err != nil {
		return nil, err
	}

	assignedToCaller := job.DeliveryProfileID != nil && *job.DeliveryProfileID == courier.ID
	openToCaller := job.Status == enums.DeliveryOrderStatusPending && (job.DeliveryProfileID == nil || assignedToCaller)
	if !assignedToCaller && !openToCaller {
		return nil, notFound(ReasonJobNotFound, "delivery job not found")
	}

	var conversationID *uuid.UUID
	if assignedToCaller {
		conversation, err := s.conversations.FindForOrder(ctx, job.OrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load conversation")
		}
		if conversation != nil {
			conversationID = &conversation.ID
		}
	}
	return buildView(job, sellerFor(job), conversationID), nil
}

func (s *service) lookupCourier(ctx context.Context, userID uuid.UUID) (*models.DeliveryProfile, error) {
	courier, err := s.couriers.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonNotACourier, "courier profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load courier profile")
	}
	return courier, nil
}

func (s *service) lookupJob(ctx context.Context, jobID uuid.UUID) (*models.DeliveryOrder, error) {
	job, err := s.repo.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonJobNotFound, "delivery job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery job")
	}
	return job, nil
}

func (s *service) reject(err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.IncClaim(claimRejected)
	}
	return err
}

func acceptedEvent(job *models.DeliveryOrder, courier *models.DeliveryProfile, seller *models.SellerProfile, acceptedAt, deliveryDate time.Time) payloads.DeliveryAcceptedEvent {
	event := payloads.DeliveryAcceptedEvent{
		DeliveryOrderID:   job.ID,
		OrderID:           job.OrderID,
		OrderNumber:       job.Order.OrderNumber,
		DeliveryProfileID: courier.ID,
		CourierUserID:     courier.UserID,
		BuyerID:           job.Order.BuyerID,
		DeliveryFee:       job.DeliveryFee,
		DeliveryDate:      deliveryDate,
		AcceptedAt:        acceptedAt,
	}
	if seller != nil {
		event.SellerUserID = seller.UserID
	}
	return event
}

func notFound(reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, message).WithDetails(map[string]string{"reason": reason})
}

func claimConflict(reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeClaimConflict, message).WithDetails(map[string]string{"reason": reason})
}
