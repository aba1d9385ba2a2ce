package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/internal/notifications"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
)

// Post-commit effect names, used in logs and metrics.
const (
	EffectAcceptanceMessage = "post_acceptance_message"
	EffectNotifyBuyer       = "notify_buyer"
	EffectNotifySeller      = "notify_seller"
	EffectNotifyCourier     = "notify_courier"
)

// effectsTimeout bounds all post-commit effects of one acceptance. They run
// detached from the request so a dropped client cannot cut them short.
const effectsTimeout = 30 * time.Second

var errNoConversation = errors.New("conversation not established")

// acceptance carries state from the claim transaction into the post-commit effects.
type acceptance struct {
	job            *models.DeliveryOrder
	courier        *models.DeliveryProfile
	seller         *models.SellerProfile
	conversationID *uuid.UUID
}

type effect struct {
	name string
	run  func(ctx context.Context, a *acceptance) error
}

func (s *service) effects() []effect {
	return []effect{
		{name: EffectAcceptanceMessage, run: s.postAcceptanceMessage},
		{name: EffectNotifyBuyer, run: s.notifyBuyer},
		{name: EffectNotifySeller, run: s.notifySeller},
		{name: EffectNotifyCourier, run: s.notifyCourier},
	}
}

// openConversation runs inside the claim transaction: the order conversation
// is seeded with buyer and seller when new, and the courier always joins.
func (s *service) openConversation(ctx context.Context, tx *gorm.DB, a *acceptance) error {
	seed := []uuid.UUID{a.job.Order.BuyerID}
	if a.seller != nil {
		seed = append(seed, a.seller.UserID)
	}
	conversation, err := s.conversations.EnsureForOrder(ctx, tx, a.job.OrderID, seed...)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	if err := s.conversations.AddParticipant(ctx, tx, conversation.ID, a.courier.UserID); err != nil {
		return fmt.Errorf("add courier to conversation: %w", err)
	}
	id := conversation.ID
	a.conversationID = &id
	return nil
}

// runEffects executes every effect in order. Failures are logged and counted;
// the claim has already committed and is never undone. Typed non-retryable
// errors, such as validation failures, are not retried.
func (s *service) runEffects(ctx context.Context, a *acceptance) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectsTimeout)
	defer cancel()

	for _, e := range s.effects() {
		backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseWait))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := e.run(ctx, a); err != nil {
				if errors.Is(err, errNoConversation) || !pkgerrors.IsRetryable(err) {
					return err
				}
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			s.metrics.IncEffectFailure(e.name)
			s.logg.Error(s.logg.WithField(ctx, "effect", e.name), "post-accept effect failed", err)
		}
	}
}

func (s *service) postAcceptanceMessage(ctx context.Context, a *acceptance) error {
	if a.conversationID == nil {
		return errNoConversation
	}
	body := fmt.Sprintf("%s accepted the delivery for order #%d. Estimated time: %s. Status: %s.",
		a.courier.User.DisplayName, a.job.Order.OrderNumber, etaFor(a.job), enums.DeliveryOrderStatusAccepted)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.conversations.PostSystemMessage(ctx, tx, *a.conversationID, a.courier.UserID, body, "delivery_accepted:"+a.job.ID.String())
		return err
	})
}

func (s *service) notifyBuyer(ctx context.Context, a *acceptance) error {
	return s.notify(ctx, a, a.job.Order.BuyerID, enums.NotificationTypeDeliveryAccepted,
		"Courier assigned",
		fmt.Sprintf("%s will deliver your order #%d.", a.courier.User.DisplayName, a.job.Order.OrderNumber),
		"/deliveries/"+a.job.ID.String())
}

func (s *service) notifySeller(ctx context.Context, a *acceptance) error {
	if a.seller == nil {
		return nil
	}
	return s.notify(ctx, a, a.seller.UserID, enums.NotificationTypeDeliveryAccepted,
		"Courier on the way",
		fmt.Sprintf("%s will pick up order #%d.", a.courier.User.DisplayName, a.job.Order.OrderNumber),
		"/deliveries/"+a.job.ID.String())
}

func (s *service) notifyCourier(ctx context.Context, a *acceptance) error {
	return s.notify(ctx, a, a.courier.UserID, enums.NotificationTypeDeliveryAssigned,
		"Job accepted",
		fmt.Sprintf("You accepted order #%d. Deliver before %s.", a.job.Order.OrderNumber, a.job.DeliveryDate.Format("15:04 MST")),
		"/courier/jobs/"+a.job.ID.String())
}

func (s *service) notify(ctx context.Context, a *acceptance, userID uuid.UUID, kind enums.NotificationType, title, message, link string) error {
	data := map[string]any{
		"jobId":       a.job.ID.String(),
		"orderId":     a.job.OrderID.String(),
		"orderNumber": a.job.Order.OrderNumber,
		"courierName": a.courier.User.DisplayName,
	}
	if a.conversationID != nil {
		data["conversationId"] = a.conversationID.String()
	}
	_, err := s.notifier.Create(ctx, notifications.Request{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
		Data:    data,
	})
	return err
}
