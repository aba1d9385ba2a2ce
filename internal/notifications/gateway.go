package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
	"github.com/localmarket/marketplace-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Request describes one in-app notification for one user.
type Request struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
	Data    map[string]any
}

func (r Request) validate() error {
	if r.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient user id required")
	}
	if !r.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", r.Type))
	}
	if strings.TrimSpace(r.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification message required")
	}
	return nil
}

// Gateway stores notifications and queues them for push fan-out.
type Gateway struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewGateway(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (*Gateway, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Gateway{repo: repo, tx: tx, outbox: publisher, logg: logg}, nil
}

// Create persists one notification and its notification_requested event atomically.
func (g *Gateway) Create(ctx context.Context, req Request) (*models.Notification, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var data json.RawMessage
	if len(req.Data) > 0 {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("encode notification data: %w", err)
		}
		data = raw
	}

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  req.UserID,
		Type:    req.Type,
		Title:   strings.TrimSpace(req.Title),
		Message: strings.TrimSpace(req.Message),
		Link:    req.Link,
		Data:    data,
	}

	err := g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := g.repo.WithTx(tx).Create(ctx, notification); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return g.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   notification.ID,
			Data: payloads.NotificationRequestedEvent{
				NotificationID: notification.ID,
				UserID:         notification.UserID,
				Type:           notification.Type,
				Title:          notification.Title,
				Message:        notification.Message,
				Link:           notification.Link,
				Data:           data,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := g.logg.WithUserID(ctx, req.UserID.String())
	logCtx = g.logg.WithField(logCtx, "notification_type", string(req.Type))
	g.logg.Info(logCtx, "notification created")
	return notification, nil
}
