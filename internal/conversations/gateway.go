// Package conversations owns the per-order message channel shared by buyer,
// seller and the assigned courier.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
)

// Gateway performs conversation writes inside a caller-owned transaction.
type Gateway struct {
	repo Repository
}

func NewGateway(repo Repository) (*Gateway, error) {
	if repo == nil {
		return nil, fmt.Errorf("conversations repository required")
	}
	return &Gateway{repo: repo}, nil
}

// EnsureForOrder returns the order's conversation. The seed participants are
// only added when this call creates it; an existing conversation is returned
// untouched.
func (g *Gateway) EnsureForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, seed ...uuid.UUID) (*models.Conversation, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := g.repo.WithTx(tx)
	created, err := repo.InsertIfAbsent(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	conversation, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !created {
		return conversation, nil
	}
	if err := repo.AddParticipants(ctx, conversation.ID, seed...); err != nil {
		return nil, fmt.Errorf("add participants: %w", err)
	}
	return conversation, nil
}

// AddParticipant is a no-op when the user already belongs to the conversation.
func (g *Gateway) AddParticipant(ctx context.Context, tx *gorm.DB, conversationID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "participant user id required")
	}
	return g.repo.WithTx(tx).AddParticipants(ctx, conversationID, userID)
}

// PostSystemMessage appends a platform message at most once per dedupe key.
func (g *Gateway) PostSystemMessage(ctx context.Context, tx *gorm.DB, conversationID, senderID uuid.UUID, body, dedupeKey string) (bool, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           enums.MessageTypeSystem,
		Body:           body,
	}
	if dedupeKey != "" {
		msg.DedupeKey = &dedupeKey
	}
	return g.repo.WithTx(tx).InsertMessageIfAbsent(ctx, msg)
}

// FindForOrder returns nil when the order has no conversation yet.
func (g *Gateway) FindForOrder(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error) {
	conversation, err := g.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return conversation, nil
}
