package conversations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
)

// Repository persists order conversations. Every write is idempotent.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error)
	InsertIfAbsent(ctx context.Context, orderID uuid.UUID) (bool, error)
	AddParticipants(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error
	InsertMessageIfAbsent(ctx context.Context, message *models.Message) (bool, error)
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationParticipant, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// InsertIfAbsent reports whether this call created the order's conversation.
func (r *repository) InsertIfAbsent(ctx context.Context, orderID uuid.UUID) (bool, error) {
	row := models.Conversation{ID: uuid.New(), OrderID: orderID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) AddParticipants(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.ConversationParticipant, 0, len(userIDs))
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, models.ConversationParticipant{ConversationID: conversationID, UserID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// InsertMessageIfAbsent skips messages whose dedupe key already exists in the conversation.
func (r *repository) InsertMessageIfAbsent(ctx context.Context, message *models.Message) (bool, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(message)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationParticipant, error) {
	var rows []models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
