package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"gorm.io/gorm"
)

// MessageStore is the ledger's storage contract
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	MarkReceived(ctx context.Context, messageID, receiverID uuid.UUID) error
	MarkRead(ctx context.Context, messageID, receiverID uuid.UUID) error
	ListSent(ctx context.Context, senderID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error)
	ListReceived(ctx context.Context, receiverID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error)
}

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message with its file rows; created_at is assigned at
// insert time, which is what keeps per-sender ordering tied to durable
// persistence rather than request entry
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindByID finds a message by ID with its files
func (r *MessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkReceived sets received=true via a single guarded update keyed by
// message id and receiver. Delivery flags are only ever set to true here, so
// the update is idempotent and cannot regress the state.
func (r *MessageRepository) MarkReceived(ctx context.Context, messageID, receiverID uuid.UUID) error {
	return r.markDelivery(ctx, messageID, receiverID, map[string]interface{}{"received": true})
}

// MarkRead sets read=true and forces received=true in the same statement, so
// a concurrent MarkReceived can never be observed as read without received
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, receiverID uuid.UUID) error {
	return r.markDelivery(ctx, messageID, receiverID, map[string]interface{}{"received": true, "read": true})
}

func (r *MessageRepository) markDelivery(ctx context.Context, messageID, receiverID uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND receiver_id = ?", messageID, receiverID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSent returns messages sent by a user, newest first, cursor-paginated
func (r *MessageRepository) ListSent(ctx context.Context, senderID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	return r.list(ctx, "sender_id", senderID, before, limit)
}

// ListReceived returns messages addressed to a user, newest first, cursor-paginated
func (r *MessageRepository) ListReceived(ctx context.Context, receiverID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	return r.list(ctx, "receiver_id", receiverID, before, limit)
}

func (r *MessageRepository) list(ctx context.Context, column string, userID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where(column+" = ?", userID).
		Order("created_at DESC").
		Limit(limit)

	// Cursor-based pagination: get messages before a specific message
	if before != nil {
		var beforeMsg model.Message
		if err := r.db.WithContext(ctx).Select("created_at").Where("id = ?", before).First(&beforeMsg).Error; err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", beforeMsg.CreatedAt)
	}

	err := query.Find(&messages).Error
	return messages, err
}
