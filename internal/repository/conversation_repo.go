package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationStore is the registry's storage contract
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	FindByDirectKey(ctx context.Context, key string) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]model.Conversation, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	AddMember(ctx context.Context, conversationID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error
	SetBlocked(ctx context.Context, conversationID, userID uuid.UUID, blocked bool) error
	GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*model.ConversationMember, error)
	TouchUpdatedAt(ctx context.Context, conversationID uuid.UUID) error
}

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation with its member rows. A direct conversation
// whose pair already exists fails with ErrDuplicate (unique direct_key).
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// FindByID finds a conversation by ID with members
func (r *ConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByDirectKey finds the direct conversation owning the canonical pair key
func (r *ConversationRepository) FindByDirectKey(ctx context.Context, key string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("direct_key = ?", key).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the user's conversations ordered by latest activity,
// hiding archived ones unless asked for
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]model.Conversation, error) {
	conversations := []model.Conversation{}
	query := r.db.WithContext(ctx).
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversation_members.user_id = ? AND conversation_members.deleted_at IS NULL", userID).
		Preload("Members").
		Order("conversations.updated_at DESC")
	if !includeArchived {
		query = query.Where("conversations.archived = ?", false)
	}
	err := query.Find(&conversations).Error
	return conversations, err
}

// UpdateFields applies a partial patch to a conversation row
func (r *ConversationRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember adds a user to a conversation, restoring a previously removed
// membership row if one exists (the blocked flag survives removal)
func (r *ConversationRepository) AddMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	var existing model.ConversationMember
	err := r.db.WithContext(ctx).Unscoped().
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).Unscoped().
			Model(&model.ConversationMember{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"deleted_at": nil, "joined_at": time.Now()}).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(&model.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	}).Error
}

// RemoveMember soft-deletes a member from a conversation
func (r *ConversationRepository) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&model.ConversationMember{}).Error
}

// SetBlocked upserts the blocked flag for a user in a conversation. The row
// is created if the user has no membership of record, so blocking a
// non-member still prevents them from joining later. Idempotent.
func (r *ConversationRepository) SetBlocked(ctx context.Context, conversationID, userID uuid.UUID, blocked bool) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"blocked": blocked}),
	}).Create(&model.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Blocked:        blocked,
		JoinedAt:       time.Now(),
	}).Error
}

// GetMember fetches the current membership row for a user, ErrNotFound if
// the user is not a member (or was removed)
func (r *ConversationRepository) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*model.ConversationMember, error) {
	var member model.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// TouchUpdatedAt bumps the updated_at timestamp (to sort by latest activity)
func (r *ConversationRepository) TouchUpdatedAt(ctx context.Context, conversationID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", gorm.Expr("NOW()")).Error
}
