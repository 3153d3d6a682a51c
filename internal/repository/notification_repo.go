package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"gorm.io/gorm"
)

// UserNotification is one notification joined with the requesting
// recipient's read flag
type UserNotification struct {
	model.Notification `gorm:"embedded"`
	RecipientRead      bool `gorm:"column:recipient_read"`
}

// NotificationStore is the fan-out engine's storage contract
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (bool, error)
	MarkDispatched(ctx context.Context, notificationID, userID uuid.UUID, at time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID, includeRead bool, before *uuid.UUID, limit int) ([]UserNotification, error)
	ListUndispatched(ctx context.Context, limit int) ([]model.NotificationRecipient, error)
}

// NotificationRepository handles database operations for Notification
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts the notification and its recipient rows in one transaction;
// the recipient set is immutable after this point
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// FindByID finds a notification by ID with its recipients
func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).
		Preload("Recipients").
		Where("id = ?", id).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead sets the read flag on the recipient row via a single guarded
// update. Returns false when no recipient row matched, i.e. the user is not
// in the frozen recipient set. Idempotent for recipients.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.NotificationRecipient{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": gorm.Expr("COALESCE(read_at, NOW())"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkDispatched records a successful push dispatch for one recipient
func (r *NotificationRepository) MarkDispatched(ctx context.Context, notificationID, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.NotificationRecipient{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Update("dispatched_at", at).Error
}

// ListForUser returns notifications addressed to a user, newest first,
// cursor-paginated, optionally hiding already-read ones
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, includeRead bool, before *uuid.UUID, limit int) ([]UserNotification, error) {
	rows := []UserNotification{}
	query := r.db.WithContext(ctx).Model(&model.Notification{}).
		Select("notifications.*, nr.read AS recipient_read").
		Joins("JOIN notification_recipients nr ON nr.notification_id = notifications.id").
		Where("nr.user_id = ?", userID).
		Order("notifications.created_at DESC").
		Limit(limit)
	if !includeRead {
		query = query.Where("nr.read = ?", false)
	}
	if before != nil {
		var beforeN model.Notification
		if err := r.db.WithContext(ctx).Select("created_at").Where("id = ?", before).First(&beforeN).Error; err != nil {
			return nil, err
		}
		query = query.Where("notifications.created_at < ?", beforeN.CreatedAt)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// ListUndispatched returns recipient rows with no recorded successful
// dispatch, oldest first, with their notifications preloaded. This is the
// hook for the periodic re-dispatch sweep.
func (r *NotificationRepository) ListUndispatched(ctx context.Context, limit int) ([]model.NotificationRecipient, error) {
	rows := []model.NotificationRecipient{}
	err := r.db.WithContext(ctx).
		Preload("Notification").
		Joins("JOIN notifications ON notifications.id = notification_recipients.notification_id").
		Where("notification_recipients.dispatched_at IS NULL").
		Order("notifications.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
