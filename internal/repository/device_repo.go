package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceStore resolves users' registered push targets
type DeviceStore interface {
	Upsert(ctx context.Context, device *model.UserDevice) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserDevice, error)
	DeleteToken(ctx context.Context, token string) error
}

// DeviceRepository handles database operations for UserDevice
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert registers a device token, bumping last_active_at if it already exists
func (r *DeviceRepository) Upsert(ctx context.Context, device *model.UserDevice) error {
	device.LastActiveAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "fcm_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_type", "last_active_at"}),
	}).Create(device).Error
}

// ListByUser returns all registered devices for a user
func (r *DeviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserDevice, error) {
	devices := []model.UserDevice{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&devices).Error
	return devices, err
}

// DeleteToken drops a token the push gateway reported as no longer valid
func (r *DeviceRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("fcm_token = ?", token).
		Delete(&model.UserDevice{}).Error
}
