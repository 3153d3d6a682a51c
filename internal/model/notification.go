package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationType is an open set defined by the host application
type NotificationType string

const (
	NotificationTypeNewMessage NotificationType = "new-message"
	NotificationTypeSystem     NotificationType = "system"
	NotificationTypeMention    NotificationType = "mention"
	NotificationTypeAlert      NotificationType = "alert"
)

// Notification is one logical notification fanned out to a fixed recipient
// set. The recipient set is frozen at creation; per-recipient read and
// dispatch state lives on the recipient rows, so readBy is a subset of the
// recipients by construction.
type Notification struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title        string           `json:"title" gorm:"size:200;not null"`
	Message      string           `json:"message" gorm:"type:text"`
	Type         NotificationType `json:"type" gorm:"type:varchar(40);not null;default:'system'"`
	SourceUserID *uuid.UUID       `json:"source_user_id,omitempty" gorm:"type:uuid"` // nil for system-generated
	Data         datatypes.JSON   `json:"data,omitempty" gorm:"type:jsonb"`          // opaque client routing payload
	CreatedAt    time.Time        `json:"time" gorm:"index"`

	// Relations
	Recipients []NotificationRecipient `json:"recipients,omitempty" gorm:"foreignKey:NotificationID"`
}

// NotificationRecipient tracks one recipient's read and dispatch state
type NotificationRecipient struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NotificationID uuid.UUID  `json:"notification_id" gorm:"type:uuid;uniqueIndex:idx_notif_user;not null"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_notif_user;index;not null"`
	Read           bool       `json:"read" gorm:"not null;default:false"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"` // last successful push dispatch

	// Relations
	Notification Notification `json:"-" gorm:"foreignKey:NotificationID"`
}

// UserIDs returns the frozen recipient set
func (n *Notification) UserIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		ids = append(ids, r.UserID)
	}
	return ids
}

// IsReadBy reports whether userID has acknowledged the notification
func (n *Notification) IsReadBy(userID uuid.UUID) bool {
	for _, r := range n.Recipients {
		if r.UserID == userID {
			return r.Read
		}
	}
	return false
}
