package model

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a direct message between two users.
//
// Delivery state is the monotone triple sent/received/read: flags are only
// ever set to true, and read implies received implies sent. All transitions
// go through guarded single-statement updates in the repository, so a
// message can never be observed as read but not received.
type Message struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;index;not null"`
	SenderID       uuid.UUID `json:"sender_id" gorm:"type:uuid;index:idx_msg_sender_time;not null"`
	ReceiverID     uuid.UUID `json:"receiver_id" gorm:"type:uuid;index:idx_msg_receiver_time;not null"`
	Content        string    `json:"content" gorm:"type:text"` // may be empty for attachment-only messages

	Sent     bool `json:"sent" gorm:"not null;default:true"`
	Received bool `json:"received" gorm:"not null;default:false"`
	Read     bool `json:"read" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_msg_sender_time;index:idx_msg_receiver_time"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Files        []MessageFile `json:"files,omitempty" gorm:"foreignKey:MessageID"`
	Conversation Conversation  `json:"-" gorm:"foreignKey:ConversationID"`
}

// MessageFile is an ordered attachment reference on a message
type MessageFile struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;index;not null"`
	URL       string    `json:"url" gorm:"size:1000;not null"`
	Name      string    `json:"name" gorm:"size:255"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type" gorm:"size:100"`
	Position  int       `json:"position" gorm:"not null;default:0"` // order within the message
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Message Message `json:"-" gorm:"foreignKey:MessageID"`
}
