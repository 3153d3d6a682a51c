package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation represents a direct (two-member) or group conversation
type Conversation struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	IsGroup     bool      `json:"is_group" gorm:"not null;default:false"`
	Title       string    `json:"title,omitempty" gorm:"size:100"`       // group title, empty for direct
	Description string    `json:"description,omitempty" gorm:"size:500"` // group description
	Image       string    `json:"image,omitempty" gorm:"size:500"`       // group image URL

	// DirectKey is the canonical sorted member pair for direct conversations,
	// unique across the registry so the same pair can never own two of them.
	// Nil for groups.
	DirectKey *string `json:"-" gorm:"size:80;uniqueIndex"`

	Archived  bool      `json:"archived" gorm:"not null;default:false"` // hidden from active lists, writes still allowed
	Locked    bool      `json:"locked" gorm:"not null;default:false"`   // rejects all new messages
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Members []ConversationMember `json:"members,omitempty" gorm:"foreignKey:ConversationID"`
}

// ConversationMember represents a user's membership in a conversation.
// Removal is a soft delete; a blocked member keeps their row with Blocked set
// so the block survives removal and prevents re-joining.
type ConversationMember struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID      `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	Blocked        bool           `json:"blocked" gorm:"not null;default:false"`
	JoinedAt       time.Time      `json:"joined_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

// DirectKey canonicalizes an unordered member pair into the unique key used
// to enforce one direct conversation per pair
func DirectKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}

// MemberIDs returns the ids of all current (non-removed) members
func (c *Conversation) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasMember reports whether userID is a current member
func (c *Conversation) HasMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
