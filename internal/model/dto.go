package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ========== Conversation DTOs ==========

type CreateConversationRequest struct {
	MemberIDs   []uuid.UUID `json:"member_ids" binding:"required,min=2"`
	IsGroup     bool        `json:"is_group"`
	Title       string      `json:"title" binding:"max=100"`
	Description string      `json:"description" binding:"max=500"`
	Image       string      `json:"image" binding:"max=500"`
}

// UpdateConversationRequest is a partial patch: nil fields are left untouched
type UpdateConversationRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Image       *string `json:"image" binding:"omitempty,max=500"`
	Archived    *bool   `json:"archived"`
	Locked      *bool   `json:"locked"`
}

type MemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	ReceiverID uuid.UUID   `json:"receiver_id" binding:"required"`
	Content    string      `json:"content" binding:"required_without=Files"`
	Files      []FileInput `json:"files,omitempty"`
}

// FileInput is an attachment reference supplied when sending a message
type FileInput struct {
	URL      string `json:"url" binding:"required"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type MessageListRequest struct {
	Before string `form:"before"` // cursor for pagination (message ID)
	Limit  int    `form:"limit,default=50"`
}

// ========== Notification DTOs ==========

type NotifyRequest struct {
	UserIDs []uuid.UUID       `json:"user_ids" binding:"required,min=1"`
	Title   string            `json:"title" binding:"required,max=200"`
	Message string            `json:"message"`
	Type    NotificationType  `json:"type"`
	Data    map[string]string `json:"data,omitempty"`
}

type NotificationListRequest struct {
	IncludeRead bool   `form:"include_read"`
	Before      string `form:"before"` // cursor for pagination (notification ID)
	Limit       int    `form:"limit,default=50"`
}

// NotificationResponse is the boundary view of one notification for one
// requester; the full recipient read set is never exposed to clients.
type NotificationResponse struct {
	ID           uuid.UUID        `json:"id"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Type         NotificationType `json:"type"`
	Time         time.Time        `json:"time"`
	SourceUserID *uuid.UUID       `json:"source_user_id,omitempty"`
	Data         datatypes.JSON   `json:"data,omitempty"`
	IsRead       bool             `json:"is_read"`
}

// ========== Device DTOs ==========

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required,oneof=android ios web unknown"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventNotification = "notification"
	WSEventNewMessage   = "new_message"
	WSEventMessageRead  = "message_read"
)

type MessageReadEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	UserID         uuid.UUID `json:"user_id"`
}

// ========== Upload DTOs ==========

// UploadResponse is returned after a successful file upload
type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// ExistingID is set on duplicate direct-conversation conflicts so the
	// client can switch to the existing conversation.
	ExistingID *uuid.UUID `json:"existing_id,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
