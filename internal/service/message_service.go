package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/apperr"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/repository"
)

const notifyTimeout = 15 * time.Second

// Notifier is the slice of the fan-out engine the ledger needs to raise
// new-message alerts
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput) (*model.Notification, error)
}

// Streamer delivers realtime events to a user's connected clients. May be
// nil when no realtime transport is wired.
type Streamer interface {
	SendToUser(userID uuid.UUID, event *model.WSEvent)
}

// MessageService is the message ledger: it owns message records and their
// monotone delivery-state transitions (sent, then received, then read)
type MessageService struct {
	convs    *ConversationService
	msgRepo  repository.MessageStore
	notifier Notifier
	stream   Streamer
}

func NewMessageService(convs *ConversationService, msgRepo repository.MessageStore, notifier Notifier, stream Streamer) *MessageService {
	return &MessageService{
		convs:    convs,
		msgRepo:  msgRepo,
		notifier: notifier,
		stream:   stream,
	}
}

// Send persists a direct message from sender to receiver, creating the
// direct conversation on first contact. Returns once the message row is
// durable; the new-message notification is detached background work whose
// failure never rolls the message back.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	if req.Content == "" && len(req.Files) == 0 {
		return nil, apperr.Validation("a message requires content or files")
	}

	conv, _, err := s.convs.GetOrCreateDirect(ctx, senderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}

	writable, err := s.convs.IsWritable(ctx, conv.ID, senderID)
	if err != nil {
		return nil, err
	}
	if !writable {
		return nil, apperr.Forbidden("you cannot write to this conversation")
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		Sent:           true,
	}
	for i, f := range req.Files {
		msg.Files = append(msg.Files, model.MessageFile{
			URL:      f.URL,
			Name:     f.Name,
			Size:     f.Size,
			MimeType: f.MimeType,
			Position: i,
		})
	}

	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	_ = s.convs.convRepo.TouchUpdatedAt(ctx, conv.ID)

	s.alertReceiver(msg)

	if s.stream != nil {
		s.stream.SendToUser(req.ReceiverID, &model.WSEvent{
			Type:    model.WSEventNewMessage,
			Payload: msg,
		})
	}

	return msg, nil
}

// alertReceiver raises the new-message notification off the send path
func (s *MessageService) alertReceiver(msg *model.Message) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		preview := msg.Content
		if preview == "" {
			preview = "Sent an attachment"
		}
		_, err := s.notifier.Notify(ctx, NotifyInput{
			UserIDs:      []uuid.UUID{msg.ReceiverID},
			Title:        "New message",
			Message:      preview,
			Type:         model.NotificationTypeNewMessage,
			SourceUserID: &msg.SenderID,
			Data: map[string]string{
				"conversation_id": msg.ConversationID.String(),
				"message_id":      msg.ID.String(),
			},
		})
		if err != nil {
			log.Printf("⚠️ new-message notification for message %s failed: %v", msg.ID, err)
		}
	}()
}

// MarkReceived records the receiver's delivery acknowledgement. Idempotent.
func (s *MessageService) MarkReceived(ctx context.Context, messageID, actorID uuid.UUID) (*model.Message, error) {
	return s.transition(ctx, messageID, actorID, s.msgRepo.MarkReceived, "")
}

// MarkRead records that the receiver viewed the message. Forces received as
// well, keeping the delivery lattice monotone. Idempotent.
func (s *MessageService) MarkRead(ctx context.Context, messageID, actorID uuid.UUID) (*model.Message, error) {
	return s.transition(ctx, messageID, actorID, s.msgRepo.MarkRead, model.WSEventMessageRead)
}

func (s *MessageService) transition(ctx context.Context, messageID, actorID uuid.UUID, apply func(context.Context, uuid.UUID, uuid.UUID) error, event string) (*model.Message, error) {
	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("message %s not found", messageID)
		}
		return nil, err
	}
	if msg.ReceiverID != actorID {
		return nil, apperr.Forbidden("only the receiver can update delivery state")
	}

	if err := apply(ctx, messageID, actorID); err != nil {
		return nil, err
	}

	if event != "" && s.stream != nil {
		s.stream.SendToUser(msg.SenderID, &model.WSEvent{
			Type: event,
			Payload: model.MessageReadEvent{
				ConversationID: msg.ConversationID,
				MessageID:      msg.ID,
				UserID:         actorID,
			},
		})
	}

	return s.msgRepo.FindByID(ctx, messageID)
}

// ListSent returns messages the actor sent, newest first
func (s *MessageService) ListSent(ctx context.Context, actorID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages, err := s.msgRepo.ListSent(ctx, actorID, before, clampLimit(limit))
	if err != nil {
		return nil, cursorErr(err, before)
	}
	return messages, nil
}

// ListReceived returns messages addressed to the actor, newest first
func (s *MessageService) ListReceived(ctx context.Context, actorID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages, err := s.msgRepo.ListReceived(ctx, actorID, before, clampLimit(limit))
	if err != nil {
		return nil, cursorErr(err, before)
	}
	return messages, nil
}

// cursorErr translates a failed cursor lookup into a validation error; the
// list scans themselves never report not-found
func cursorErr(err error, before *uuid.UUID) error {
	if before != nil && errors.Is(err, repository.ErrNotFound) {
		return apperr.Validation("unknown pagination cursor %s", before)
	}
	return err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
