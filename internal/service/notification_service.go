package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/apperr"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/repository"
	"github.com/trungle-dev/relaychat/pkg/push"
)

const defaultDispatchConcurrency = 8

// NotifyInput is one fan-out request: a frozen recipient set plus the
// notification content
type NotifyInput struct {
	UserIDs      []uuid.UUID
	Title        string
	Message      string
	Type         model.NotificationType
	SourceUserID *uuid.UUID
	Data         map[string]string
}

// NotificationService is the fan-out engine: it persists one notification
// per call, tracks per-recipient read state, and hands push payloads to the
// dispatcher as detached background work
type NotificationService struct {
	repo        repository.NotificationStore
	dispatcher  push.Dispatcher
	stream      Streamer
	concurrency int

	// wg tracks in-flight fan-outs so tests and shutdown can drain them
	wg sync.WaitGroup
}

func NewNotificationService(repo repository.NotificationStore, dispatcher push.Dispatcher, stream Streamer, concurrency int) *NotificationService {
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	return &NotificationService{
		repo:        repo,
		dispatcher:  dispatcher,
		stream:      stream,
		concurrency: concurrency,
	}
}

// Notify persists a notification addressed to the deduplicated recipient set
// and returns once the rows are committed. Push dispatch to each recipient
// then proceeds independently in the background: one recipient's failure
// never affects another's delivery and never surfaces to the caller.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	recipients := dedupeIDs(in.UserIDs)
	if len(recipients) == 0 {
		return nil, apperr.Validation("a notification requires at least one recipient")
	}

	typ := in.Type
	if typ == "" {
		typ = model.NotificationTypeSystem
	}

	n := &model.Notification{
		Title:        in.Title,
		Message:      in.Message,
		Type:         typ,
		SourceUserID: in.SourceUserID,
	}
	if len(in.Data) > 0 {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return nil, apperr.Validation("notification data is not serializable: %v", err)
		}
		n.Data = raw
	}
	for _, id := range recipients {
		n.Recipients = append(n.Recipients, model.NotificationRecipient{UserID: id})
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.stream != nil {
		for _, id := range recipients {
			s.stream.SendToUser(id, &model.WSEvent{
				Type:    model.WSEventNotification,
				Payload: s.boundaryView(n, id),
			})
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fanOut(n, recipients)
	}()

	return n, nil
}

// fanOut dispatches the push payload to every recipient under the bounded
// concurrency limit. Outcomes are independent: successes are recorded on the
// recipient row, failures are logged with recipient and reason.
func (s *NotificationService) fanOut(n *model.Notification, recipients []uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	payload := push.PayloadFrom(n)

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, id := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(recipientID uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			s.dispatchOne(n.ID, recipientID, payload)
		}(id)
	}
	wg.Wait()
}

func (s *NotificationService) dispatchOne(notificationID, recipientID uuid.UUID, payload push.Payload) {
	ctx := context.Background()
	if err := s.dispatcher.Dispatch(ctx, recipientID, payload); err != nil {
		log.Printf("⚠️ push dispatch to %s for notification %s failed: %v", recipientID, notificationID, err)
		return
	}
	if err := s.repo.MarkDispatched(ctx, notificationID, recipientID, time.Now()); err != nil {
		log.Printf("⚠️ recording dispatch to %s for notification %s failed: %v", recipientID, notificationID, err)
	}
}

// Wait blocks until all in-flight fan-outs finish
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// MarkRead records one recipient's acknowledgement. Recipients outside the
// frozen set are rejected; re-acknowledging is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, actorID uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, notificationID, actorID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.repo.FindByID(ctx, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("notification %s not found", notificationID)
		}
		return err
	}
	return apperr.Forbidden("you are not a recipient of this notification")
}

// ListForUser returns the actor's notifications, newest first, optionally
// hiding already-read ones. The boundary view carries the requester's read
// flag only, never the full acknowledgement set.
func (s *NotificationService) ListForUser(ctx context.Context, actorID uuid.UUID, includeRead bool, before *uuid.UUID, limit int) ([]model.NotificationResponse, error) {
	rows, err := s.repo.ListForUser(ctx, actorID, includeRead, before, clampLimit(limit))
	if err != nil {
		return nil, cursorErr(err, before)
	}
	out := make([]model.NotificationResponse, 0, len(rows))
	for _, row := range rows {
		resp := s.boundaryView(&row.Notification, actorID)
		resp.IsRead = row.RecipientRead
		out = append(out, resp)
	}
	return out, nil
}

// ListUndispatched exposes recipient rows with no recorded successful
// dispatch, the hook for the periodic re-dispatch sweep
func (s *NotificationService) ListUndispatched(ctx context.Context, limit int) ([]model.NotificationRecipient, error) {
	return s.repo.ListUndispatched(ctx, clampLimit(limit))
}

// Redispatch re-runs push dispatch for pending recipients, one batch at a
// time. Idempotent: a recipient disappears from the pending set once a
// dispatch succeeds. Returns how many dispatches were attempted.
func (s *NotificationService) Redispatch(ctx context.Context, limit int) (int, error) {
	if s.dispatcher == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 100
	}
	pending, err := s.repo.ListUndispatched(ctx, limit)
	if err != nil {
		return 0, err
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, rec := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(rec model.NotificationRecipient) {
			defer wg.Done()
			defer func() { <-sem }()
			s.dispatchOne(rec.NotificationID, rec.UserID, push.PayloadFrom(&rec.Notification))
		}(rec)
	}
	wg.Wait()
	return len(pending), nil
}

func (s *NotificationService) boundaryView(n *model.Notification, userID uuid.UUID) model.NotificationResponse {
	return model.NotificationResponse{
		ID:           n.ID,
		Title:        n.Title,
		Message:      n.Message,
		Type:         n.Type,
		Time:         n.CreatedAt,
		SourceUserID: n.SourceUserID,
		Data:         n.Data,
		IsRead:       n.IsReadBy(userID),
	}
}
