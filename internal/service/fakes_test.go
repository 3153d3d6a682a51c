package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/repository"
	"github.com/trungle-dev/relaychat/pkg/push"
	"gorm.io/gorm"
)

// fakeConvStore is an in-memory ConversationStore mirroring the repository's
// semantics: unique direct keys, soft-deleted membership rows, blocked flags
// that survive removal.
type fakeConvStore struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*model.Conversation
	now   time.Time
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{
		convs: make(map[uuid.UUID]*model.Conversation),
		now:   time.Now(),
	}
}

func (f *fakeConvStore) tick() time.Time {
	f.now = f.now.Add(time.Millisecond)
	return f.now
}

func (f *fakeConvStore) Create(ctx context.Context, conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if conv.DirectKey != nil {
		for _, c := range f.convs {
			if c.DirectKey != nil && *c.DirectKey == *conv.DirectKey {
				return repository.ErrDuplicate
			}
		}
	}

	conv.ID = uuid.New()
	conv.CreatedAt = f.tick()
	conv.UpdatedAt = conv.CreatedAt
	for i := range conv.Members {
		conv.Members[i].ID = uuid.New()
		conv.Members[i].ConversationID = conv.ID
		conv.Members[i].JoinedAt = conv.CreatedAt
	}

	stored := *conv
	stored.Members = append([]model.ConversationMember(nil), conv.Members...)
	f.convs[conv.ID] = &stored
	return nil
}

func currentMembers(c *model.Conversation) []model.ConversationMember {
	out := []model.ConversationMember{}
	for _, m := range c.Members {
		if !m.DeletedAt.Valid {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConvStore) view(c *model.Conversation) *model.Conversation {
	out := *c
	out.Members = currentMembers(c)
	return &out
}

func (f *fakeConvStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.view(c), nil
}

func (f *fakeConvStore) FindByDirectKey(ctx context.Context, key string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.DirectKey != nil && *c.DirectKey == key {
			return f.view(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConvStore) ListForUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Conversation{}
	for _, c := range f.convs {
		if c.Archived && !includeArchived {
			continue
		}
		for _, m := range currentMembers(c) {
			if m.UserID == userID {
				out = append(out, *f.view(c))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConvStore) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			c.Title = v.(string)
		case "description":
			c.Description = v.(string)
		case "image":
			c.Image = v.(string)
		case "archived":
			c.Archived = v.(bool)
		case "locked":
			c.Locked = v.(bool)
		default:
			return fmt.Errorf("unexpected field %q", k)
		}
	}
	c.UpdatedAt = f.tick()
	return nil
}

func (f *fakeConvStore) AddMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			c.Members[i].DeletedAt = gorm.DeletedAt{}
			c.Members[i].JoinedAt = f.tick()
			return nil
		}
	}
	c.Members = append(c.Members, model.ConversationMember{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       f.tick(),
	})
	return nil
}

func (f *fakeConvStore) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return nil
	}
	for i := range c.Members {
		if c.Members[i].UserID == userID && !c.Members[i].DeletedAt.Valid {
			c.Members[i].DeletedAt = gorm.DeletedAt{Time: f.tick(), Valid: true}
		}
	}
	return nil
}

func (f *fakeConvStore) SetBlocked(ctx context.Context, conversationID, userID uuid.UUID, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			c.Members[i].Blocked = blocked
			return nil
		}
	}
	c.Members = append(c.Members, model.ConversationMember{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Blocked:        blocked,
		JoinedAt:       f.tick(),
	})
	return nil
}

func (f *fakeConvStore) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*model.ConversationMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, m := range c.Members {
		if m.UserID == userID && !m.DeletedAt.Valid {
			out := m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConvStore) TouchUpdatedAt(ctx context.Context, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[conversationID]; ok {
		c.UpdatedAt = f.tick()
	}
	return nil
}

// fakeMessageStore is an in-memory MessageStore with guarded delivery
// updates and cursor pagination.
type fakeMessageStore struct {
	mu   sync.Mutex
	msgs map[uuid.UUID]*model.Message
	now  time.Time
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		msgs: make(map[uuid.UUID]*model.Message),
		now:  time.Now(),
	}
}

func (f *fakeMessageStore) Create(ctx context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Millisecond)
	msg.ID = uuid.New()
	msg.CreatedAt = f.now
	msg.UpdatedAt = f.now
	for i := range msg.Files {
		msg.Files[i].ID = uuid.New()
		msg.Files[i].MessageID = msg.ID
	}
	stored := *msg
	stored.Files = append([]model.MessageFile(nil), msg.Files...)
	f.msgs[msg.ID] = &stored
	return nil
}

func (f *fakeMessageStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *m
	out.Files = append([]model.MessageFile(nil), m.Files...)
	return &out, nil
}

func (f *fakeMessageStore) MarkReceived(ctx context.Context, messageID, receiverID uuid.UUID) error {
	return f.markDelivery(messageID, receiverID, false)
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, messageID, receiverID uuid.UUID) error {
	return f.markDelivery(messageID, receiverID, true)
}

func (f *fakeMessageStore) markDelivery(messageID, receiverID uuid.UUID, read bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok || m.ReceiverID != receiverID {
		return repository.ErrNotFound
	}
	m.Received = true
	if read {
		m.Read = true
	}
	return nil
}

func (f *fakeMessageStore) ListSent(ctx context.Context, senderID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	return f.list(func(m *model.Message) bool { return m.SenderID == senderID }, before, limit)
}

func (f *fakeMessageStore) ListReceived(ctx context.Context, receiverID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	return f.list(func(m *model.Message) bool { return m.ReceiverID == receiverID }, before, limit)
}

func (f *fakeMessageStore) list(match func(*model.Message) bool, before *uuid.UUID, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cutoff *time.Time
	if before != nil {
		b, ok := f.msgs[*before]
		if !ok {
			return nil, repository.ErrNotFound
		}
		cutoff = &b.CreatedAt
	}

	out := []model.Message{}
	for _, m := range f.msgs {
		if !match(m) {
			continue
		}
		if cutoff != nil && !m.CreatedAt.Before(*cutoff) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeNotifStore is an in-memory NotificationStore with per-recipient read
// and dispatch state.
type fakeNotifStore struct {
	mu     sync.Mutex
	notifs map[uuid.UUID]*model.Notification
	now    time.Time
}

func newFakeNotifStore() *fakeNotifStore {
	return &fakeNotifStore{
		notifs: make(map[uuid.UUID]*model.Notification),
		now:    time.Now(),
	}
}

func (f *fakeNotifStore) Create(ctx context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Millisecond)
	n.ID = uuid.New()
	n.CreatedAt = f.now
	for i := range n.Recipients {
		n.Recipients[i].ID = uuid.New()
		n.Recipients[i].NotificationID = n.ID
	}
	stored := *n
	stored.Recipients = append([]model.NotificationRecipient(nil), n.Recipients...)
	f.notifs[n.ID] = &stored
	return nil
}

func (f *fakeNotifStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *n
	out.Recipients = append([]model.NotificationRecipient(nil), n.Recipients...)
	return &out, nil
}

func (f *fakeNotifStore) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifs[notificationID]
	if !ok {
		return false, nil
	}
	for i := range n.Recipients {
		if n.Recipients[i].UserID == userID {
			n.Recipients[i].Read = true
			if n.Recipients[i].ReadAt == nil {
				at := time.Now()
				n.Recipients[i].ReadAt = &at
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifStore) MarkDispatched(ctx context.Context, notificationID, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifs[notificationID]
	if !ok {
		return nil
	}
	for i := range n.Recipients {
		if n.Recipients[i].UserID == userID {
			t := at
			n.Recipients[i].DispatchedAt = &t
		}
	}
	return nil
}

func (f *fakeNotifStore) ListForUser(ctx context.Context, userID uuid.UUID, includeRead bool, before *uuid.UUID, limit int) ([]repository.UserNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cutoff *time.Time
	if before != nil {
		b, ok := f.notifs[*before]
		if !ok {
			return nil, repository.ErrNotFound
		}
		cutoff = &b.CreatedAt
	}

	out := []repository.UserNotification{}
	for _, n := range f.notifs {
		for _, r := range n.Recipients {
			if r.UserID != userID {
				continue
			}
			if r.Read && !includeRead {
				continue
			}
			if cutoff != nil && !n.CreatedAt.Before(*cutoff) {
				continue
			}
			row := repository.UserNotification{Notification: *n, RecipientRead: r.Read}
			row.Recipients = append([]model.NotificationRecipient(nil), n.Recipients...)
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotifStore) ListUndispatched(ctx context.Context, limit int) ([]model.NotificationRecipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.NotificationRecipient{}
	for _, n := range f.notifs {
		for _, r := range n.Recipients {
			if r.DispatchedAt != nil {
				continue
			}
			rec := r
			rec.Notification = *n
			rec.Notification.Recipients = nil
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Notification.CreatedAt.Before(out[j].Notification.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeDispatcher records dispatch calls and can be told to fail for
// specific recipients.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []dispatchCall
	failFor map[uuid.UUID]error
}

type dispatchCall struct {
	RecipientID uuid.UUID
	Payload     push.Payload
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{failFor: make(map[uuid.UUID]error)}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, recipientID uuid.UUID, payload push.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{RecipientID: recipientID, Payload: payload})
	if err, ok := f.failFor[recipientID]; ok {
		return err
	}
	return nil
}

func (f *fakeDispatcher) Calls() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchCall(nil), f.calls...)
}

// fakeStreamer records realtime events per user.
type fakeStreamer struct {
	mu     sync.Mutex
	events map[uuid.UUID][]*model.WSEvent
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{events: make(map[uuid.UUID][]*model.WSEvent)}
}

func (f *fakeStreamer) SendToUser(userID uuid.UUID, event *model.WSEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[userID] = append(f.events[userID], event)
}

func (f *fakeStreamer) Events(userID uuid.UUID) []*model.WSEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.WSEvent(nil), f.events[userID]...)
}

// fakeNotifier records the ledger's fan-out requests synchronously.
type fakeNotifier struct {
	mu     sync.Mutex
	inputs []NotifyInput
}

func (f *fakeNotifier) Notify(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return &model.Notification{ID: uuid.New()}, nil
}

func (f *fakeNotifier) Inputs() []NotifyInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NotifyInput(nil), f.inputs...)
}
