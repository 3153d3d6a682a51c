package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trungle-dev/relaychat/internal/apperr"
	"github.com/trungle-dev/relaychat/internal/model"
)

type msgFixture struct {
	svc      *MessageService
	convs    *ConversationService
	msgStore *fakeMessageStore
	notifier *fakeNotifier
	stream   *fakeStreamer
}

func newMsgFixture() *msgFixture {
	convStore := newFakeConvStore()
	msgStore := newFakeMessageStore()
	notifier := &fakeNotifier{}
	stream := newFakeStreamer()
	convs := NewConversationService(convStore)
	return &msgFixture{
		svc:      NewMessageService(convs, msgStore, notifier, stream),
		convs:    convs,
		msgStore: msgStore,
		notifier: notifier,
		stream:   stream,
	}
}

func TestSendCreatesConversationOnFirstContact(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	msg, err := f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "hello",
	})
	require.NoError(t, err)
	assert.True(t, msg.Sent)
	assert.False(t, msg.Received)
	assert.False(t, msg.Read)

	// the implicit direct conversation now exists and is reused
	conv, created, err := f.convs.GetOrCreateDirect(context.Background(), receiver, sender)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, msg.ConversationID)

	// a second message lands in the same conversation
	msg2, err := f.svc.Send(context.Background(), receiver, model.SendMessageRequest{
		ReceiverID: sender,
		Content:    "hi back",
	})
	require.NoError(t, err)
	assert.Equal(t, msg.ConversationID, msg2.ConversationID)
}

func TestSendRaisesNewMessageNotification(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	msg, err := f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "ping",
	})
	require.NoError(t, err)

	// the alert is detached background work
	require.Eventually(t, func() bool {
		return len(f.notifier.Inputs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	in := f.notifier.Inputs()[0]
	assert.Equal(t, []uuid.UUID{receiver}, in.UserIDs)
	assert.Equal(t, model.NotificationTypeNewMessage, in.Type)
	assert.Equal(t, "ping", in.Message)
	require.NotNil(t, in.SourceUserID)
	assert.Equal(t, sender, *in.SourceUserID)
	assert.Equal(t, msg.ID.String(), in.Data["message_id"])
	assert.Equal(t, msg.ConversationID.String(), in.Data["conversation_id"])

	// the receiver also gets a realtime event
	events := f.stream.Events(receiver)
	require.Len(t, events, 1)
	assert.Equal(t, model.WSEventNewMessage, events[0].Type)
}

func TestSendAttachmentOnlyUsesPreviewFallback(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	msg, err := f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Files: []model.FileInput{
			{URL: "https://cdn.example.com/a.png", Name: "a.png", MimeType: "image/png"},
			{URL: "https://cdn.example.com/b.pdf", Name: "b.pdf", MimeType: "application/pdf"},
		},
	})
	require.NoError(t, err)
	require.Len(t, msg.Files, 2)
	assert.Equal(t, 0, msg.Files[0].Position)
	assert.Equal(t, 1, msg.Files[1].Position)

	require.Eventually(t, func() bool {
		return len(f.notifier.Inputs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Sent an attachment", f.notifier.Inputs()[0].Message)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := newMsgFixture()
	_, err := f.svc.Send(context.Background(), uuid.New(), model.SendMessageRequest{
		ReceiverID: uuid.New(),
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, f.notifier.Inputs())
}

func TestSendToSelfIsRejected(t *testing.T) {
	f := newMsgFixture()
	a := uuid.New()
	_, err := f.svc.Send(context.Background(), a, model.SendMessageRequest{
		ReceiverID: a,
		Content:    "note to self",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSendIntoLockedConversation(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	conv, _, err := f.convs.GetOrCreateDirect(context.Background(), sender, receiver)
	require.NoError(t, err)
	_, err = f.convs.Update(context.Background(), conv.ID, model.UpdateConversationRequest{Locked: boolptr(true)})
	require.NoError(t, err)

	_, err = f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "too late",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// no message row and no notification
	msgs, err := f.svc.ListSent(context.Background(), sender, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, f.notifier.Inputs())
}

func TestSendByBlockedSender(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	conv, _, err := f.convs.GetOrCreateDirect(context.Background(), sender, receiver)
	require.NoError(t, err)
	require.NoError(t, f.convs.BlockMember(context.Background(), conv.ID, sender))

	_, err = f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "blocked",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// the receiver can still write
	_, err = f.svc.Send(context.Background(), receiver, model.SendMessageRequest{
		ReceiverID: sender,
		Content:    "still here",
	})
	assert.NoError(t, err)
}

func TestMarkReadForcesReceived(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	msg, err := f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "read me",
	})
	require.NoError(t, err)

	// skip straight to read without acknowledging receipt
	updated, err := f.svc.MarkRead(context.Background(), msg.ID, receiver)
	require.NoError(t, err)
	assert.True(t, updated.Read)
	assert.True(t, updated.Received)
	assert.True(t, updated.Sent)

	// the sender is told the message was read
	events := f.stream.Events(sender)
	require.Len(t, events, 1)
	assert.Equal(t, model.WSEventMessageRead, events[0].Type)
}

func TestDeliveryTransitionsAreIdempotent(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	msg, err := f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "x",
	})
	require.NoError(t, err)

	_, err = f.svc.MarkReceived(context.Background(), msg.ID, receiver)
	require.NoError(t, err)
	_, err = f.svc.MarkReceived(context.Background(), msg.ID, receiver)
	require.NoError(t, err)

	_, err = f.svc.MarkRead(context.Background(), msg.ID, receiver)
	require.NoError(t, err)

	// MarkReceived after read never regresses the read flag
	updated, err := f.svc.MarkReceived(context.Background(), msg.ID, receiver)
	require.NoError(t, err)
	assert.True(t, updated.Received)
	assert.True(t, updated.Read)
}

func TestOnlyReceiverControlsDeliveryState(t *testing.T) {
	f := newMsgFixture()
	sender, receiver := uuid.New(), uuid.New()

	msg, err := f.svc.Send(context.Background(), sender, model.SendMessageRequest{
		ReceiverID: receiver,
		Content:    "x",
	})
	require.NoError(t, err)

	_, err = f.svc.MarkRead(context.Background(), msg.ID, sender)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = f.svc.MarkRead(context.Background(), msg.ID, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = f.svc.MarkRead(context.Background(), uuid.New(), receiver)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListSentAndReceived(t *testing.T) {
	f := newMsgFixture()
	a, b := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Send(context.Background(), a, model.SendMessageRequest{
			ReceiverID: b,
			Content:    "from a",
		})
		require.NoError(t, err)
	}
	_, err := f.svc.Send(context.Background(), b, model.SendMessageRequest{
		ReceiverID: a,
		Content:    "from b",
	})
	require.NoError(t, err)

	sent, err := f.svc.ListSent(context.Background(), a, nil, 0)
	require.NoError(t, err)
	assert.Len(t, sent, 3)

	received, err := f.svc.ListReceived(context.Background(), a, nil, 0)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "from b", received[0].Content)

	// newest first, cursor walks backwards
	sent2, err := f.svc.ListSent(context.Background(), a, nil, 2)
	require.NoError(t, err)
	require.Len(t, sent2, 2)
	assert.True(t, sent2[0].CreatedAt.After(sent2[1].CreatedAt))

	rest, err := f.svc.ListSent(context.Background(), a, &sent2[1].ID, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].CreatedAt.Before(sent2[1].CreatedAt))
}

func TestListRejectsUnknownCursor(t *testing.T) {
	f := newMsgFixture()
	a, b := uuid.New(), uuid.New()

	_, err := f.svc.Send(context.Background(), a, model.SendMessageRequest{
		ReceiverID: b,
		Content:    "x",
	})
	require.NoError(t, err)

	bogus := uuid.New()
	_, err = f.svc.ListSent(context.Background(), a, &bogus, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.ListReceived(context.Background(), b, &bogus, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
