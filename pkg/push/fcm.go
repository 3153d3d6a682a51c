package push

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/repository"
	"google.golang.org/api/option"
)

// FCMDispatcher delivers payloads through Firebase Cloud Messaging, resolving
// each recipient's registered device tokens from the device store
type FCMDispatcher struct {
	client  *messaging.Client
	devices repository.DeviceStore
}

// NewFCM creates an FCM dispatcher. A missing or broken credentials file
// disables push instead of blocking startup: the returned nil dispatcher is
// safe to inject, every Dispatch on it is a no-op.
func NewFCM(credentialsFile string, devices repository.DeviceStore) (*FCMDispatcher, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️ Failed to initialize Firebase app: %v (push notifications disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &FCMDispatcher{client: client, devices: devices}, nil
}

// Dispatch sends one multicast message to all of the recipient's devices.
// No registered devices is a successful no-op. Tokens the gateway reports as
// unregistered are dropped from the device store.
func (d *FCMDispatcher) Dispatch(ctx context.Context, recipientID uuid.UUID, payload Payload) error {
	if d == nil || d.client == nil {
		return nil
	}

	devices, err := d.devices.ListByUser(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolving devices for %s: %w", recipientID, err)
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, dev := range devices {
		tokens = append(tokens, dev.FCMToken)
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := d.client.SendMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}
			log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			if messaging.IsUnregistered(resp.Error) {
				_ = d.devices.DeleteToken(ctx, tokens[idx])
			}
		}
	}
	if br.SuccessCount == 0 {
		return fmt.Errorf("all %d device tokens failed for recipient %s", len(tokens), recipientID)
	}

	return nil
}
