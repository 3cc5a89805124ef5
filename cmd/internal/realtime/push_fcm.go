package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMGateway is the production PushGateway backed by Firebase Cloud
// Messaging, matching what the surrounding mobile application registers
// device tokens against.
type FCMGateway struct {
	log    *slog.Logger
	client *messaging.Client
}

// NewFCMGateway constructs an FCM-backed gateway from a service account
// credentials file.
func NewFCMGateway(ctx context.Context, log *slog.Logger, credentialsFile string) (*FCMGateway, error) {
	if credentialsFile == "" {
		return nil, errors.New("fcm: missing credentials file")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("fcm: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: init messaging: %w", err)
	}
	return &FCMGateway{log: log, client: client}, nil
}

// SendMessageNotification delivers a chat-message notification.
func (g *FCMGateway) SendMessageNotification(ctx context.Context, token string, n Notification) error {
	return g.send(ctx, token, n, "message")
}

// SendIncomingCallNotification delivers an incoming-call notification with
// high priority so the device can surface the call UI promptly.
func (g *FCMGateway) SendIncomingCallNotification(ctx context.Context, token string, n Notification) error {
	return g.send(ctx, token, n, "call")
}

func (g *FCMGateway) send(ctx context.Context, token string, n Notification, kind string) error {
	if token == "" {
		return errors.New("fcm: empty token")
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	id, err := g.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm: send %s: %w", kind, err)
	}
	g.log.Debug("push.fcm.sent", "kind", kind, "message_id", id)
	return nil
}
