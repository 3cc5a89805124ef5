package realtime

import (
	"context"
	"log/slog"
)

// Notification is the payload handed to the push gateway.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushGateway delivers notifications to devices that have no live session
// (or are not viewing the relevant room). Fire-and-forget from the core's
// perspective: failures are logged, never retried here.
type PushGateway interface {
	SendMessageNotification(ctx context.Context, token string, n Notification) error
	SendIncomingCallNotification(ctx context.Context, token string, n Notification) error
}

// NopPushGateway logs and drops every notification. Used in dev mode and
// tests when no push credentials are configured.
type NopPushGateway struct {
	Log *slog.Logger
}

// SendMessageNotification logs and drops the notification.
func (g NopPushGateway) SendMessageNotification(_ context.Context, token string, n Notification) error {
	if g.Log != nil {
		g.Log.Debug("push.nop.message", "token_present", token != "", "title", n.Title)
	}
	return nil
}

// SendIncomingCallNotification logs and drops the notification.
func (g NopPushGateway) SendIncomingCallNotification(_ context.Context, token string, n Notification) error {
	if g.Log != nil {
		g.Log.Debug("push.nop.call", "token_present", token != "", "title", n.Title)
	}
	return nil
}
