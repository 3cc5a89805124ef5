package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Deliverer implements room-message fan-out and unread accounting: live
// broadcast to the room transport group, per-recipient unread counts, and the
// push-vs-socket delivery decision based on session liveness and active-room
// state.
type Deliverer struct {
	log      *slog.Logger
	hub      *Hub
	sessions *Sessions
	rooms    *ActiveRooms
	store    Store
	push     PushGateway
}

// NewDeliverer constructs the fan-out component.
func NewDeliverer(log *slog.Logger, hub *Hub, sessions *Sessions, rooms *ActiveRooms, store Store, push PushGateway) *Deliverer {
	return &Deliverer{
		log:      log,
		hub:      hub,
		sessions: sessions,
		rooms:    rooms,
		store:    store,
		push:     push,
	}
}

// Deliver handles one inbound room message from sender's connection.
//
// Ordering: when persistence is requested it happens first, so createdAt
// ordering is authoritative; a persistence failure aborts the whole delivery
// and is reported to the sender. Per-member errors after that point are
// isolated: one member's failure never blocks delivery to others.
//
// Unread counts are computed from the store, so a persist=false message is
// broadcast and push-notified but never contributes to unread counts.
func (d *Deliverer) Deliver(ctx context.Context, sender *Client, p v1.RoomMessagePayload) error {
	// Resolve the sender for an accurate notification title; fall back to the
	// client-supplied name when the lookup fails.
	senderName := p.Name
	if u, err := d.store.FindUser(ctx, p.UserID); err == nil && u.Name != "" {
		senderName = u.Name
	}

	var createdAt time.Time
	if p.IsSaveInDB {
		msg, err := d.store.CreateMessage(ctx, p.RoomID, p.UserID, p.Message)
		if err != nil {
			return fmt.Errorf("persist message: %w", err)
		}
		createdAt = msg.CreatedAt
	}

	// Live broadcast to the room transport group, never to the sender's own
	// connection.
	d.hub.BroadcastExcept(p.RoomID, sender.SessionID, NewEnvelope(v1.TypeRoomMessageDeliver, v1.RoomMessageDeliverPayload{
		Message:   p.Message,
		Name:      p.Name,
		UserID:    p.UserID,
		RoomID:    p.RoomID,
		CreatedAt: createdAt,
	}))
	metricMessagesDelivered.Inc()

	members, err := d.store.FindMembers(ctx, p.RoomID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if len(members) == 2 {
		d.deliverPrivate(ctx, sender, p, members, senderName, createdAt)
	} else {
		d.deliverGroup(ctx, p, members, senderName)
	}
	return nil
}

// deliverPrivate handles the two-member room shape: the single other member
// gets an unread-count update (messages authored by the sender) and a
// last-message update; the sender gets a mirrored last-message update so both
// conversation lists stay in sync.
func (d *Deliverer) deliverPrivate(ctx context.Context, sender *Client, p v1.RoomMessagePayload, members []Membership, senderName string, createdAt time.Time) {
	for _, m := range members {
		if m.UserID == p.UserID {
			continue
		}

		unread, err := d.store.CountUnread(ctx, p.RoomID, UnreadFilter{AuthoredBy: p.UserID})
		if err != nil {
			d.log.Warn("fanout.unread.fail", "room_id", p.RoomID, "member", m.UserID, "err", err)
		} else if recipient := d.sessions.Resolve(m.UserID); recipient != nil {
			recipient.TryEnqueue(NewEnvelope(v1.TypeUpdateUnreadCount, v1.UpdateUnreadCountPayload{
				SenderID:    p.UserID,
				RecipientID: m.UserID,
				RoomID:      p.RoomID,
				UnreadCount: unread,
			}))
			recipient.TryEnqueue(NewEnvelope(v1.TypeLastMessageUpdate, v1.LastMessageUpdatePayload{
				RoomID:      p.RoomID,
				OtherUserID: p.UserID,
				Message:     p.Message,
				CreatedAt:   createdAt,
				FromMe:      false,
			}))
		}

		sender.TryEnqueue(NewEnvelope(v1.TypeLastMessageUpdate, v1.LastMessageUpdatePayload{
			RoomID:      p.RoomID,
			OtherUserID: m.UserID,
			Message:     p.Message,
			CreatedAt:   createdAt,
			FromMe:      true,
		}))

		d.maybePush(ctx, m.UserID, p, senderName)
	}
}

// deliverGroup handles rooms with more than two members: every other member
// gets an unread count of messages authored by anyone but themselves.
func (d *Deliverer) deliverGroup(ctx context.Context, p v1.RoomMessagePayload, members []Membership, senderName string) {
	for _, m := range members {
		if m.UserID == p.UserID {
			continue
		}

		unread, err := d.store.CountUnread(ctx, p.RoomID, UnreadFilter{NotAuthoredBy: m.UserID})
		if err != nil {
			d.log.Warn("fanout.unread.fail", "room_id", p.RoomID, "member", m.UserID, "err", err)
		} else {
			d.sessions.SendToUser(m.UserID, NewEnvelope(v1.TypeUpdateUnreadCount, v1.UpdateUnreadCountPayload{
				SenderID:    p.UserID,
				RoomID:      p.RoomID,
				UnreadCount: unread,
			}))
		}

		d.maybePush(ctx, m.UserID, p, senderName)
	}
}

// maybePush sends a push notification unless the member both holds a live
// session and is actively viewing this room (the live delivery already
// informed them).
func (d *Deliverer) maybePush(ctx context.Context, member v1.UserID, p v1.RoomMessagePayload, senderName string) {
	if d.sessions.Resolve(member) != nil && d.rooms.IsViewing(member, p.RoomID) {
		return
	}

	u, err := d.store.FindUser(ctx, member)
	if err != nil {
		d.log.Warn("fanout.push.lookup.fail", "member", member, "err", err)
		return
	}
	if u.PushToken == "" {
		return
	}

	err = d.push.SendMessageNotification(ctx, u.PushToken, Notification{
		Title: senderName,
		Body:  p.Message,
		Data: map[string]string{
			"roomId":   string(p.RoomID),
			"senderId": string(p.UserID),
		},
	})
	if err != nil {
		metricPushesSent.WithLabelValues("message", "error").Inc()
		d.log.Warn("fanout.push.fail", "member", member, "err", err)
		return
	}
	metricPushesSent.WithLabelValues("message", "ok").Inc()
}

// MarkRead updates all unread messages in the room not authored by the reader
// to read, notifies other live sessions in the room, and for two-member rooms
// pushes a zeroed unread count to the other member's live session.
func (d *Deliverer) MarkRead(ctx context.Context, reader *Client, p v1.MarkAsReadPayload) error {
	if _, err := d.store.MarkRead(ctx, p.RoomID, p.UserID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	d.hub.BroadcastExcept(p.RoomID, reader.SessionID, NewEnvelope(v1.TypeMessagesRead, v1.MessagesReadPayload{
		RoomID:   p.RoomID,
		ReaderID: p.UserID,
	}))

	members, err := d.store.FindMembers(ctx, p.RoomID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	if len(members) != 2 {
		return nil
	}

	for _, m := range members {
		if m.UserID == p.UserID {
			continue
		}
		d.sessions.SendToUser(m.UserID, NewEnvelope(v1.TypeUpdateUnreadCount, v1.UpdateUnreadCountPayload{
			SenderID:    m.UserID,
			RecipientID: p.UserID,
			RoomID:      p.RoomID,
			UnreadCount: 0,
		}))
	}
	return nil
}
