package dispatch

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/presence"
)

const (
	EventMessageCreated      = "message:created"
	EventMessageDeleted      = "message:deleted"
	EventMessageReacted      = "message:reacted"
	EventLastMessageUpdated  = "conversation:last_message"
	EventConversationDeleted = "conversation:deleted"
	EventTypingStart         = "typing:start"
	EventTypingStop          = "typing:stop"
	EventNotification        = "notification"
)

type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// ParticipantSource resolves the current member set of a conversation.
type ParticipantSource interface {
	Participants(ctx context.Context, convID primitive.ObjectID) ([]string, error)
}

// Dispatcher pushes events to every live connection of every participant.
// Delivery is best-effort: users with no connections receive nothing and are
// expected to reconcile via pull on reconnect.
type Dispatcher struct {
	src ParticipantSource
	reg *presence.Registry
	log *zap.SugaredLogger
}

func NewDispatcher(src ParticipantSource, reg *presence.Registry, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{src: src, reg: reg, log: log}
}

func (d *Dispatcher) BroadcastConversation(ctx context.Context, convID primitive.ObjectID, event string, payload any) {
	participants, err := d.src.Participants(ctx, convID)
	if err != nil {
		d.log.Warnw("fan-out: resolve participants failed", "conversation", convID.Hex(), "event", event, "err", err)
		return
	}
	d.BroadcastUsers(participants, event, payload)
}

func (d *Dispatcher) BroadcastUsers(userIDs []string, event string, payload any) {
	b, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		d.log.Warnw("fan-out: marshal failed", "event", event, "err", err)
		return
	}
	for _, id := range userIDs {
		for _, c := range d.reg.ConnectionsFor(id) {
			c.Deliver(b)
		}
	}
}

func (d *Dispatcher) SendToUser(userID string, event string, payload any) {
	d.BroadcastUsers([]string{userID}, event, payload)
}
