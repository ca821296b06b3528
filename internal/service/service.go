package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vtrnguyen/orisharin-server/internal/models"
)

// ConversationStore is the persistence surface the services need from the
// conversation repository.
type ConversationStore interface {
	Create(ctx context.Context, c *models.Conversation) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindDirectByPair(ctx context.Context, a, b string) (*models.Conversation, error)
	FindAllByUser(ctx context.Context, userID string, page, limit int64) ([]*models.Conversation, int64, error)
	AddParticipants(ctx context.Context, id primitive.ObjectID, userIDs []string) error
	RemoveParticipants(ctx context.Context, id primitive.ObjectID, userIDs []string) error
	SetCreatedBy(ctx context.Context, id primitive.ObjectID, userID string) error
	SetName(ctx context.Context, id primitive.ObjectID, name string) error
	SetAvatar(ctx context.Context, id primitive.ObjectID, url string) error
	SetTheme(ctx context.Context, id primitive.ObjectID, theme string) error
	SetLastMessage(ctx context.Context, id primitive.ObjectID, lm *models.LastMessage) error
	PushPinned(ctx context.Context, id primitive.ObjectID, pm models.PinnedMessage) error
	PullPinned(ctx context.Context, id, messageID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	FindByConversation(ctx context.Context, convID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, userID string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, convID primitive.ObjectID, userID string) error
	AddReaction(ctx context.Context, id primitive.ObjectID, userID, rtype string) error
	RemoveReaction(ctx context.Context, id primitive.ObjectID, userID, rtype string) error
	ChangeReaction(ctx context.Context, id primitive.ObjectID, userID, oldType, newType string) error
	SetPinned(ctx context.Context, id primitive.ObjectID, pinned bool) error
	HideForUser(ctx context.Context, id primitive.ObjectID, userID string) error
	HideForAll(ctx context.Context, id primitive.ObjectID) error
	DeleteByConversation(ctx context.Context, convID primitive.ObjectID) error
}

// UserDirectory resolves display info from the externally-owned user store.
type UserDirectory interface {
	ResolveMany(ctx context.Context, ids []string) ([]models.UserSummary, error)
}

// Notifier is the fan-out seam; satisfied by dispatch.Dispatcher.
type Notifier interface {
	BroadcastConversation(ctx context.Context, convID primitive.ObjectID, event string, payload any)
	BroadcastUsers(userIDs []string, event string, payload any)
	SendToUser(userID string, event string, payload any)
}

// SystemMessageWriter lets the conversation state machine emit system
// messages through the ingestion pipeline's last-message path without a
// package cycle.
type SystemMessageWriter interface {
	WriteSystem(ctx context.Context, convID primitive.ObjectID, actorID, content string) (*models.Message, error)
}

// Pusher is the out-of-band notification sink; Push never fails the caller.
type Pusher interface {
	Push(recipientID string, event any)
}

type MessagePage struct {
	Messages []*models.Message `json:"messages"`
	Total    int64             `json:"total"`
	Page     int64             `json:"page"`
	Limit    int64             `json:"limit"`
	HasMore  bool              `json:"hasMore"`
}

type ConversationPage struct {
	Conversations []*models.Conversation `json:"conversations"`
	Total         int64                  `json:"total"`
	Page          int64                  `json:"page"`
	Limit         int64                  `json:"limit"`
	HasMore       bool                   `json:"hasMore"`
}

type lastMessagePayload struct {
	ConversationID string              `json:"conversationId"`
	LastMessage    *models.LastMessage `json:"lastMessage"`
}

type messageDeletedPayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
}

type conversationDeletedPayload struct {
	ID string `json:"id"`
}

type reactionPayload struct {
	MessageID      string         `json:"messageId"`
	ConversationID string         `json:"conversationId"`
	UserID         string         `json:"userId"`
	Type           *string        `json:"type"`
	ReactionsCount map[string]int `json:"reactionsCount"`
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// namesFor resolves display names best-effort; unresolvable ids fall back to
// the raw id so system-message rendering never fails an operation.
func namesFor(ctx context.Context, dir UserDirectory, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = id
	}
	if dir == nil {
		return out
	}
	users, err := dir.ResolveMany(ctx, ids)
	if err != nil {
		return out
	}
	for _, u := range users {
		out[u.ID] = u.DisplayName()
	}
	return out
}
