package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeFile   = "file"
	MessageTypeAudio  = "audio"
	MessageTypeSystem = "system"
)

const (
	ReactionLike  = "like"
	ReactionLove  = "love"
	ReactionHaha  = "haha"
	ReactionWow   = "wow"
	ReactionSad   = "sad"
	ReactionAngry = "angry"
)

var reactionTypes = map[string]struct{}{
	ReactionLike:  {},
	ReactionLove:  {},
	ReactionHaha:  {},
	ReactionWow:   {},
	ReactionSad:   {},
	ReactionAngry: {},
}

func ValidReaction(t string) bool {
	_, ok := reactionTypes[t]
	return ok
}

type Reaction struct {
	UserID string `bson:"user_id" json:"userId"`
	Type   string `bson:"type" json:"type"`
}

type Message struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID  `bson:"conversation_id" json:"conversationId"`
	SenderID       string              `bson:"sender_id" json:"senderId"`
	Sender         *UserSummary        `bson:"-" json:"sender,omitempty"`
	Content        string              `bson:"content" json:"content"`
	Attachments    []string            `bson:"attachments" json:"attachments"`
	Type           string              `bson:"type" json:"type"`
	SentAt         time.Time           `bson:"sent_at" json:"sentAt"`
	SeenBy         []string            `bson:"seen_by" json:"seenBy"`
	Reactions      []Reaction          `bson:"reactions" json:"reactions"`
	ReactionsCount map[string]int      `bson:"reactions_count" json:"reactionsCount"`
	HiddenFor      []string            `bson:"hidden_for" json:"-"`
	IsHideAll      bool                `bson:"is_hide_all" json:"isHideAll"`
	IsPinned       bool                `bson:"is_pinned" json:"isPinned"`
	ReplyTo        *primitive.ObjectID `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
}

// VisibleTo reports whether the message should be rendered for userID.
func (m *Message) VisibleTo(userID string) bool {
	if m.IsHideAll {
		return false
	}
	for _, id := range m.HiddenFor {
		if id == userID {
			return false
		}
	}
	return true
}

// ReactionBy returns the user's active reaction type, if any.
func (m *Message) ReactionBy(userID string) (string, bool) {
	for _, r := range m.Reactions {
		if r.UserID == userID {
			return r.Type, true
		}
	}
	return "", false
}
