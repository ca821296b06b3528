package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LastMessage is the denormalized snapshot kept on the conversation for cheap
// list rendering. It is overwritten on every send and on interaction events.
type LastMessage struct {
	ID          primitive.ObjectID `bson:"id" json:"id"`
	Content     string             `bson:"content" json:"content"`
	Attachments []string           `bson:"attachments" json:"attachments"`
	SenderID    string             `bson:"sender_id" json:"senderId"`
	Type        string             `bson:"type" json:"type"`
	SentAt      time.Time          `bson:"sent_at" json:"sentAt"`
}

// PinnedMessage is a denormalized copy embedded in the conversation; it is
// added and removed in lockstep with the message's is_pinned flag.
type PinnedMessage struct {
	MessageID primitive.ObjectID `bson:"message_id" json:"messageId"`
	Content   string             `bson:"content" json:"content"`
	PinnedBy  string             `bson:"pinned_by" json:"pinnedBy"`
	PinnedAt  time.Time          `bson:"pinned_at" json:"pinnedAt"`
	Sender    *UserSummary       `bson:"sender,omitempty" json:"sender,omitempty"`
}

type Conversation struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ParticipantIDs []string            `bson:"participant_ids" json:"participantIds"`
	IsGroup        bool                `bson:"is_group" json:"isGroup"`
	Name           string              `bson:"name,omitempty" json:"name,omitempty"`
	AvatarURL      string              `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Theme          string              `bson:"theme,omitempty" json:"theme,omitempty"`
	CreatedBy      string              `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	LastMessageID  *primitive.ObjectID `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`
	LastMessage    *LastMessage        `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	PinnedMessages []PinnedMessage     `bson:"pinned_messages" json:"pinnedMessages"`
	CreatedAt      time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
