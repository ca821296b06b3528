package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vtrnguyen/orisharin-server/internal/apperr"
	"github.com/vtrnguyen/orisharin-server/internal/dispatch"
	"github.com/vtrnguyen/orisharin-server/internal/media"
	"github.com/vtrnguyen/orisharin-server/internal/models"
)

const previewMaxRunes = 80

const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
	ReactionChanged = "changed"
)

type ReactionResult struct {
	Result  string          `json:"result"`
	Message *models.Message `json:"message"`
}

// React toggles the caller's reaction on a message. A user holds at most one
// active reaction per message: reacting with the same type removes it, a
// different type swaps it.
func (s *MessageService) React(ctx context.Context, msgID primitive.ObjectID, userID, rtype string) (*ReactionResult, error) {
	if !models.ValidReaction(rtype) {
		return nil, apperr.ErrBadRequest
	}
	msg, err := s.msgs.FindByID(ctx, msgID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.ErrUnauthorized
	}

	existing, has := msg.ReactionBy(userID)
	var result string
	switch {
	case !has:
		err = s.msgs.AddReaction(ctx, msgID, userID, rtype)
		result = ReactionAdded
	case existing == rtype:
		err = s.msgs.RemoveReaction(ctx, msgID, userID, existing)
		result = ReactionRemoved
	default:
		err = s.msgs.ChangeReaction(ctx, msgID, userID, existing, rtype)
		result = ReactionChanged
	}
	if err != nil {
		return nil, fmt.Errorf("apply reaction: %w", err)
	}

	fresh, err := s.msgs.FindByID(ctx, msgID)
	if err != nil {
		return nil, fmt.Errorf("reload message: %w", err)
	}

	names := namesFor(ctx, s.users, []string{userID})
	preview := previewOf(fresh)
	var text string
	if result == ReactionRemoved {
		text = fmt.Sprintf("%s removed a reaction to %s", names[userID], preview)
	} else {
		text = fmt.Sprintf("%s reacted to %s", names[userID], preview)
	}
	lm := &models.LastMessage{
		ID:          fresh.ID,
		Content:     text,
		Attachments: []string{},
		SenderID:    userID,
		Type:        models.MessageTypeSystem,
		SentAt:      time.Now().UTC(),
	}
	if err := s.convs.SetLastMessage(ctx, conv.ID, lm); err != nil {
		s.log.Warnw("reaction: last message update failed", "conversation", conv.ID.Hex(), "err", err)
	}

	var active *string
	if result != ReactionRemoved {
		active = &rtype
	}
	s.disp.BroadcastConversation(ctx, conv.ID, dispatch.EventMessageReacted, reactionPayload{
		MessageID:      msgID.Hex(),
		ConversationID: conv.ID.Hex(),
		UserID:         userID,
		Type:           active,
		ReactionsCount: fresh.ReactionsCount,
	})
	s.disp.BroadcastConversation(ctx, conv.ID, dispatch.EventLastMessageUpdated, lastMessagePayload{
		ConversationID: conv.ID.Hex(),
		LastMessage:    lm,
	})

	return &ReactionResult{Result: result, Message: fresh}, nil
}

// Pin marks the message pinned and mirrors a snapshot onto the conversation.
// Pinning an already-pinned message succeeds without duplicating state.
func (s *MessageService) Pin(ctx context.Context, msgID primitive.ObjectID, userID string) (*models.Message, error) {
	msg, conv, err := s.loadForInteraction(ctx, msgID, userID)
	if err != nil {
		return nil, err
	}
	if msg.IsPinned {
		return msg, nil
	}
	if err := s.msgs.SetPinned(ctx, msgID, true); err != nil {
		return nil, fmt.Errorf("pin message: %w", err)
	}

	var sender *models.UserSummary
	if users, err := s.users.ResolveMany(ctx, []string{msg.SenderID}); err == nil && len(users) > 0 {
		sum := users[0]
		sender = &sum
	}
	pm := models.PinnedMessage{
		MessageID: msg.ID,
		Content:   msg.Content,
		PinnedBy:  userID,
		PinnedAt:  time.Now().UTC(),
		Sender:    sender,
	}
	if err := s.convs.PushPinned(ctx, conv.ID, pm); err != nil {
		return nil, fmt.Errorf("record pinned snapshot: %w", err)
	}

	s.announce(ctx, conv.ID, userID, "%s pinned a message")
	msg.IsPinned = true
	return msg, nil
}

// Unpin mirrors Pin: clears the flag and drops the snapshot. Unpinning an
// unpinned message is a successful no-op.
func (s *MessageService) Unpin(ctx context.Context, msgID primitive.ObjectID, userID string) (*models.Message, error) {
	msg, conv, err := s.loadForInteraction(ctx, msgID, userID)
	if err != nil {
		return nil, err
	}
	if !msg.IsPinned {
		return msg, nil
	}
	if err := s.msgs.SetPinned(ctx, msgID, false); err != nil {
		return nil, fmt.Errorf("unpin message: %w", err)
	}
	if err := s.convs.PullPinned(ctx, conv.ID, msg.ID); err != nil {
		return nil, fmt.Errorf("remove pinned snapshot: %w", err)
	}

	s.announce(ctx, conv.ID, userID, "%s unpinned a message")
	msg.IsPinned = false
	return msg, nil
}

func (s *MessageService) loadForInteraction(ctx context.Context, msgID primitive.ObjectID, userID string) (*models.Message, *models.Conversation, error) {
	msg, err := s.msgs.FindByID(ctx, msgID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.convs.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, nil, apperr.ErrUnauthorized
	}
	return msg, conv, nil
}

// announce emits a system message; failure is logged, never propagated, since
// the primary mutation already succeeded.
func (s *MessageService) announce(ctx context.Context, convID primitive.ObjectID, actorID, format string) {
	names := namesFor(ctx, s.users, []string{actorID})
	if _, err := s.WriteSystem(ctx, convID, actorID, fmt.Sprintf(format, names[actorID])); err != nil {
		s.log.Warnw("system message failed", "conversation", convID.Hex(), "err", err)
	}
}

// previewOf renders a short human-readable handle on a message for reaction
// summaries.
func previewOf(m *models.Message) string {
	if m.Content != "" {
		runes := []rune(m.Content)
		if len(runes) > previewMaxRunes {
			return "\"" + string(runes[:previewMaxRunes]) + "...\""
		}
		return "\"" + m.Content + "\""
	}
	if len(m.Attachments) > 0 {
		switch media.KindFromURL(m.Attachments[0]) {
		case models.MessageTypeImage:
			return "a photo"
		case models.MessageTypeVideo:
			return "a video"
		case models.MessageTypeAudio:
			return "a voice message"
		default:
			return "an attachment"
		}
	}
	return "a message"
}
