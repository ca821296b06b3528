package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/apperr"
	"github.com/vtrnguyen/orisharin-server/internal/dispatch"
	"github.com/vtrnguyen/orisharin-server/internal/media"
	"github.com/vtrnguyen/orisharin-server/internal/models"
)

// MessageService owns the ingestion pipeline and the per-message interaction
// engines (reactions, pin state, read marks, hiding).
type MessageService struct {
	msgs    MessageStore
	convs   ConversationStore
	users   UserDirectory
	disp    Notifier
	storage media.Store
	log     *zap.SugaredLogger
}

func NewMessageService(msgs MessageStore, convs ConversationStore, users UserDirectory, disp Notifier, storage media.Store, log *zap.SugaredLogger) *MessageService {
	return &MessageService{msgs: msgs, convs: convs, users: users, disp: disp, storage: storage, log: log}
}

type SendInput struct {
	ConversationID primitive.ObjectID
	SenderID       string
	Content        string
	Attachments    []string
	Type           string
	SentAt         time.Time
	ReplyTo        *primitive.ObjectID
}

// Send persists one logical send as one or more message rows and refreshes the
// conversation's last-message cache. N attachments become N rows with one
// attachment each; accompanying text becomes a trailing text row. Rows get
// base+index timestamps so ordering is stable even within one clock tick.
func (s *MessageService) Send(ctx context.Context, in SendInput) ([]*models.Message, error) {
	conv, err := s.convs.FindByID(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, apperr.ErrUnauthorized
	}

	base := in.SentAt
	if base.IsZero() {
		base = time.Now().UTC()
	}

	var rows []*models.Message
	if len(in.Attachments) == 0 {
		typ := in.Type
		if typ == "" {
			typ = models.MessageTypeText
		}
		rows = append(rows, &models.Message{
			ConversationID: conv.ID,
			SenderID:       in.SenderID,
			Content:        in.Content,
			Type:           typ,
			SentAt:         base,
			ReplyTo:        in.ReplyTo,
		})
	} else {
		for i, att := range in.Attachments {
			typ := in.Type
			if typ == "" {
				typ = media.KindFromURL(att)
			}
			rows = append(rows, &models.Message{
				ConversationID: conv.ID,
				SenderID:       in.SenderID,
				Attachments:    []string{att},
				Type:           typ,
				SentAt:         base.Add(time.Duration(i) * time.Millisecond),
				ReplyTo:        in.ReplyTo,
			})
		}
		if strings.TrimSpace(in.Content) != "" {
			rows = append(rows, &models.Message{
				ConversationID: conv.ID,
				SenderID:       in.SenderID,
				Content:        in.Content,
				Type:           models.MessageTypeText,
				SentAt:         base.Add(time.Duration(len(in.Attachments)) * time.Millisecond),
			})
		}
	}

	for _, m := range rows {
		if err := s.msgs.Insert(ctx, m); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}

	// re-read with sender identity resolved for broadcast
	out := make([]*models.Message, 0, len(rows))
	for _, r := range rows {
		m, err := s.msgs.FindByID(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("reload message: %w", err)
		}
		out = append(out, m)
	}
	s.resolveSenders(ctx, out)

	last := out[0]
	for _, m := range out[1:] {
		if m.SentAt.After(last.SentAt) {
			last = m
		}
	}
	lm := snapshotOf(last)
	if err := s.convs.SetLastMessage(ctx, conv.ID, lm); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}

	for _, m := range out {
		s.disp.BroadcastConversation(ctx, conv.ID, dispatch.EventMessageCreated, m)
	}
	s.disp.BroadcastConversation(ctx, conv.ID, dispatch.EventLastMessageUpdated, lastMessagePayload{
		ConversationID: conv.ID.Hex(),
		LastMessage:    lm,
	})
	return out, nil
}

// WriteSystem persists a system message narrating a structural event and runs
// it through the same last-message and fan-out path as a normal send.
func (s *MessageService) WriteSystem(ctx context.Context, convID primitive.ObjectID, actorID, content string) (*models.Message, error) {
	m := &models.Message{
		ConversationID: convID,
		SenderID:       actorID,
		Content:        content,
		Type:           models.MessageTypeSystem,
		SentAt:         time.Now().UTC(),
	}
	if err := s.msgs.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert system message: %w", err)
	}
	lm := snapshotOf(m)
	if err := s.convs.SetLastMessage(ctx, convID, lm); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}
	s.disp.BroadcastConversation(ctx, convID, dispatch.EventMessageCreated, m)
	s.disp.BroadcastConversation(ctx, convID, dispatch.EventLastMessageUpdated, lastMessagePayload{
		ConversationID: convID.Hex(),
		LastMessage:    lm,
	})
	return m, nil
}

// List returns one page of the conversation's messages visible to userID, in
// chronological order.
func (s *MessageService) List(ctx context.Context, convID primitive.ObjectID, userID string, page, limit int64) (*MessagePage, error) {
	conv, err := s.convs.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	msgs, total, err := s.msgs.FindByConversation(ctx, convID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	visible := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.VisibleTo(userID) {
			visible = append(visible, m)
		}
	}
	s.resolveSenders(ctx, visible)

	return &MessagePage{
		Messages: visible,
		Total:    total,
		Page:     page,
		Limit:    limit,
		HasMore:  page*limit < total,
	}, nil
}

func (s *MessageService) MarkRead(ctx context.Context, msgID primitive.ObjectID, userID string) (*models.Message, error) {
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
	return s.msgs.MarkRead(ctx, msgID, userID)
}

func (s *MessageService) MarkConversationRead(ctx context.Context, convID primitive.ObjectID, userID string) error {
	conv, err := s.convs.FindByID(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return apperr.ErrUnauthorized
	}
	return s.msgs.MarkConversationRead(ctx, convID, userID)
}

// HideForMe hides the message for the calling user only. The deletion notice
// goes to that user's connections and nobody else's.
func (s *MessageService) HideForMe(ctx context.Context, msgID primitive.ObjectID, userID string) error {
	msg, err := s.msgs.FindByID(ctx, msgID)
	if err != nil {
		return err
	}
	conv, err := s.convs.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return apperr.ErrUnauthorized
	}
	if err := s.msgs.HideForUser(ctx, msgID, userID); err != nil {
		return fmt.Errorf("hide message: %w", err)
	}
	s.disp.SendToUser(userID, dispatch.EventMessageDeleted, messageDeletedPayload{
		ID:             msgID.Hex(),
		ConversationID: msg.ConversationID.Hex(),
	})
	return nil
}

// HideForAll hides the message for everyone. Only the sender may do this.
// Attached media is cleaned up best-effort.
func (s *MessageService) HideForAll(ctx context.Context, msgID primitive.ObjectID, userID string) error {
	msg, err := s.msgs.FindByID(ctx, msgID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return apperr.ErrUnauthorized
	}
	if err := s.msgs.HideForAll(ctx, msgID); err != nil {
		return fmt.Errorf("hide message: %w", err)
	}
	s.cleanupMedia(msg.Attachments)
	s.disp.BroadcastConversation(ctx, msg.ConversationID, dispatch.EventMessageDeleted, messageDeletedPayload{
		ID:             msgID.Hex(),
		ConversationID: msg.ConversationID.Hex(),
	})
	return nil
}

func (s *MessageService) cleanupMedia(urls []string) {
	if s.storage == nil || len(urls) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, u := range urls {
			key, ok := media.ExtractKey(u)
			if !ok {
				continue
			}
			if err := s.storage.Delete(ctx, key); err != nil {
				s.log.Warnw("media cleanup failed", "key", key, "err", err)
			}
		}
	}()
}

func (s *MessageService) resolveSenders(ctx context.Context, msgs []*models.Message) {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	users, err := s.users.ResolveMany(ctx, dedupe(ids))
	if err != nil {
		s.log.Warnw("resolve senders failed", "err", err)
		return
	}
	byID := make(map[string]models.UserSummary, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, m := range msgs {
		if u, ok := byID[m.SenderID]; ok {
			sum := u
			m.Sender = &sum
		}
	}
}

func snapshotOf(m *models.Message) *models.LastMessage {
	atts := m.Attachments
	if atts == nil {
		atts = []string{}
	}
	return &models.LastMessage{
		ID:          m.ID,
		Content:     m.Content,
		Attachments: atts,
		SenderID:    m.SenderID,
		Type:        m.Type,
		SentAt:      m.SentAt,
	}
}
