package service

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/apperr"
	"github.com/vtrnguyen/orisharin-server/internal/models"
)

// In-memory stand-ins for the mongo repositories. They copy documents on read
// and write the same way the driver decodes fresh structs, so tests exercise
// the services' re-read behavior honestly.

type fakeConversationStore struct {
	mu    sync.Mutex
	convs map[primitive.ObjectID]*models.Conversation
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{convs: map[primitive.ObjectID]*models.Conversation{}}
}

func copyConv(c *models.Conversation) *models.Conversation {
	out := *c
	out.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	out.PinnedMessages = append([]models.PinnedMessage(nil), c.PinnedMessages...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return &out
}

func (f *fakeConversationStore) Create(_ context.Context, c *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.PinnedMessages == nil {
		c.PinnedMessages = []models.PinnedMessage{}
	}
	f.convs[c.ID] = copyConv(c)
	return nil
}

func (f *fakeConversationStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyConv(c), nil
}

func (f *fakeConversationStore) FindDirectByPair(_ context.Context, a, b string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.IsGroup || len(c.ParticipantIDs) != 2 {
			continue
		}
		if (c.ParticipantIDs[0] == a && c.ParticipantIDs[1] == b) ||
			(c.ParticipantIDs[0] == b && c.ParticipantIDs[1] == a) {
			return copyConv(c), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeConversationStore) FindAllByUser(_ context.Context, userID string, page, limit int64) ([]*models.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := []*models.Conversation{}
	for _, c := range f.convs {
		for _, id := range c.ParticipantIDs {
			if id == userID {
				matched = append(matched, copyConv(c))
				break
			}
		}
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= total {
		return []*models.Conversation{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *fakeConversationStore) AddParticipants(_ context.Context, id primitive.ObjectID, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	for _, uid := range userIDs {
		present := false
		for _, p := range c.ParticipantIDs {
			if p == uid {
				present = true
				break
			}
		}
		if !present {
			c.ParticipantIDs = append(c.ParticipantIDs, uid)
		}
	}
	return nil
}

func (f *fakeConversationStore) RemoveParticipants(_ context.Context, id primitive.ObjectID, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	drop := map[string]struct{}{}
	for _, uid := range userIDs {
		drop[uid] = struct{}{}
	}
	kept := c.ParticipantIDs[:0]
	for _, p := range c.ParticipantIDs {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	c.ParticipantIDs = kept
	return nil
}

func (f *fakeConversationStore) SetCreatedBy(_ context.Context, id primitive.ObjectID, userID string) error {
	return f.set(id, func(c *models.Conversation) { c.CreatedBy = userID })
}

func (f *fakeConversationStore) SetName(_ context.Context, id primitive.ObjectID, name string) error {
	return f.set(id, func(c *models.Conversation) { c.Name = name })
}

func (f *fakeConversationStore) SetAvatar(_ context.Context, id primitive.ObjectID, url string) error {
	return f.set(id, func(c *models.Conversation) { c.AvatarURL = url })
}

func (f *fakeConversationStore) SetTheme(_ context.Context, id primitive.ObjectID, theme string) error {
	return f.set(id, func(c *models.Conversation) { c.Theme = theme })
}

func (f *fakeConversationStore) SetLastMessage(_ context.Context, id primitive.ObjectID, lm *models.LastMessage) error {
	return f.set(id, func(c *models.Conversation) {
		snap := *lm
		c.LastMessage = &snap
		c.LastMessageID = &snap.ID
		c.UpdatedAt = time.Now().UTC()
	})
}

func (f *fakeConversationStore) PushPinned(_ context.Context, id primitive.ObjectID, pm models.PinnedMessage) error {
	return f.set(id, func(c *models.Conversation) { c.PinnedMessages = append(c.PinnedMessages, pm) })
}

func (f *fakeConversationStore) PullPinned(_ context.Context, id, messageID primitive.ObjectID) error {
	return f.set(id, func(c *models.Conversation) {
		kept := c.PinnedMessages[:0]
		for _, pm := range c.PinnedMessages {
			if pm.MessageID != messageID {
				kept = append(kept, pm)
			}
		}
		c.PinnedMessages = kept
	})
}

func (f *fakeConversationStore) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, id)
	return nil
}

func (f *fakeConversationStore) set(id primitive.ObjectID, fn func(*models.Conversation)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	fn(c)
	return nil
}

type fakeMessageStore struct {
	mu   sync.Mutex
	msgs map[primitive.ObjectID]*models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{msgs: map[primitive.ObjectID]*models.Message{}}
}

func copyMsg(m *models.Message) *models.Message {
	out := *m
	out.Attachments = append([]string(nil), m.Attachments...)
	out.SeenBy = append([]string(nil), m.SeenBy...)
	out.Reactions = append([]models.Reaction(nil), m.Reactions...)
	out.HiddenFor = append([]string(nil), m.HiddenFor...)
	out.ReactionsCount = map[string]int{}
	for k, v := range m.ReactionsCount {
		out.ReactionsCount[k] = v
	}
	return &out
}

func (f *fakeMessageStore) Insert(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = primitive.NewObjectID()
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	if m.SeenBy == nil {
		m.SeenBy = []string{}
	}
	if m.Reactions == nil {
		m.Reactions = []models.Reaction{}
	}
	if m.ReactionsCount == nil {
		m.ReactionsCount = map[string]int{}
	}
	if m.HiddenFor == nil {
		m.HiddenFor = []string{}
	}
	f.msgs[m.ID] = copyMsg(m)
	return nil
}

func (f *fakeMessageStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyMsg(m), nil
}

func (f *fakeMessageStore) FindByConversation(_ context.Context, convID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := []*models.Message{}
	for _, m := range f.msgs {
		if m.ConversationID == convID {
			all = append(all, copyMsg(m))
		}
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].SentAt.Before(all[i].SentAt) {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	total := int64(len(all))
	// page from the newest end, then return in chronological order
	start := total - page*limit
	end := total - (page-1)*limit
	if end <= 0 {
		return []*models.Message{}, total, nil
	}
	if start < 0 {
		start = 0
	}
	return all[start:end], total, nil
}

func (f *fakeMessageStore) MarkRead(_ context.Context, id primitive.ObjectID, userID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	seen := false
	for _, uid := range m.SeenBy {
		if uid == userID {
			seen = true
			break
		}
	}
	if !seen {
		m.SeenBy = append(m.SeenBy, userID)
	}
	return copyMsg(m), nil
}

func (f *fakeMessageStore) MarkConversationRead(_ context.Context, convID primitive.ObjectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ConversationID != convID {
			continue
		}
		seen := false
		for _, uid := range m.SeenBy {
			if uid == userID {
				seen = true
				break
			}
		}
		if !seen {
			m.SeenBy = append(m.SeenBy, userID)
		}
	}
	return nil
}

func (f *fakeMessageStore) AddReaction(_ context.Context, id primitive.ObjectID, userID, rtype string) error {
	return f.update(id, func(m *models.Message) {
		m.Reactions = append(m.Reactions, models.Reaction{UserID: userID, Type: rtype})
		m.ReactionsCount[rtype]++
	})
}

func (f *fakeMessageStore) RemoveReaction(_ context.Context, id primitive.ObjectID, userID, rtype string) error {
	return f.update(id, func(m *models.Message) {
		kept := m.Reactions[:0]
		for _, r := range m.Reactions {
			if r.UserID != userID {
				kept = append(kept, r)
			}
		}
		m.Reactions = kept
		m.ReactionsCount[rtype]--
	})
}

func (f *fakeMessageStore) ChangeReaction(_ context.Context, id primitive.ObjectID, userID, oldType, newType string) error {
	return f.update(id, func(m *models.Message) {
		for i, r := range m.Reactions {
			if r.UserID == userID {
				m.Reactions[i].Type = newType
			}
		}
		m.ReactionsCount[oldType]--
		m.ReactionsCount[newType]++
	})
}

func (f *fakeMessageStore) SetPinned(_ context.Context, id primitive.ObjectID, pinned bool) error {
	return f.update(id, func(m *models.Message) { m.IsPinned = pinned })
}

func (f *fakeMessageStore) HideForUser(_ context.Context, id primitive.ObjectID, userID string) error {
	return f.update(id, func(m *models.Message) { m.HiddenFor = append(m.HiddenFor, userID) })
}

func (f *fakeMessageStore) HideForAll(_ context.Context, id primitive.ObjectID) error {
	return f.update(id, func(m *models.Message) { m.IsHideAll = true })
}

func (f *fakeMessageStore) DeleteByConversation(_ context.Context, convID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.msgs {
		if m.ConversationID == convID {
			delete(f.msgs, id)
		}
	}
	return nil
}

func (f *fakeMessageStore) update(id primitive.ObjectID, fn func(*models.Message)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	fn(m)
	return nil
}

type fakeDirectory struct {
	users map[string]models.UserSummary
}

func newFakeDirectory(users ...models.UserSummary) *fakeDirectory {
	d := &fakeDirectory{users: map[string]models.UserSummary{}}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) ResolveMany(_ context.Context, ids []string) ([]models.UserSummary, error) {
	out := []models.UserSummary{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type recordedEvent struct {
	ConvID  primitive.ObjectID
	UserIDs []string
	Event   string
	Payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) BroadcastConversation(_ context.Context, convID primitive.ObjectID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{ConvID: convID, Event: event, Payload: payload})
}

func (n *recordingNotifier) BroadcastUsers(userIDs []string, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{UserIDs: userIDs, Event: event, Payload: payload})
}

func (n *recordingNotifier) SendToUser(userID string, event string, payload any) {
	n.BroadcastUsers([]string{userID}, event, payload)
}

func (n *recordingNotifier) byEvent(event string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []recordedEvent{}
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes []string
}

func (p *recordingPusher) Push(recipientID string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, recipientID)
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
