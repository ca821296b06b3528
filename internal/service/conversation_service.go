package service

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/apperr"
	"github.com/vtrnguyen/orisharin-server/internal/dispatch"
	"github.com/vtrnguyen/orisharin-server/internal/models"
)

// MessagePurger removes a dead conversation's message log.
type MessagePurger interface {
	DeleteByConversation(ctx context.Context, convID primitive.ObjectID) error
}

// ConversationService owns the membership state machine.
type ConversationService struct {
	repo  ConversationStore
	purge MessagePurger
	users UserDirectory
	sys   SystemMessageWriter
	disp  Notifier
	sink  Pusher
	log   *zap.SugaredLogger
}

func NewConversationService(repo ConversationStore, purge MessagePurger, users UserDirectory, disp Notifier, sink Pusher, log *zap.SugaredLogger) *ConversationService {
	return &ConversationService{repo: repo, purge: purge, users: users, disp: disp, sink: sink, log: log}
}

// SetSystemWriter wires the message pipeline in after construction; the two
// services reference each other only through this narrow seam.
func (s *ConversationService) SetSystemWriter(w SystemMessageWriter) { s.sys = w }

// Create starts a conversation. Re-requesting a 1:1 between the same pair
// returns the existing conversation with existed=true instead of an error.
func (s *ConversationService) Create(ctx context.Context, creatorID string, participantIDs []string, isGroup bool, name string) (*models.Conversation, bool, error) {
	members := dedupe(append([]string{creatorID}, participantIDs...))
	if len(members) < 2 {
		return nil, false, apperr.ErrBadRequest
	}
	if !isGroup {
		if len(members) != 2 {
			return nil, false, apperr.ErrBadRequest
		}
		existing, err := s.repo.FindDirectByPair(ctx, members[0], members[1])
		if err == nil {
			return existing, true, nil
		}
		if err != apperr.ErrNotFound {
			return nil, false, fmt.Errorf("lookup direct conversation: %w", err)
		}
	}

	conv := &models.Conversation{
		ParticipantIDs: members,
		IsGroup:        isGroup,
		CreatedBy:      creatorID,
	}
	if isGroup {
		conv.Name = strings.TrimSpace(name)
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, false, nil
}

func (s *ConversationService) Get(ctx context.Context, convID primitive.ObjectID, callerID string) (*models.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, apperr.ErrUnauthorized
	}
	return conv, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID string, page, limit int64) (*ConversationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	convs, total, err := s.repo.FindAllByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return &ConversationPage{
		Conversations: convs,
		Total:         total,
		Page:          page,
		Limit:         limit,
		HasMore:       page*limit < total,
	}, nil
}

type AddResult struct {
	Added    []string `json:"added"`
	Skipped  []string `json:"skipped"`
	NotFound []string `json:"notFound"`
}

// AddParticipants adds members to a group. Ids already present are skipped,
// unknown ids reported, and a system message narrates what changed.
func (s *ConversationService) AddParticipants(ctx context.Context, convID primitive.ObjectID, callerID string, ids []string) (*AddResult, error) {
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, apperr.ErrBadRequest
	}
	if !conv.HasParticipant(callerID) {
		return nil, apperr.ErrUnauthorized
	}

	ids = dedupe(ids)
	resolved, err := s.users.ResolveMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	exists := make(map[string]struct{}, len(resolved))
	for _, u := range resolved {
		exists[u.ID] = struct{}{}
	}

	res := &AddResult{Added: []string{}, Skipped: []string{}, NotFound: []string{}}
	for _, id := range ids {
		switch {
		case conv.HasParticipant(id):
			res.Skipped = append(res.Skipped, id)
		case id == callerID:
			res.Skipped = append(res.Skipped, id)
		default:
			if _, ok := exists[id]; !ok {
				res.NotFound = append(res.NotFound, id)
				continue
			}
			res.Added = append(res.Added, id)
		}
	}
	if len(res.Added) == 0 {
		return res, nil
	}

	if err := s.repo.AddParticipants(ctx, convID, res.Added); err != nil {
		return nil, fmt.Errorf("add participants: %w", err)
	}

	names := namesFor(ctx, s.users, append([]string{callerID}, res.Added...))
	added := make([]string, 0, len(res.Added))
	for _, id := range res.Added {
		added = append(added, names[id])
	}
	s.emitSystem(ctx, convID, callerID, fmt.Sprintf("%s added %s", names[callerID], strings.Join(added, ", ")))

	if s.sink != nil {
		for _, id := range res.Added {
			s.sink.Push(id, map[string]any{
				"type":           "conversation:added",
				"conversationId": convID.Hex(),
				"addedBy":        callerID,
			})
		}
	}
	return res, nil
}

// RemoveParticipants is admin-only. The creator can never be removed through
// this path. If removal leaves nobody but the admin behind, the group is
// hard-deleted instead of lingering.
func (s *ConversationService) RemoveParticipants(ctx context.Context, convID primitive.ObjectID, callerID string, ids []string) (removed []string, deleted bool, err error) {
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return nil, false, err
	}
	if !conv.IsGroup {
		return nil, false, apperr.ErrBadRequest
	}
	if callerID != conv.CreatedBy {
		return nil, false, apperr.ErrForbidden
	}

	targets := make([]string, 0, len(ids))
	for _, id := range dedupe(ids) {
		if id == conv.CreatedBy || !conv.HasParticipant(id) {
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return []string{}, false, nil
	}

	drop := make(map[string]struct{}, len(targets))
	for _, id := range targets {
		drop[id] = struct{}{}
	}
	remaining := make([]string, 0, len(conv.ParticipantIDs))
	for _, id := range conv.ParticipantIDs {
		if _, ok := drop[id]; !ok {
			remaining = append(remaining, id)
		}
	}

	if len(remaining) <= 1 {
		if err := s.hardDelete(ctx, conv); err != nil {
			return nil, false, err
		}
		return targets, true, nil
	}

	if err := s.repo.RemoveParticipants(ctx, convID, targets); err != nil {
		return nil, false, fmt.Errorf("remove participants: %w", err)
	}
	s.ensureAdmin(ctx, conv, remaining)

	names := namesFor(ctx, s.users, append([]string{callerID}, targets...))
	removedNames := make([]string, 0, len(targets))
	for _, id := range targets {
		removedNames = append(removedNames, names[id])
	}
	s.emitSystem(ctx, convID, callerID, fmt.Sprintf("%s removed %s", names[callerID], strings.Join(removedNames, ", ")))

	s.disp.BroadcastUsers(targets, dispatch.EventConversationDeleted, conversationDeletedPayload{ID: convID.Hex()})
	return targets, false, nil
}

// Leave removes the caller from a group. The admin must transfer or delete
// first; 1:1 conversations have no leave operation.
func (s *ConversationService) Leave(ctx context.Context, convID primitive.ObjectID, userID string) (deleted bool, err error) {
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return false, err
	}
	if !conv.IsGroup {
		return false, apperr.ErrBadRequest
	}
	if !conv.HasParticipant(userID) {
		return false, apperr.ErrUnauthorized
	}
	if userID == conv.CreatedBy {
		return false, apperr.ErrAdminLeave
	}

	remaining := make([]string, 0, len(conv.ParticipantIDs))
	for _, id := range conv.ParticipantIDs {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) <= 1 {
		if err := s.hardDelete(ctx, conv); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := s.repo.RemoveParticipants(ctx, convID, []string{userID}); err != nil {
		return false, fmt.Errorf("leave conversation: %w", err)
	}
	s.ensureAdmin(ctx, conv, remaining)

	names := namesFor(ctx, s.users, []string{userID})
	s.emitSystem(ctx, convID, userID, fmt.Sprintf("%s left the conversation", names[userID]))
	return false, nil
}

// Rename is restricted to groups; the name must be non-empty.
func (s *ConversationService) Rename(ctx context.Context, convID primitive.ObjectID, callerID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.ErrBadRequest
	}
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperr.ErrBadRequest
	}
	if !conv.HasParticipant(callerID) {
		return apperr.ErrUnauthorized
	}
	if err := s.repo.SetName(ctx, convID, name); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	names := namesFor(ctx, s.users, []string{callerID})
	s.emitSystem(ctx, convID, callerID, fmt.Sprintf("%s named the conversation %q", names[callerID], name))
	return nil
}

func (s *ConversationService) UpdateAvatar(ctx context.Context, convID primitive.ObjectID, callerID, url string) error {
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(callerID) {
		return apperr.ErrUnauthorized
	}
	if err := s.repo.SetAvatar(ctx, convID, url); err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	names := namesFor(ctx, s.users, []string{callerID})
	s.emitSystem(ctx, convID, callerID, fmt.Sprintf("%s changed the conversation photo", names[callerID]))
	return nil
}

func (s *ConversationService) UpdateTheme(ctx context.Context, convID primitive.ObjectID, callerID, theme string) error {
	conv, err := s.repo.FindByID(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(callerID) {
		return apperr.ErrUnauthorized
	}
	if err := s.repo.SetTheme(ctx, convID, theme); err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	names := namesFor(ctx, s.users, []string{callerID})
	s.emitSystem(ctx, convID, callerID, fmt.Sprintf("%s changed the theme to %s", names[callerID], theme))
	return nil
}

// hardDelete drops the conversation and its message log, then notifies every
// former participant.
func (s *ConversationService) hardDelete(ctx context.Context, conv *models.Conversation) error {
	participants := conv.ParticipantIDs
	if err := s.purge.DeleteByConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("purge messages: %w", err)
	}
	if err := s.repo.Delete(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	s.disp.BroadcastUsers(participants, dispatch.EventConversationDeleted, conversationDeletedPayload{ID: conv.ID.Hex()})
	return nil
}

// ensureAdmin reassigns createdBy to an arbitrary remaining participant if it
// somehow points outside the member set.
func (s *ConversationService) ensureAdmin(ctx context.Context, conv *models.Conversation, remaining []string) {
	for _, id := range remaining {
		if id == conv.CreatedBy {
			return
		}
	}
	if len(remaining) == 0 {
		return
	}
	if err := s.repo.SetCreatedBy(ctx, conv.ID, remaining[0]); err != nil {
		s.log.Warnw("admin reassignment failed", "conversation", conv.ID.Hex(), "err", err)
	}
}

// emitSystem is best-effort: the membership mutation already committed.
func (s *ConversationService) emitSystem(ctx context.Context, convID primitive.ObjectID, actorID, content string) {
	if s.sys == nil {
		return
	}
	if _, err := s.sys.WriteSystem(ctx, convID, actorID, content); err != nil {
		s.log.Warnw("system message failed", "conversation", convID.Hex(), "err", err)
	}
}
