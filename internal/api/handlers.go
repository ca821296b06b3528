package api

import (
	"context"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/media"
	"github.com/vtrnguyen/orisharin-server/internal/presence"
	"github.com/vtrnguyen/orisharin-server/internal/service"
)

const requestTimeout = 10 * time.Second

type Handlers struct {
	convs    *service.ConversationService
	msgs     *service.MessageService
	registry *presence.Registry
	storage  media.Store
	log      *zap.SugaredLogger
}

func NewHandlers(convs *service.ConversationService, msgs *service.MessageService, registry *presence.Registry, storage media.Store, log *zap.SugaredLogger) *Handlers {
	return &Handlers{convs: convs, msgs: msgs, registry: registry, storage: storage, log: log}
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func reqCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), requestTimeout)
}

// objectID treats an unparseable id the same as an absent document.
func objectID(c *fiber.Ctx, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Params(param))
	return id, err == nil
}

func (h *Handlers) createConversation(c *fiber.Ctx) error {
	var req struct {
		ParticipantIDs []string `json:"participantIds"`
		IsGroup        bool     `json:"isGroup"`
		Name           string   `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	conv, existed, err := h.convs.Create(ctx, callerID(c), req.ParticipantIDs, req.IsGroup, req.Name)
	if err != nil {
		return jsonFail(c, err)
	}
	status := fiber.StatusCreated
	if existed {
		status = fiber.StatusOK
	}
	return jsonSuccess(c, status, fiber.Map{"conversation": conv, "alreadyExists": existed})
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.convs.ListForUser(ctx, callerID(c), int64(c.QueryInt("page", 1)), int64(c.QueryInt("limit", 20)))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, page)
}

func (h *Handlers) getConversation(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	conv, err := h.convs.Get(ctx, convID, callerID(c))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, conv)
}

func (h *Handlers) renameConversation(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.convs.Rename(ctx, convID, callerID(c), req.Name); err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"name": req.Name})
}

func (h *Handlers) updateAvatar(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	var req struct {
		AvatarURL string `json:"avatarUrl"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.convs.UpdateAvatar(ctx, convID, callerID(c), req.AvatarURL); err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"avatarUrl": req.AvatarURL})
}

func (h *Handlers) updateTheme(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.convs.UpdateTheme(ctx, convID, callerID(c), req.Theme); err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"theme": req.Theme})
}

func (h *Handlers) addParticipants(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	var req struct {
		UserIDs []string `json:"userIds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.convs.AddParticipants(ctx, convID, callerID(c), req.UserIDs)
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, res)
}

func (h *Handlers) removeParticipants(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	var req struct {
		UserIDs []string `json:"userIds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	removed, deleted, err := h.convs.RemoveParticipants(ctx, convID, callerID(c), req.UserIDs)
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"removed": removed, "deleted": deleted})
}

func (h *Handlers) leaveConversation(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	deleted, err := h.convs.Leave(ctx, convID, callerID(c))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"deleted": deleted})
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		ConversationID string   `json:"conversationId"`
		Content        string   `json:"content"`
		Attachments    []string `json:"attachments"`
		Type           string   `json:"type"`
		ReplyTo        string   `json:"replyTo"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	convID, err := primitive.ObjectIDFromHex(req.ConversationID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	in := service.SendInput{
		ConversationID: convID,
		SenderID:       callerID(c),
		Content:        req.Content,
		Attachments:    req.Attachments,
		Type:           req.Type,
	}
	if req.ReplyTo != "" {
		rid, err := primitive.ObjectIDFromHex(req.ReplyTo)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid replyTo id")
		}
		in.ReplyTo = &rid
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msgs, err := h.msgs.Send(ctx, in)
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusCreated, fiber.Map{"messages": msgs})
}

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.msgs.List(ctx, convID, callerID(c), int64(c.QueryInt("page", 1)), int64(c.QueryInt("limit", 20)))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, page)
}

func (h *Handlers) markMessageRead(c *fiber.Ctx) error {
	msgID, ok := objectID(c, "msg_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid message id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, err := h.msgs.MarkRead(ctx, msgID, callerID(c))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, msg)
}

func (h *Handlers) markConversationRead(c *fiber.Ctx) error {
	convID, ok := objectID(c, "conv_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid conversation id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.msgs.MarkConversationRead(ctx, convID, callerID(c)); err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"read": true})
}

func (h *Handlers) react(c *fiber.Ctx) error {
	msgID, ok := objectID(c, "msg_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid message id")
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.msgs.React(ctx, msgID, callerID(c), req.Type)
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, res)
}

func (h *Handlers) pinMessage(c *fiber.Ctx) error {
	msgID, ok := objectID(c, "msg_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid message id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, err := h.msgs.Pin(ctx, msgID, callerID(c))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, msg)
}

func (h *Handlers) unpinMessage(c *fiber.Ctx) error {
	msgID, ok := objectID(c, "msg_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid message id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, err := h.msgs.Unpin(ctx, msgID, callerID(c))
	if err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, msg)
}

func (h *Handlers) deleteMessageForMe(c *fiber.Ctx) error {
	msgID, ok := objectID(c, "msg_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid message id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.msgs.HideForMe(ctx, msgID, callerID(c)); err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

func (h *Handlers) deleteMessageForAll(c *fiber.Ctx) error {
	msgID, ok := objectID(c, "msg_id")
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "invalid message id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.msgs.HideForAll(ctx, msgID, callerID(c)); err != nil {
		return jsonFail(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

func (h *Handlers) uploadMedia(c *fiber.Ctx) error {
	if h.storage == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "media storage not configured")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "file required")
	}
	f, err := fh.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "unreadable file")
	}
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()
	url, err := h.storage.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		h.log.Errorw("media upload failed", "file", fh.Filename, "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "upload failed")
	}
	return jsonSuccess(c, fiber.StatusCreated, fiber.Map{"url": url})
}

func (h *Handlers) userOnline(c *fiber.Ctx) error {
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"online": h.registry.Online(c.Params("user_id"))})
}
