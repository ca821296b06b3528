package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/vtrnguyen/orisharin-server/internal/auth"
	wsrv "github.com/vtrnguyen/orisharin-server/internal/ws"
)

func NewServer(validator auth.Validator, h *Handlers, ws *wsrv.Server) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())

	// token is checked inside the ws handler itself; the middleware below only
	// guards the REST surface
	app.Get("/v1/ws", websocket.New(ws.Handler()))

	v1 := app.Group("/v1", JWTAuthMiddleware(validator))

	v1.Post("/conversations", h.createConversation)
	v1.Get("/conversations", h.listConversations)
	v1.Get("/conversations/:conv_id", h.getConversation)
	v1.Patch("/conversations/:conv_id/name", h.renameConversation)
	v1.Patch("/conversations/:conv_id/avatar", h.updateAvatar)
	v1.Patch("/conversations/:conv_id/theme", h.updateTheme)
	v1.Post("/conversations/:conv_id/participants", h.addParticipants)
	v1.Delete("/conversations/:conv_id/participants", h.removeParticipants)
	v1.Post("/conversations/:conv_id/leave", h.leaveConversation)
	v1.Get("/conversations/:conv_id/messages", h.listMessages)
	v1.Post("/conversations/:conv_id/read", h.markConversationRead)

	v1.Post("/messages", h.sendMessage)
	v1.Post("/messages/:msg_id/read", h.markMessageRead)
	v1.Post("/messages/:msg_id/reactions", h.react)
	v1.Post("/messages/:msg_id/pin", h.pinMessage)
	v1.Delete("/messages/:msg_id/pin", h.unpinMessage)
	v1.Delete("/messages/:msg_id", h.deleteMessageForMe)
	v1.Delete("/messages/:msg_id/all", h.deleteMessageForAll)

	v1.Post("/media", h.uploadMedia)
	v1.Get("/presence/:user_id", h.userOnline)

	return app
}
