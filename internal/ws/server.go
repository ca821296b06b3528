package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/auth"
	"github.com/vtrnguyen/orisharin-server/internal/cache"
	"github.com/vtrnguyen/orisharin-server/internal/dispatch"
	"github.com/vtrnguyen/orisharin-server/internal/presence"
	"github.com/vtrnguyen/orisharin-server/internal/service"
)

type Config struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
	SendBuffer    int
}

type Server struct {
	registry  *presence.Registry
	validator auth.Validator
	messages  *service.MessageService
	disp      service.Notifier
	mirror    *cache.PresenceMirror
	cfg       Config
	log       *zap.SugaredLogger
}

func NewServer(registry *presence.Registry, validator auth.Validator, messages *service.MessageService, disp service.Notifier, mirror *cache.PresenceMirror, cfg Config, log *zap.SugaredLogger) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteDeadline <= 0 {
		cfg.WriteDeadline = 10 * time.Second
	}
	if cfg.MaxMsgSize <= 0 {
		cfg.MaxMsgSize = 1 << 20
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Server{registry: registry, validator: validator, messages: messages, disp: disp, mirror: mirror, cfg: cfg, log: log}
}

type inbound struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type sendPayload struct {
	ConversationID string   `json:"conversationId"`
	Content        string   `json:"content"`
	Attachments    []string `json:"attachments"`
	Type           string   `json:"type"`
	ReplyTo        string   `json:"replyTo"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
}

type seenPayload struct {
	MessageID string `json:"messageId"`
}

// Handler runs per upgraded connection: authenticate, register, pump.
// A missing or invalid credential means immediate disconnect, no registration.
func (s *Server) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "missing token"))
			_ = conn.Close()
			return
		}
		userID, err := s.validator.Verify(token)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
			_ = conn.Close()
			return
		}

		client := NewClient(conn, userID, uuid.NewString(), s.cfg.SendBuffer)
		s.registry.Register(userID, client)
		if s.mirror != nil {
			if err := s.mirror.AddConnection(context.Background(), userID, client.SocketID()); err != nil {
				s.log.Warnw("presence mirror add failed", "user", userID, "err", err)
			}
		}
		s.log.Infow("connection registered", "user", userID, "socket", client.SocketID())

		go client.writePump(s.cfg.PingInterval, s.cfg.WriteDeadline)

		s.readLoop(conn, client)

		s.registry.Unregister(userID, client)
		if s.mirror != nil {
			if err := s.mirror.RemoveConnection(context.Background(), userID, client.SocketID()); err != nil {
				s.log.Warnw("presence mirror remove failed", "user", userID, "err", err)
			}
		}
		client.Close()
		s.log.Infow("connection gone", "user", userID, "socket", client.SocketID())
	}
}

func (s *Server) readLoop(conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(s.cfg.MaxMsgSize)
	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		s.handleEvent(client, in)
	}
}

func (s *Server) handleEvent(client *Client, in inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch in.Event {
	case "message:send":
		var p sendPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			s.sendError(client, "malformed payload")
			return
		}
		convID, err := primitive.ObjectIDFromHex(p.ConversationID)
		if err != nil {
			s.sendError(client, "invalid conversation id")
			return
		}
		input := service.SendInput{
			ConversationID: convID,
			SenderID:       client.UserID(),
			Content:        p.Content,
			Attachments:    p.Attachments,
			Type:           p.Type,
		}
		if p.ReplyTo != "" {
			if rid, err := primitive.ObjectIDFromHex(p.ReplyTo); err == nil {
				input.ReplyTo = &rid
			}
		}
		if _, err := s.messages.Send(ctx, input); err != nil {
			s.sendError(client, err.Error())
		}

	case dispatch.EventTypingStart, dispatch.EventTypingStop:
		var p typingPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return
		}
		convID, err := primitive.ObjectIDFromHex(p.ConversationID)
		if err != nil {
			return
		}
		p.UserID = client.UserID()
		s.disp.BroadcastConversation(ctx, convID, in.Event, p)

	case "message:seen":
		var p seenPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return
		}
		msgID, err := primitive.ObjectIDFromHex(p.MessageID)
		if err != nil {
			return
		}
		if _, err := s.messages.MarkRead(ctx, msgID, client.UserID()); err != nil {
			s.log.Debugw("mark read via ws failed", "message", p.MessageID, "err", err)
		}
	}
}

func (s *Server) sendError(client *Client, msg string) {
	b, err := json.Marshal(dispatch.Envelope{Event: "error", Payload: map[string]string{"message": msg}})
	if err != nil {
		return
	}
	client.Deliver(b)
}
