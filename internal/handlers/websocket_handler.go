package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/middlewares"
	ws "github.com/preetsinghmakkar/workshops/internal/websocket"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
	"github.com/rs/zerolog"
)

const intentTimeout = 5 * time.Second

// Sessions is the coordinator registry as seen by a socket.
type Sessions interface {
	Join(ctx context.Context, req workshop.JoinRequest) error
	Leave(ctx context.Context, sessionID, userID, connectionID uuid.UUID) error
	Handle(ctx context.Context, sessionID uuid.UUID, actor workshop.Actor, intent dtos.Intent) error
}

// Canceller cancels a workshop and notifies its attendees.
type Canceller interface {
	Cancel(ctx context.Context, id uuid.UUID, actor workshop.Actor, reason string) error
}

type WebSocketHandler struct {
	hub        *ws.Hub
	sessions   Sessions
	canceller  Canceller
	upgrader   websocket.Upgrader
	pump       ws.PumpConfig
	sendBuffer int
	logger     zerolog.Logger
}

func NewWebSocketHandler(
	hub *ws.Hub,
	sessions Sessions,
	canceller Canceller,
	pump ws.PumpConfig,
	sendBuffer int,
	allowedOrigins []string,
	logger zerolog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		sessions:  sessions,
		canceller: canceller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pump:       pump,
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("component", "ws_handler").Logger(),
	}
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set[origin]
	}
}

// HandleWebSocket is the WebSocket endpoint handler
// MUST be protected by WebSocketAuthMiddleware
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	auth, err := middlewares.GetWebSocketAuth(c)
	if err != nil {
		h.logger.Error().Err(err).Msg("missing authentication context")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, auth.SessionID, auth.UserID, auth.Username, auth.IsAdmin, h.sendBuffer)
	h.hub.Register(client)

	logger := h.logger.With().
		Str("session_id", auth.SessionID.String()).
		Str("user_id", auth.UserID.String()).
		Str("connection_id", client.ID.String()).
		Logger()
	logger.Debug().Msg("websocket connected")

	go client.WritePump(h.pump, logger)
	go h.serve(client, logger)
}

// serve runs the read loop and reports the leave once the socket is gone.
func (h *WebSocketHandler) serve(client *ws.Client, logger zerolog.Logger) {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		if err := h.sessions.Leave(ctx, client.SessionID, client.UserID, client.ID); err != nil {
			logger.Warn().Err(err).Msg("failed to report leave")
		}
		cancel()
		h.hub.Unregister(client)
		logger.Debug().Msg("websocket closed")
	}()

	client.ReadPump(h.pump, logger,
		func(env dtos.Envelope) bool {
			return h.dispatch(client, env, logger)
		},
		func(err error) {
			h.reply(client, dtos.ValidationErrorEvent{Code: workshop.ErrInvalidRequest.Error(), Message: "malformed frame"})
		},
	)
}

// dispatch applies one inbound frame. It returns false when the socket should close.
func (h *WebSocketHandler) dispatch(client *ws.Client, env dtos.Envelope, logger zerolog.Logger) bool {
	intent, err := dtos.DecodeIntent(env)
	if err != nil {
		h.reply(client, dtos.ValidationErrorEvent{
			Intent:  dtos.IntentType(env.Type),
			Code:    workshop.ErrInvalidRequest.Error(),
			Message: err.Error(),
		})
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()

	actor := workshop.Actor{UserID: client.UserID, ConnectionID: client.ID, IsAdmin: client.IsAdmin}

	switch intent.Type {
	case dtos.IntentPing:
		h.reply(client, dtos.PongEvent{})
		return true

	case dtos.IntentJoin:
		displayName := intent.Payload.DisplayName
		if displayName == "" {
			displayName = client.Username
		}
		err = h.sessions.Join(ctx, workshop.JoinRequest{
			SessionID:    client.SessionID,
			ConnectionID: client.ID,
			UserID:       client.UserID,
			DisplayName:  displayName,
			AvatarURL:    intent.Payload.AvatarURL,
			IsAdmin:      client.IsAdmin,
		})

	case dtos.IntentLeave:
		if err := h.sessions.Handle(ctx, client.SessionID, actor, intent); err != nil {
			logger.Warn().Err(err).Msg("leave failed")
		}
		return false

	case dtos.IntentCancel:
		err = h.canceller.Cancel(ctx, client.SessionID, actor, intent.Payload.Reason)

	default:
		err = h.sessions.Handle(ctx, client.SessionID, actor, intent)
	}

	if err != nil {
		var rej *workshop.Rejection
		if errors.As(err, &rej) {
			// already delivered to this connection by the coordinator
			return true
		}
		logger.Error().Err(err).Str("intent", string(intent.Type)).Msg("intent failed")
		h.reply(client, dtos.ValidationErrorEvent{
			Intent:  intent.Type,
			Code:    "internal_error",
			Message: "the request could not be completed",
		})
	}
	return true
}

func (h *WebSocketHandler) reply(client *ws.Client, ev dtos.Event) {
	if err := h.hub.SendToConnection(client.ID, ev); err != nil {
		h.logger.Debug().Err(err).Str("event", string(ev.Type())).Msg("failed to reply")
	}
}
