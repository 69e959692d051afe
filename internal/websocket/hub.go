package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/rs/zerolog"
)

// Client represents one websocket connection into a workshop room
type Client struct {
	ID        uuid.UUID // connection id, new for every socket
	SessionID uuid.UUID
	UserID    uuid.UUID
	Username  string
	IsAdmin   bool
	Conn      *websocket.Conn
	Send      chan dtos.Envelope
	Done      chan struct{}

	closeOnce sync.Once
}

// NewClient wires a connection with a bounded outbound queue.
func NewClient(conn *websocket.Conn, sessionID, userID uuid.UUID, username string, isAdmin bool, buffer int) *Client {
	return &Client{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		IsAdmin:   isAdmin,
		Conn:      conn,
		Send:      make(chan dtos.Envelope, buffer),
		Done:      make(chan struct{}),
	}
}

// Enqueue hands a frame to the write pump without blocking.
func (c *Client) Enqueue(env dtos.Envelope) error {
	select {
	case <-c.Done:
		return ErrClientClosed
	default:
	}
	select {
	case c.Send <- env:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close signals the write pump to send a close frame and drop the socket.
// Safe to call more than once. Send is left open so concurrent broadcasters
// never write to a closed channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

// IsConnected checks if client is still connected
func (c *Client) IsConnected() bool {
	select {
	case <-c.Done:
		return false
	default:
		return true
	}
}

// Hub tracks every connection and the session rooms they have joined.
// It implements the coordinator's Transport.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client               // key: connection id
	rooms   map[uuid.UUID]map[uuid.UUID]*Client // key: session id -> connection id
	logger  zerolog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[uuid.UUID]map[uuid.UUID]*Client),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// Register makes a connection addressable before it joins a room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister forgets a connection and drops it from any room.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	if room, ok := h.rooms[client.SessionID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, client.SessionID)
		}
	}
}

func (h *Hub) JoinRoom(sessionID, connectionID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[connectionID]
	if !ok {
		return ErrClientNotFound
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[uuid.UUID]*Client)
		h.rooms[sessionID] = room
	}
	room[connectionID] = client
	return nil
}

func (h *Hub) LeaveRoom(sessionID, connectionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	delete(room, connectionID)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// Broadcast sends an event to every connection in the room. A connection
// whose queue is full is closed so that it reconnects and resyncs.
func (h *Hub) Broadcast(sessionID uuid.UUID, ev dtos.Event) {
	env, err := dtos.EncodeEvent(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(ev.Type())).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	room := h.rooms[sessionID]
	recipients := make([]*Client, 0, len(room))
	for _, client := range room {
		recipients = append(recipients, client)
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		if err := client.Enqueue(env); err == ErrSendBufferFull {
			h.logger.Warn().
				Str("session_id", sessionID.String()).
				Str("user_id", client.UserID.String()).
				Msg("dropping slow connection")
			client.Close()
		}
	}
}

func (h *Hub) SendToConnection(connectionID uuid.UUID, ev dtos.Event) error {
	env, err := dtos.EncodeEvent(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	return client.Enqueue(env)
}

func (h *Hub) Disconnect(connectionID uuid.UUID) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if ok {
		client.Close()
	}
}

// RoomSize returns the number of connections currently in a session room.
func (h *Hub) RoomSize(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()
	for _, client := range clients {
		client.Close()
	}
}
