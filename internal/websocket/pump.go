package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/rs/zerolog"
)

// PumpConfig holds the heartbeat and deadline settings for a connection.
type PumpConfig struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration // must exceed PingInterval
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func DefaultPumpConfig() PumpConfig {
	return PumpConfig{
		PingInterval:   54 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 8 << 10,
	}
}

// ReadPump reads frames until the connection fails or handle returns false.
// Malformed frames are passed to onInvalid and reading continues.
func (c *Client) ReadPump(cfg PumpConfig, logger zerolog.Logger, handle func(dtos.Envelope) bool, onInvalid func(error)) {
	defer c.Close()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		var env dtos.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			if err == nil {
				err = dtos.ErrInvalidIntent
			}
			onInvalid(err)
			continue
		}
		if !handle(env) {
			return
		}
	}
}

// WritePump drains Send onto the socket and keeps the connection alive with pings.
func (c *Client) WritePump(cfg PumpConfig, logger zerolog.Logger) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		c.Conn.Close()
	}()

	for {
		select {
		case env := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteJSON(env); err != nil {
				logger.Debug().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("failed to send ping")
				return
			}

		case <-c.Done:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
