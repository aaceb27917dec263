// Package ws adapts gorilla/websocket connections to the hub and the
// coordinator. The adapter owns transport resources and closes them on exit.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("ws: backpressure")
	ErrClosed       = errors.New("ws: connection closed")
)

// Conn wraps one websocket connection with a buffered outbound queue so slow
// readers never block a broadcast.
type Conn struct {
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func newConn(wsc *websocket.Conn, buffer int, writeTimeout time.Duration) *Conn {
	return &Conn{
		conn:         wsc,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
	}
}

// TrySend queues data for the write pump. It never blocks: a full queue or a
// closed connection is an error the caller may ignore.
func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump feeds every inbound frame to handle until the peer disconnects.
func (c *Conn) readPump(ctx context.Context, handle func(data []byte)) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "ws").Msg("readPump read error")
				}
				return
			}
			handle(data)
		}
	}
}
