package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"cardbattle/internal/app"
	"cardbattle/internal/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Coordinator  *app.Coordinator
	Hub          *hub.Hub
	SendBuffer   int
	WriteTimeout time.Duration
}

func NewController(co *app.Coordinator, h *hub.Hub, sendBuffer int, writeTimeout time.Duration) *Controller {
	return &Controller{
		Coordinator:  co,
		Hub:          h,
		SendBuffer:   sendBuffer,
		WriteTimeout: writeTimeout,
	}
}

// HandleLobby serves one lobby-channel connection for a room.
func (ctl *Controller) HandleLobby(ctx context.Context, c *gin.Context) {
	ctl.serve(ctx, c, hub.Lobby, ctl.Coordinator.HandleLobbyMessage)
}

// HandleGame serves one game-channel connection for a room.
func (ctl *Controller) HandleGame(ctx context.Context, c *gin.Context) {
	ctl.serve(ctx, c, hub.Game, ctl.Coordinator.HandleGameMessage)
}

func (ctl *Controller) serve(
	ctx context.Context,
	c *gin.Context,
	channel hub.Channel,
	handle func(roomID string, conn hub.Sender, data []byte),
) {
	roomID := c.Param("room_id")
	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	log.Info().Str("module", "ws").Str("room_id", roomID).Str("channel", string(channel)).Msg("new connection")

	conn := newConn(wsc, ctl.SendBuffer, ctl.WriteTimeout)
	ctl.Hub.Attach(roomID, channel, conn)

	ctx, cancel := context.WithCancel(ctx)
	go conn.writePump(ctx)
	go func() {
		// Disconnect only detaches this connection; committed room and
		// game state stay put for the remaining participants.
		defer func() {
			ctl.Hub.Detach(roomID, channel, conn)
			cancel()
			conn.Close()
			log.Info().Str("module", "ws").Str("room_id", roomID).Str("channel", string(channel)).Msg("connection closed")
		}()
		conn.readPump(ctx, func(data []byte) {
			handle(roomID, conn, data)
		})
	}()
}
