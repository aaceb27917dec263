package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"cardbattle/internal/adapters/ws"
	"cardbattle/internal/app"
	"cardbattle/internal/config"
	"cardbattle/internal/identity"
	"cardbattle/internal/ledger"
	"cardbattle/internal/room"
)

type Deps struct {
	Cfg         *config.Config
	Identity    *identity.Service
	Ledger      *ledger.Memory
	Rooms       *room.Registry
	Coordinator *app.Coordinator
	WS          *ws.Controller
}

func SetupRouter(ctx context.Context, d Deps) *gin.Engine {
	if d.Cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.Cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(d.Cfg.Secret))
	r.Use(sessions.Sessions("CardBattleSession", store))

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.POST("/register", func(c *gin.Context) {
		var p struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password are required"})
			return
		}
		if err := d.Identity.Register(p.Username, p.Password); err != nil {
			c.JSON(statusFor(err), gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "registered"})
	})

	api.POST("/login", func(c *gin.Context) {
		var p struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password are required"})
			return
		}
		if err := d.Identity.Authenticate(p.Username, p.Password); err != nil {
			c.JSON(statusFor(err), gin.H{"detail": err.Error()})
			return
		}
		sess := sessions.Default(c)
		sess.Set("username", p.Username)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged in"})
	})

	api.POST("/room/create", func(c *gin.Context) {
		var p struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username is required"})
			return
		}
		roomID, err := d.Rooms.CreateRoom(p.Username)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "room created", "room_id": roomID})
	})

	api.POST("/room/join", func(c *gin.Context) {
		var p struct {
			RoomID   string `json:"room_id" binding:"required"`
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "room_id and username are required"})
			return
		}
		if err := d.Rooms.JoinRoom(p.RoomID, p.Username); err != nil {
			c.JSON(statusFor(err), gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "joined room", "room_id": p.RoomID})
	})

	api.POST("/room/leave", func(c *gin.Context) {
		var p struct {
			RoomID   string `json:"room_id" binding:"required"`
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "room_id and username are required"})
			return
		}
		if err := d.Rooms.LeaveRoom(p.RoomID, p.Username); err != nil {
			c.JSON(statusFor(err), gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "left room", "room_id": p.RoomID})
	})

	api.GET("/room/info", func(c *gin.Context) {
		info, ok := d.Rooms.GetRoomInfo(c.Query("room_id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "room not found"})
			return
		}
		for i := range info.Users {
			info.Users[i].Points = d.Ledger.Points(info.Users[i].Username)
		}
		c.JSON(http.StatusOK, info)
	})

	api.POST("/game/start", func(c *gin.Context) {
		var p struct {
			RoomID string `json:"room_id" binding:"required"`
			Mode   string `json:"mode"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "room_id is required"})
			return
		}
		state, err := d.Coordinator.StartGame(p.RoomID, p.Mode)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"game_state": state})
	})

	api.GET("/user/records", func(c *gin.Context) {
		username := c.Query("username")
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"username":     username,
			"points":       d.Ledger.Points(username),
			"game_records": d.Ledger.RecordsFor(username),
		})
	})

	r.GET("/ws/room/:room_id", func(c *gin.Context) {
		d.WS.HandleLobby(ctx, c)
	})
	r.GET("/ws/game/:room_id", func(c *gin.Context) {
		d.WS.HandleGame(ctx, c)
	})

	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrWrongPassword):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
