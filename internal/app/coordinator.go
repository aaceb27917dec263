// Package app glues the registry, engine and hub together: it interprets
// inbound action messages and drives the resulting broadcasts.
package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cardbattle/internal/config"
	"cardbattle/internal/domain"
	"cardbattle/internal/game"
	"cardbattle/internal/hub"
	"cardbattle/internal/room"
)

type Coordinator struct {
	rooms       *room.Registry
	hub         *hub.Hub
	scoring     config.Scoring
	ledger      game.Ledger
	defaultMode string

	mu        sync.RWMutex
	engines   map[string]game.Engine
	roomModes map[string]string
}

func NewCoordinator(rooms *room.Registry, h *hub.Hub, scoring config.Scoring, ledger game.Ledger, defaultMode string) (*Coordinator, error) {
	co := &Coordinator{
		rooms:       rooms,
		hub:         h,
		scoring:     scoring,
		ledger:      ledger,
		defaultMode: defaultMode,
		engines:     make(map[string]game.Engine),
		roomModes:   make(map[string]string),
	}
	// The default mode must resolve at startup, not on the first action.
	if _, err := co.engine(defaultMode); err != nil {
		return nil, err
	}
	return co, nil
}

// engine returns the cached engine for a mode, building it from the mode
// registry on first use.
func (co *Coordinator) engine(mode string) (game.Engine, error) {
	co.mu.RLock()
	eng, ok := co.engines[mode]
	co.mu.RUnlock()
	if ok {
		return eng, nil
	}
	co.mu.Lock()
	defer co.mu.Unlock()
	if eng, ok = co.engines[mode]; ok {
		return eng, nil
	}
	eng, err := game.NewEngine(mode, co.scoring, co.ledger)
	if err != nil {
		return nil, err
	}
	co.engines[mode] = eng
	return eng, nil
}

// roomEngine resolves the engine a room is currently playing on.
func (co *Coordinator) roomEngine(roomID string) game.Engine {
	co.mu.RLock()
	mode, ok := co.roomModes[roomID]
	co.mu.RUnlock()
	if !ok {
		mode = co.defaultMode
	}
	eng, _ := co.engine(mode)
	return eng
}

// StartGame initializes the room's game on the named mode (empty selects the
// configured default). Triggered over HTTP once the lobby reports all ready.
func (co *Coordinator) StartGame(roomID, mode string) (game.State, error) {
	if mode == "" {
		mode = co.defaultMode
	}
	info, ok := co.rooms.GetRoomInfo(roomID)
	if !ok {
		return game.State{}, room.ErrRoomNotFound
	}
	eng, err := co.engine(mode)
	if err != nil {
		return game.State{}, err
	}
	co.mu.Lock()
	co.roomModes[roomID] = mode
	co.mu.Unlock()
	return eng.Initialize(roomID, info.Usernames())
}

type inbound struct {
	Action   string       `json:"action"`
	Username string       `json:"username"`
	Card     *domain.Card `json:"card,omitempty"`
}

type errorMsg struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
}

func errMsg(err error) errorMsg {
	return errorMsg{Action: "error", Detail: err.Error()}
}

// HandleLobbyMessage processes one inbound lobby-channel message.
func (co *Coordinator) HandleLobbyMessage(roomID string, conn hub.Sender, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "coordinator").Str("room_id", roomID).Msg("malformed lobby message")
		return
	}

	if msg.Action != "ready" {
		co.hub.Unicast(conn, struct {
			Action string          `json:"action"`
			Data   json.RawMessage `json:"data"`
		}{"echo", json.RawMessage(data)})
		return
	}

	if err := co.rooms.SetReady(roomID, msg.Username); err != nil {
		co.hub.Unicast(conn, errMsg(err))
		return
	}
	info, _ := co.rooms.GetRoomInfo(roomID)
	co.hub.Broadcast(roomID, hub.Lobby, struct {
		Action string          `json:"action"`
		Room   domain.RoomInfo `json:"room"`
	}{"update_room", info})

	if co.rooms.AllReady(roomID) {
		co.hub.Broadcast(roomID, hub.Lobby, struct {
			Action string `json:"action"`
			RoomID string `json:"room_id"`
		}{"game_start", roomID})
	}
}

// HandleGameMessage processes one inbound game-channel message. Draw and play
// failures go back to the acting connection only; restart and finish failures
// are room-wide state problems and are broadcast.
func (co *Coordinator) HandleGameMessage(roomID string, conn hub.Sender, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "coordinator").Str("room_id", roomID).Msg("malformed game message")
		return
	}
	eng := co.roomEngine(roomID)

	switch msg.Action {
	case "draw_card":
		card, state, err := eng.DrawCard(roomID, msg.Username)
		if err != nil {
			co.hub.Unicast(conn, errMsg(err))
			return
		}
		co.hub.Broadcast(roomID, hub.Game, gameUpdate{"draw_card", msg.Username, &card, state})

	case "play_card":
		if msg.Card == nil {
			co.hub.Unicast(conn, errorMsg{Action: "error", Detail: "card is required"})
			return
		}
		state, err := eng.PlayCard(roomID, msg.Username, *msg.Card)
		if err != nil {
			co.hub.Unicast(conn, errMsg(err))
			return
		}
		co.hub.Broadcast(roomID, hub.Game, gameUpdate{"play_card", msg.Username, msg.Card, state})
		if eng.RoundComplete(roomID) {
			co.finish(roomID, eng)
		}

	case "restart_game":
		info, ok := co.rooms.GetRoomInfo(roomID)
		if !ok {
			co.hub.Broadcast(roomID, hub.Game, errMsg(room.ErrRoomNotFound))
			return
		}
		state, err := eng.Initialize(roomID, info.Usernames())
		if err != nil {
			co.hub.Broadcast(roomID, hub.Game, errMsg(err))
			return
		}
		co.hub.Broadcast(roomID, hub.Game, gameUpdate{"restart_game", msg.Username, nil, state})

	case "finish_game":
		co.finish(roomID, eng)

	default:
		co.hub.Unicast(conn, errorMsg{Action: "error", Detail: "Unknown action"})
	}
}

type gameUpdate struct {
	Action   string       `json:"action"`
	Username string       `json:"username"`
	Card     *domain.Card `json:"card,omitempty"`
	State    game.State   `json:"state"`
}

func (co *Coordinator) finish(roomID string, eng game.Engine) {
	result, err := eng.Finish(roomID)
	if err != nil {
		co.hub.Broadcast(roomID, hub.Game, errMsg(err))
		return
	}
	co.hub.Broadcast(roomID, hub.Game, struct {
		Action string           `json:"action"`
		Result game.RoundResult `json:"result"`
	}{"finish_game", result})
}

// StartReaper evicts rooms idle beyond ttl, dropping their game state and
// connections with them. A ttl of zero or less disables the reaper.
func (co *Coordinator) StartReaper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				co.reap(ttl)
			}
		}
	}()
	log.Info().Str("module", "coordinator").Dur("ttl", ttl).Msg("room reaper enabled")
}

func (co *Coordinator) reap(ttl time.Duration) {
	for _, roomID := range co.rooms.Sweep(ttl) {
		co.roomEngine(roomID).Drop(roomID)
		co.hub.DropRoom(roomID)
		co.mu.Lock()
		delete(co.roomModes, roomID)
		co.mu.Unlock()
	}
}
