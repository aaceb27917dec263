// Package hub owns the sets of open connections per room and channel and the
// broadcast/unicast primitives. It knows nothing about the game.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel is a logically distinct broadcast scope within a room.
type Channel string

const (
	Lobby Channel = "lobby"
	Game  Channel = "game"
)

// Sender is the write side of one connection. Implementations must be safe
// for concurrent TrySend and should fail fast instead of blocking.
type Sender interface {
	TrySend(data []byte) error
}

type key struct {
	roomID  string
	channel Channel
}

type Hub struct {
	mu    sync.RWMutex
	conns map[key]map[Sender]struct{}
}

func New() *Hub {
	return &Hub{conns: make(map[key]map[Sender]struct{})}
}

func (h *Hub) Attach(roomID string, ch Channel, s Sender) {
	k := key{roomID, ch}
	h.mu.Lock()
	set, ok := h.conns[k]
	if !ok {
		set = make(map[Sender]struct{})
		h.conns[k] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	log.Debug().Str("module", "hub").Str("room_id", roomID).Str("channel", string(ch)).Msg("connection attached")
}

// Detach is idempotent; detaching an unknown connection is a no-op.
func (h *Hub) Detach(roomID string, ch Channel, s Sender) {
	k := key{roomID, ch}
	h.mu.Lock()
	if set, ok := h.conns[k]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.conns, k)
		}
	}
	h.mu.Unlock()
	log.Debug().Str("module", "hub").Str("room_id", roomID).Str("channel", string(ch)).Msg("connection detached")
}

// Broadcast delivers v to every connection attached under room+channel.
// Fan-out is best effort: one failing connection never aborts the others.
func (h *Hub) Broadcast(roomID string, ch Channel, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("broadcast marshal")
		return
	}
	h.mu.RLock()
	set := h.conns[key{roomID, ch}]
	targets := make([]Sender, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, s := range targets {
		if err := s.TrySend(data); err != nil {
			dropped++
		}
	}
	log.Debug().Str("module", "hub").Str("room_id", roomID).Str("channel", string(ch)).
		Int("sent_to", len(targets)-dropped).Int("dropped", dropped).Msg("broadcast result")
}

// Unicast delivers v to exactly one connection.
func (h *Hub) Unicast(s Sender, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("unicast marshal")
		return
	}
	_ = s.TrySend(data)
}

// DropRoom removes every connection set for the room, on both channels.
func (h *Hub) DropRoom(roomID string) {
	h.mu.Lock()
	delete(h.conns, key{roomID, Lobby})
	delete(h.conns, key{roomID, Game})
	h.mu.Unlock()
}

// Count reports the attached connections for a room+channel.
func (h *Hub) Count(roomID string, ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[key{roomID, ch}])
}
