// Package room owns room identity, membership and readiness. Pure state and
// transition logic, no I/O.
package room

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cardbattle/internal/domain"
)

var (
	ErrRoomNotFound        = errors.New("room: room not found")
	ErrParticipantNotFound = errors.New("room: participant not in room")
	ErrIDSpaceExhausted    = errors.New("room: could not generate a unique room id")
)

const roomIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type member struct {
	username string
	ready    bool
}

// state is one room's mutable record. Membership keeps join order, which the
// engine later relies on for deterministic snapshots.
type state struct {
	id         string
	members    []*member
	lastActive time.Time
}

func (s *state) find(username string) *member {
	for _, m := range s.members {
		if m.username == username {
			return m
		}
	}
	return nil
}

// Registry tracks all active rooms. Rooms persist until the process exits or
// the reaper evicts them; removing the last participant does not delete the
// room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*state
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*state)}
}

// CreateRoom generates a fresh unique code and joins the creator, unready.
func (r *Registry) CreateRoom(creator string) (string, error) {
	if err := domain.ValidateUsername(creator); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.generateID()
	if err != nil {
		return "", err
	}
	r.rooms[id] = &state{
		id:         id,
		members:    []*member{{username: creator}},
		lastActive: time.Now(),
	}
	log.Info().Str("module", "room").Str("room_id", id).Str("creator", creator).Msg("room created")
	return id, nil
}

// generateID must be called with the write lock held.
func (r *Registry) generateID() (string, error) {
	buf := make([]byte, domain.RoomIDLength)
	for attempt := 0; attempt < 100; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i, b := range buf {
			buf[i] = roomIDCharset[int(b)%len(roomIDCharset)]
		}
		id := string(buf)
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// JoinRoom idempotently ensures the participant is present. Only the first
// join sets the ready flag to false; re-joining never resets readiness.
func (r *Registry) JoinRoom(roomID, username string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	s.lastActive = time.Now()
	if s.find(username) == nil {
		s.members = append(s.members, &member{username: username})
		log.Info().Str("module", "room").Str("room_id", roomID).Str("username", username).Msg("participant joined")
	}
	return nil
}

// SetReady marks the participant ready. Readiness is monotonic: there is no
// un-ready transition.
func (r *Registry) SetReady(roomID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	m := s.find(username)
	if m == nil {
		return ErrParticipantNotFound
	}
	s.lastActive = time.Now()
	m.ready = true
	log.Info().Str("module", "room").Str("room_id", roomID).Str("username", username).Msg("participant ready")
	return nil
}

// AllReady reports whether the room exists, is non-empty, and every member is
// ready.
func (r *Registry) AllReady(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[roomID]
	if !ok || len(s.members) == 0 {
		return false
	}
	for _, m := range s.members {
		if !m.ready {
			return false
		}
	}
	return true
}

// LeaveRoom removes the participant if present; leaving twice is a no-op.
func (r *Registry) LeaveRoom(roomID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	s.lastActive = time.Now()
	for i, m := range s.members {
		if m.username == username {
			s.members = append(s.members[:i], s.members[i+1:]...)
			log.Info().Str("module", "room").Str("room_id", roomID).Str("username", username).Msg("participant left")
			break
		}
	}
	return nil
}

// GetRoomInfo returns a membership snapshot in join order.
func (r *Registry) GetRoomInfo(roomID string) (domain.RoomInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[roomID]
	if !ok {
		return domain.RoomInfo{}, false
	}
	info := domain.RoomInfo{RoomID: s.id, Users: make([]domain.MemberInfo, 0, len(s.members))}
	for _, m := range s.members {
		info.Users = append(info.Users, domain.MemberInfo{Username: m.username, Ready: m.ready})
	}
	return info, true
}

// Sweep evicts rooms idle for longer than ttl and returns their ids so the
// caller can drop dependent game state and connections.
func (r *Registry) Sweep(ttl time.Duration) []string {
	cutoff := time.Now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, s := range r.rooms {
		if s.lastActive.Before(cutoff) {
			delete(r.rooms, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		log.Info().Str("module", "room").Int("count", len(evicted)).Msg("evicted idle rooms")
	}
	return evicted
}
