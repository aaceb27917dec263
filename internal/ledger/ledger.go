// Package ledger records finished rounds and running scores. It backs the
// user records endpoint and satisfies the engine's Ledger interface.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cardbattle/internal/game"
)

// Record is one participant's view of a finished round.
type Record struct {
	SessionID   string    `json:"session_id"`
	RoomID      string    `json:"room_id"`
	PlayedAt    time.Time `json:"game_time"`
	Opponents   []string  `json:"opponents"`
	Result      string    `json:"result"`
	ScoreChange int       `json:"score_change"`
}

// Memory keeps scores and round records in process memory. Write-once per
// round: records are only ever appended.
type Memory struct {
	mu      sync.RWMutex
	points  map[string]int
	records map[string][]Record
}

func NewMemory() *Memory {
	return &Memory{
		points:  make(map[string]int),
		records: make(map[string][]Record),
	}
}

// RecordRound assigns a session id and stores one record per participant.
func (m *Memory) RecordRound(roomID string, startedAt time.Time, results map[string]game.PlayerResult) (string, error) {
	sessionID := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	for username, res := range results {
		m.records[username] = append(m.records[username], Record{
			SessionID:   sessionID,
			RoomID:      roomID,
			PlayedAt:    startedAt,
			Opponents:   res.Opponents,
			Result:      res.Outcome,
			ScoreChange: res.Score,
		})
	}
	log.Info().Str("module", "ledger").Str("room_id", roomID).Str("session_id", sessionID).Msg("round recorded")
	return sessionID, nil
}

func (m *Memory) ApplyScoreDelta(username string, delta int) error {
	m.mu.Lock()
	m.points[username] += delta
	m.mu.Unlock()
	return nil
}

// Points returns the participant's running score; unknown names score zero.
func (m *Memory) Points(username string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.points[username]
}

// RecordsFor returns the participant's round records, most recent last.
func (m *Memory) RecordsFor(username string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.records[username]...)
}
