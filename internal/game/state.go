package game

import (
	"time"

	"cardbattle/internal/domain"
)

// ActionFlags records whether a participant has taken each once-per-round
// action.
type ActionFlags struct {
	Drawn  bool `json:"drawn"`
	Played bool `json:"played"`
}

// State is a point-in-time copy of a room's game state, safe to hand to
// broadcast code after the engine releases its lock.
type State struct {
	Deck      []domain.Card            `json:"deck"`
	Hands     map[string][]domain.Card `json:"hands"`
	Table     map[string]*domain.Card  `json:"table"`
	Actions   map[string]ActionFlags   `json:"actions"`
	StartedAt time.Time                `json:"started_at"`
	Finished  bool                     `json:"finished"`
}

// PlayerResult is one participant's share of a finished round.
type PlayerResult struct {
	Score     int      `json:"score"`
	Outcome   string   `json:"outcome"`
	Opponents []string `json:"opponents"`
}

// RoundResult is the finalized outcome of a round.
type RoundResult struct {
	Results map[string]PlayerResult `json:"results"`
	Table   map[string]*domain.Card `json:"table"`
}
