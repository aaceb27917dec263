// Package game owns the per-room game state machine: deck, hands, table,
// per-round action flags and scoring.
package game

import (
	"errors"
	"fmt"
	"time"

	"cardbattle/internal/config"
	"cardbattle/internal/domain"
)

var (
	ErrInvalidState           = errors.New("game: no active game for this room")
	ErrAlreadyActed           = errors.New("game: participant already acted this round")
	ErrDeckEmpty              = errors.New("game: deck is empty")
	ErrCardNotHeld            = errors.New("game: participant does not hold that card")
	ErrAlreadyFinished        = errors.New("game: round already finished")
	ErrRoundIncomplete        = errors.New("game: not every participant has played")
	ErrUnsupportedPlayerCount = errors.New("game: unsupported participant count")
	ErrUnknownMode            = errors.New("game: unknown game mode")
)

// Engine is a pluggable game implementation. Every method is safe for
// concurrent use; per-room operations are serialized internally so that
// check-then-act sequences cannot interleave across connections.
type Engine interface {
	// Initialize (re)builds the game state for a room, replacing any prior
	// state. Used both for game start and restart.
	Initialize(roomID string, participants []string) (State, error)
	DrawCard(roomID, username string) (domain.Card, State, error)
	PlayCard(roomID, username string, card domain.Card) (State, error)
	// RoundComplete reports whether every table slot holds a card.
	RoundComplete(roomID string) bool
	// Finish scores the round, records it to the ledger exactly once, and
	// marks the state finished.
	Finish(roomID string) (RoundResult, error)
	// Drop discards a room's game state, if any.
	Drop(roomID string)
}

// Ledger is the external collaborator that durably records finished rounds.
type Ledger interface {
	RecordRound(roomID string, startedAt time.Time, results map[string]PlayerResult) (sessionID string, err error)
	ApplyScoreDelta(username string, delta int) error
}

// Factory builds an engine for one registered game mode.
type Factory func(scoring config.Scoring, ledger Ledger) Engine

var modes = map[string]Factory{}

// RegisterMode makes a game mode selectable by name. Modes register
// themselves from init; registering a duplicate name panics.
func RegisterMode(name string, f Factory) {
	if _, dup := modes[name]; dup {
		panic(fmt.Sprintf("game: mode %q registered twice", name))
	}
	modes[name] = f
}

// NewEngine builds the engine registered under name.
func NewEngine(name string, scoring config.Scoring, ledger Ledger) (Engine, error) {
	f, ok := modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return f(scoring, ledger), nil
}
