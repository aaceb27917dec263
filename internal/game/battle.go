package game

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thoas/go-funk"

	"cardbattle/internal/config"
	"cardbattle/internal/domain"
)

func init() {
	RegisterMode("battle", NewBattle)
}

// battle is the single-round draw/play mode: every participant draws one
// card, plays one card, and the highest weight wins.
type battle struct {
	mu      sync.RWMutex
	rooms   map[string]*roomGame
	scoring config.Scoring
	ledger  Ledger
}

// roomGame is exclusively owned by the engine; its mutex serializes every
// read-modify-write so concurrent connections cannot corrupt the deck or race
// the already-acted checks.
type roomGame struct {
	mu        sync.Mutex
	deck      []domain.Card
	hands     map[string][]domain.Card
	table     map[string]*domain.Card
	actions   map[string]*ActionFlags
	playOrder []string
	startedAt time.Time
	finished  bool
}

func NewBattle(scoring config.Scoring, ledger Ledger) Engine {
	return &battle{
		rooms:   make(map[string]*roomGame),
		scoring: scoring,
		ledger:  ledger,
	}
}

func (b *battle) Initialize(roomID string, participants []string) (State, error) {
	g := &roomGame{
		deck:      domain.NewDeck(),
		hands:     make(map[string][]domain.Card, len(participants)),
		table:     make(map[string]*domain.Card, len(participants)),
		actions:   make(map[string]*ActionFlags, len(participants)),
		startedAt: time.Now().UTC(),
	}
	for _, p := range participants {
		g.hands[p] = []domain.Card{}
		g.table[p] = nil
		g.actions[p] = &ActionFlags{}
	}

	b.mu.Lock()
	b.rooms[roomID] = g
	b.mu.Unlock()

	log.Info().Str("module", "game").Str("room_id", roomID).Int("participants", len(participants)).Msg("game initialized")
	return g.snapshot(), nil
}

func (b *battle) get(roomID string) (*roomGame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.rooms[roomID]
	return g, ok
}

func (b *battle) DrawCard(roomID, username string) (domain.Card, State, error) {
	g, ok := b.get(roomID)
	if !ok {
		return domain.Card{}, State{}, ErrInvalidState
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	flags, ok := g.actions[username]
	if !ok {
		return domain.Card{}, State{}, ErrInvalidState
	}
	if flags.Drawn {
		return domain.Card{}, State{}, ErrAlreadyActed
	}
	if len(g.deck) == 0 {
		return domain.Card{}, State{}, ErrDeckEmpty
	}
	card := g.deck[0]
	g.deck = g.deck[1:]
	g.hands[username] = append(g.hands[username], card)
	flags.Drawn = true

	log.Debug().Str("module", "game").Str("room_id", roomID).Str("username", username).Msg("card drawn")
	return card, g.snapshot(), nil
}

func (b *battle) PlayCard(roomID, username string, card domain.Card) (State, error) {
	g, ok := b.get(roomID)
	if !ok {
		return State{}, ErrInvalidState
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	flags, ok := g.actions[username]
	if !ok {
		return State{}, ErrInvalidState
	}
	if flags.Played {
		return State{}, ErrAlreadyActed
	}
	hand := g.hands[username]
	idx := funk.IndexOf(hand, card)
	if idx < 0 {
		return State{}, ErrCardNotHeld
	}
	g.hands[username] = append(hand[:idx:idx], hand[idx+1:]...)
	played := card
	g.table[username] = &played
	g.playOrder = append(g.playOrder, username)
	flags.Played = true

	log.Debug().Str("module", "game").Str("room_id", roomID).Str("username", username).Msg("card played")
	return g.snapshot(), nil
}

func (b *battle) RoundComplete(roomID string) bool {
	g, ok := b.get(roomID)
	if !ok {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.table {
		if c == nil {
			return false
		}
	}
	return true
}

func (b *battle) Finish(roomID string) (RoundResult, error) {
	g, ok := b.get(roomID)
	if !ok {
		return RoundResult{}, ErrInvalidState
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finished {
		return RoundResult{}, ErrAlreadyFinished
	}
	for _, c := range g.table {
		if c == nil {
			return RoundResult{}, ErrRoundIncomplete
		}
	}
	outcomes, ok := b.scoring.Outcomes.ForCount(len(g.table))
	if !ok {
		return RoundResult{}, ErrUnsupportedPlayerCount
	}

	// Stable sort over play order: when weights tie, whoever played first
	// keeps the higher position.
	ranked := append([]string(nil), g.playOrder...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return b.scoring.Weight(*g.table[ranked[i]]) > b.scoring.Weight(*g.table[ranked[j]])
	})

	results := make(map[string]PlayerResult, len(ranked))
	for pos, username := range ranked {
		results[username] = PlayerResult{
			Score:   outcomes[pos].Score,
			Outcome: outcomes[pos].Label,
			Opponents: funk.FilterString(ranked, func(other string) bool {
				return other != username
			}),
		}
	}

	g.finished = true

	// The round is immutably closed from here; the ledger write happens
	// exactly once even if it fails, so failures are logged, not retried.
	sessionID, err := b.ledger.RecordRound(roomID, g.startedAt, results)
	if err != nil {
		log.Error().Err(err).Str("module", "game").Str("room_id", roomID).Msg("ledger record failed")
	}
	for username, res := range results {
		if err := b.ledger.ApplyScoreDelta(username, res.Score); err != nil {
			log.Error().Err(err).Str("module", "game").Str("username", username).Msg("score update failed")
		}
	}

	log.Info().Str("module", "game").Str("room_id", roomID).Str("session_id", sessionID).Msg("round finished")
	return RoundResult{Results: results, Table: copyTable(g.table)}, nil
}

func (b *battle) Drop(roomID string) {
	b.mu.Lock()
	delete(b.rooms, roomID)
	b.mu.Unlock()
}

// snapshot deep-copies the state; callers hold g.mu.
func (g *roomGame) snapshot() State {
	s := State{
		Deck:      append([]domain.Card(nil), g.deck...),
		Hands:     make(map[string][]domain.Card, len(g.hands)),
		Table:     copyTable(g.table),
		Actions:   make(map[string]ActionFlags, len(g.actions)),
		StartedAt: g.startedAt,
		Finished:  g.finished,
	}
	for username, hand := range g.hands {
		s.Hands[username] = append([]domain.Card(nil), hand...)
	}
	for username, flags := range g.actions {
		s.Actions[username] = *flags
	}
	return s
}

func copyTable(table map[string]*domain.Card) map[string]*domain.Card {
	out := make(map[string]*domain.Card, len(table))
	for username, c := range table {
		if c == nil {
			out[username] = nil
			continue
		}
		cc := *c
		out[username] = &cc
	}
	return out
}
