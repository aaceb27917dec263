package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbattle/internal/config"
	"cardbattle/internal/domain"
)

func testScoring() config.Scoring {
	ranks := map[string]int{"A": 14}
	for i, r := range []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"} {
		ranks[r] = i + 2
	}
	return config.Scoring{
		RankWeights: ranks,
		SuitWeights: map[string]int{"clubs": 1, "diamonds": 2, "hearts": 3, "spades": 4},
		Outcomes: config.OutcomeTables{
			TwoPlayers: []config.Outcome{
				{Label: "win", Score: 10},
				{Label: "lose", Score: -10},
			},
			ThreePlayers: []config.Outcome{
				{Label: "win", Score: 10},
				{Label: "draw", Score: 0},
				{Label: "lose", Score: -10},
			},
		},
	}
}

// flatScoring collapses every card to the same weight so ties are reachable.
func flatScoring() config.Scoring {
	sc := testScoring()
	flat := make(map[string]int, len(sc.RankWeights))
	for r := range sc.RankWeights {
		flat[r] = 5
	}
	sc.RankWeights = flat
	sc.SuitWeights = map[string]int{"clubs": 0, "diamonds": 0, "hearts": 0, "spades": 0}
	return sc
}

type recordedRound struct {
	roomID    string
	startedAt time.Time
	results   map[string]PlayerResult
}

type fakeLedger struct {
	mu     sync.Mutex
	rounds []recordedRound
	deltas map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{deltas: make(map[string]int)}
}

func (f *fakeLedger) RecordRound(roomID string, startedAt time.Time, results map[string]PlayerResult) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, recordedRound{roomID, startedAt, results})
	return "session-1", nil
}

func (f *fakeLedger) ApplyScoreDelta(username string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas[username] += delta
	return nil
}

// cardSet collects every card reachable from the state for the conservation
// checks.
func cardSet(t *testing.T, s State) map[domain.Card]int {
	t.Helper()
	seen := make(map[domain.Card]int)
	for _, c := range s.Deck {
		seen[c]++
	}
	for _, hand := range s.Hands {
		for _, c := range hand {
			seen[c]++
		}
	}
	for _, c := range s.Table {
		if c != nil {
			seen[*c]++
		}
	}
	return seen
}

func assertFullDeck(t *testing.T, s State) {
	t.Helper()
	seen := cardSet(t, s)
	assert.Equal(t, 52, len(seen))
	for c, n := range seen {
		assert.Equalf(t, 1, n, "card %v appears %d times", c, n)
	}
}

func TestInitialize(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())

	state, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)

	assert.Equal(t, 52, len(state.Deck))
	assertFullDeck(t, state)
	assert.False(t, state.Finished)
	assert.False(t, state.StartedAt.IsZero())
	for _, username := range []string{"alice", "bob"} {
		assert.Empty(t, state.Hands[username])
		assert.Nil(t, state.Table[username])
		assert.Equal(t, ActionFlags{}, state.Actions[username])
	}
}

func TestDrawCard(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())
	_, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)

	card, state, err := eng.DrawCard("R1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 51, len(state.Deck))
	assert.Equal(t, []domain.Card{card}, state.Hands["alice"])
	assert.True(t, state.Actions["alice"].Drawn)
	assertFullDeck(t, state)

	_, _, err = eng.DrawCard("R1", "alice")
	assert.ErrorIs(t, err, ErrAlreadyActed)
}

func TestDrawCardInvalidState(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())

	_, _, err := eng.DrawCard("missing", "alice")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = eng.Initialize("R1", []string{"alice"})
	require.NoError(t, err)
	_, _, err = eng.DrawCard("R1", "mallory")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDrawCardDeckEmpty(t *testing.T) {
	b := NewBattle(testScoring(), newFakeLedger()).(*battle)
	_, err := b.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)

	b.rooms["R1"].deck = nil

	_, _, err = b.DrawCard("R1", "alice")
	assert.ErrorIs(t, err, ErrDeckEmpty)
}

func TestConcurrentDrawsDealDistinctCards(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())
	_, err := eng.Initialize("R1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	players := []string{"alice", "bob", "carol"}
	cards := make([]domain.Card, len(players))
	var wg sync.WaitGroup
	for i, username := range players {
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()
			card, _, err := eng.DrawCard("R1", username)
			assert.NoError(t, err)
			cards[i] = card
		}(i, username)
	}
	wg.Wait()

	assert.NotEqual(t, cards[0], cards[1])
	assert.NotEqual(t, cards[1], cards[2])
	assert.NotEqual(t, cards[0], cards[2])

	_, _, err = eng.DrawCard("R1", "alice")
	assert.ErrorIs(t, err, ErrAlreadyActed)
}

func TestPlayCardNotHeld(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())
	_, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)

	held, _, err := eng.DrawCard("R1", "alice")
	require.NoError(t, err)

	other := domain.Card{Suit: domain.SuitSpades, Rank: "A"}
	if other == held {
		other = domain.Card{Suit: domain.SuitSpades, Rank: "K"}
	}
	_, err = eng.PlayCard("R1", "alice", other)
	assert.ErrorIs(t, err, ErrCardNotHeld)

	// Hand and table untouched by the failed play.
	state, err := eng.PlayCard("R1", "alice", held)
	require.NoError(t, err)
	assert.Empty(t, state.Hands["alice"])
	assert.Equal(t, held, *state.Table["alice"])
	assert.True(t, state.Actions["alice"].Played)
	assertFullDeck(t, state)

	_, err = eng.PlayCard("R1", "alice", held)
	assert.ErrorIs(t, err, ErrAlreadyActed)
}

func TestRoundComplete(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())
	_, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, eng.RoundComplete("missing"))
	assert.False(t, eng.RoundComplete("R1"))

	for _, username := range []string{"alice", "bob"} {
		card, _, err := eng.DrawCard("R1", username)
		require.NoError(t, err)
		_, err = eng.PlayCard("R1", username, card)
		require.NoError(t, err)
	}
	assert.True(t, eng.RoundComplete("R1"))
}

func TestFinishTwoPlayers(t *testing.T) {
	led := newFakeLedger()
	eng := NewBattle(testScoring(), led)
	_, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)

	_, err = eng.Finish("R1")
	assert.ErrorIs(t, err, ErrRoundIncomplete)

	cards := map[string]domain.Card{}
	for _, username := range []string{"alice", "bob"} {
		card, _, err := eng.DrawCard("R1", username)
		require.NoError(t, err)
		_, err = eng.PlayCard("R1", username, card)
		require.NoError(t, err)
		cards[username] = card
	}

	result, err := eng.Finish("R1")
	require.NoError(t, err)

	sc := testScoring()
	winner, loser := "alice", "bob"
	if sc.Weight(cards["bob"]) > sc.Weight(cards["alice"]) {
		winner, loser = "bob", "alice"
	}
	assert.Equal(t, PlayerResult{Score: 10, Outcome: "win", Opponents: []string{loser}}, result.Results[winner])
	assert.Equal(t, PlayerResult{Score: -10, Outcome: "lose", Opponents: []string{winner}}, result.Results[loser])
	assert.Equal(t, cards["alice"], *result.Table["alice"])
	assert.Equal(t, cards["bob"], *result.Table["bob"])

	// Recorded exactly once, and immutably closed afterwards.
	require.Len(t, led.rounds, 1)
	assert.Equal(t, "R1", led.rounds[0].roomID)
	assert.Equal(t, 10, led.deltas[winner])
	assert.Equal(t, -10, led.deltas[loser])

	_, err = eng.Finish("R1")
	assert.ErrorIs(t, err, ErrAlreadyFinished)
	assert.Len(t, led.rounds, 1)
}

func TestFinishThreePlayersOrdered(t *testing.T) {
	b := NewBattle(testScoring(), newFakeLedger()).(*battle)
	_, err := b.Initialize("R1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	// Manufactured hands: strictly ordered weights high to mid to low.
	deal := map[string]domain.Card{
		"alice": {Suit: domain.SuitSpades, Rank: "A"},
		"bob":   {Suit: domain.SuitHearts, Rank: "9"},
		"carol": {Suit: domain.SuitClubs, Rank: "2"},
	}
	g := b.rooms["R1"]
	for username, card := range deal {
		g.hands[username] = []domain.Card{card}
	}

	for _, username := range []string{"carol", "alice", "bob"} {
		_, err := b.PlayCard("R1", username, deal[username])
		require.NoError(t, err)
	}

	result, err := b.Finish("R1")
	require.NoError(t, err)
	assert.Equal(t, "win", result.Results["alice"].Outcome)
	assert.Equal(t, 10, result.Results["alice"].Score)
	assert.Equal(t, "draw", result.Results["bob"].Outcome)
	assert.Equal(t, 0, result.Results["bob"].Score)
	assert.Equal(t, "lose", result.Results["carol"].Outcome)
	assert.Equal(t, -10, result.Results["carol"].Score)
	assert.ElementsMatch(t, []string{"bob", "carol"}, result.Results["alice"].Opponents)
}

func TestFinishTieBreakByPlayOrder(t *testing.T) {
	// Every card weighs the same, so position is decided purely by who
	// played first.
	b := NewBattle(flatScoring(), newFakeLedger()).(*battle)
	_, err := b.Initialize("R1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	deal := map[string]domain.Card{
		"alice": {Suit: domain.SuitClubs, Rank: "3"},
		"bob":   {Suit: domain.SuitSpades, Rank: "A"},
		"carol": {Suit: domain.SuitHearts, Rank: "7"},
	}
	g := b.rooms["R1"]
	for username, card := range deal {
		g.hands[username] = []domain.Card{card}
	}

	for _, username := range []string{"bob", "carol", "alice"} {
		_, err := b.PlayCard("R1", username, deal[username])
		require.NoError(t, err)
	}

	result, err := b.Finish("R1")
	require.NoError(t, err)
	assert.Equal(t, "win", result.Results["bob"].Outcome)
	assert.Equal(t, "draw", result.Results["carol"].Outcome)
	assert.Equal(t, "lose", result.Results["alice"].Outcome)
}

func TestFinishUnsupportedPlayerCount(t *testing.T) {
	led := newFakeLedger()
	eng := NewBattle(testScoring(), led)
	_, err := eng.Initialize("R1", []string{"alice"})
	require.NoError(t, err)

	card, _, err := eng.DrawCard("R1", "alice")
	require.NoError(t, err)
	_, err = eng.PlayCard("R1", "alice", card)
	require.NoError(t, err)

	_, err = eng.Finish("R1")
	assert.ErrorIs(t, err, ErrUnsupportedPlayerCount)
	assert.Empty(t, led.rounds)

	// Count failures do not close the round.
	_, err = eng.Finish("R1")
	assert.ErrorIs(t, err, ErrUnsupportedPlayerCount)
}

func TestRestartResetsRound(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())
	first, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)

	for _, username := range []string{"alice", "bob"} {
		card, _, err := eng.DrawCard("R1", username)
		require.NoError(t, err)
		_, err = eng.PlayCard("R1", username, card)
		require.NoError(t, err)
	}
	_, err = eng.Finish("R1")
	require.NoError(t, err)

	state, err := eng.Initialize("R1", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, state.Finished)
	assert.Equal(t, 52, len(state.Deck))
	assert.NotEqual(t, first.Deck, state.Deck)
	assertFullDeck(t, state)
	assert.Nil(t, state.Table["alice"])
	assert.Nil(t, state.Table["bob"])
	assert.Equal(t, ActionFlags{}, state.Actions["alice"])

	// A fresh round accepts actions again.
	_, _, err = eng.DrawCard("R1", "alice")
	assert.NoError(t, err)
}

func TestDrop(t *testing.T) {
	eng := NewBattle(testScoring(), newFakeLedger())
	_, err := eng.Initialize("R1", []string{"alice"})
	require.NoError(t, err)

	eng.Drop("R1")
	_, _, err = eng.DrawCard("R1", "alice")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestModeRegistry(t *testing.T) {
	eng, err := NewEngine("battle", testScoring(), newFakeLedger())
	require.NoError(t, err)
	assert.NotNil(t, eng)

	_, err = NewEngine("no-such-mode", testScoring(), newFakeLedger())
	assert.ErrorIs(t, err, ErrUnknownMode)
}
