package domain

import "math/rand"

type Suit string

const (
	SuitClubs    Suit = "clubs"
	SuitDiamonds Suit = "diamonds"
	SuitHearts   Suit = "hearts"
	SuitSpades   Suit = "spades"
)

// Suits in canonical deck order.
var Suits = []Suit{SuitClubs, SuitDiamonds, SuitHearts, SuitSpades}

// Ranks in canonical deck order. Ranks are strings on the wire ("A", "2"
// through "10", "J", "Q", "K").
var Ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

type Card struct {
	Suit Suit   `json:"suit"`
	Rank string `json:"rank"`
}

// NewDeck builds a full 52-card deck (13 ranks x 4 suits, no jokers) in a
// uniformly shuffled order. Cards are dealt from the front.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, suit := range Suits {
		for _, rank := range Ranks {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
