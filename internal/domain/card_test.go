package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDeck(t *testing.T) {
	deck := NewDeck()
	assert.Len(t, deck, 52)

	seen := make(map[Card]struct{}, len(deck))
	for _, c := range deck {
		seen[c] = struct{}{}
	}
	assert.Len(t, seen, 52)
}
