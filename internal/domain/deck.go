package domain

import (
	"math/rand"
	"sort"
)

// NewDeck returns the full 52-card deck in rank-then-suit order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for r := RankLow; r <= RankTwo; r++ {
		for s := int32(0); s <= 3; s++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck.
func ShuffleDeck(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// SortHand orders cards by ascending value in place.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Value() < cards[j].Value()
	})
}
