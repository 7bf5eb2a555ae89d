package domain

import (
	"testing"
)

func TestDeterminePlay(t *testing.T) {
	tests := []struct {
		name     string
		cards    []Card
		expected Combo
		suited   bool
	}{
		{
			name:     "Single",
			cards:    []Card{{Rank: 3, Suit: 0}},
			expected: ComboSingle,
			suited:   true,
		},
		{
			name:     "Pair",
			cards:    []Card{{Rank: 3, Suit: 0}, {Rank: 3, Suit: 1}},
			expected: ComboPair,
		},
		{
			name:     "Triple",
			cards:    []Card{{Rank: 7, Suit: 0}, {Rank: 7, Suit: 1}, {Rank: 7, Suit: 2}},
			expected: ComboTriple,
		},
		{
			name:     "Quad",
			cards:    []Card{{Rank: 5, Suit: 0}, {Rank: 5, Suit: 1}, {Rank: 5, Suit: 2}, {Rank: 5, Suit: 3}},
			expected: ComboQuad,
		},
		{
			name:     "Run of three",
			cards:    []Card{{Rank: 3, Suit: 0}, {Rank: 4, Suit: 1}, {Rank: 5, Suit: 2}},
			expected: ComboRun,
		},
		{
			name:     "Suited run",
			cards:    []Card{{Rank: 8, Suit: 3}, {Rank: 9, Suit: 3}, {Rank: 10, Suit: 3}},
			expected: ComboRun,
			suited:   true,
		},
		{
			name:     "Run up to ace",
			cards:    []Card{{Rank: 12, Suit: 0}, {Rank: 13, Suit: 1}, {Rank: 14, Suit: 2}},
			expected: ComboRun,
		},
		{
			name:     "Run containing a 2",
			cards:    []Card{{Rank: 13, Suit: 0}, {Rank: 14, Suit: 1}, {Rank: 15, Suit: 2}},
			expected: ComboInvalid,
		},
		{
			name: "Three consecutive pairs",
			cards: []Card{
				{Rank: 3, Suit: 0}, {Rank: 3, Suit: 1},
				{Rank: 4, Suit: 0}, {Rank: 4, Suit: 1},
				{Rank: 5, Suit: 0}, {Rank: 5, Suit: 1},
			},
			expected: ComboBomb,
		},
		{
			name: "Bomb containing a 2",
			cards: []Card{
				{Rank: 13, Suit: 0}, {Rank: 13, Suit: 1},
				{Rank: 14, Suit: 0}, {Rank: 14, Suit: 1},
				{Rank: 15, Suit: 0}, {Rank: 15, Suit: 1},
			},
			expected: ComboInvalid,
		},
		{
			name: "Non-consecutive pairs",
			cards: []Card{
				{Rank: 3, Suit: 0}, {Rank: 3, Suit: 1},
				{Rank: 5, Suit: 0}, {Rank: 5, Suit: 1},
				{Rank: 6, Suit: 0}, {Rank: 6, Suit: 1},
			},
			expected: ComboInvalid,
		},
		{
			name:     "Mismatched pair",
			cards:    []Card{{Rank: 3, Suit: 0}, {Rank: 4, Suit: 1}},
			expected: ComboInvalid,
		},
		{
			name:     "Empty",
			cards:    nil,
			expected: ComboInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			play := DeterminePlay(tt.cards)
			if play.Combo != tt.expected {
				t.Errorf("combo = %v, want %v", play.Combo, tt.expected)
			}
			if play.Combo != ComboInvalid && play.Suited != tt.suited {
				t.Errorf("suited = %v, want %v", play.Suited, tt.suited)
			}
		})
	}
}

func TestDeterminePlaySortsCards(t *testing.T) {
	play := DeterminePlay([]Card{{Rank: 5, Suit: 2}, {Rank: 3, Suit: 0}, {Rank: 4, Suit: 1}})
	if play.Combo != ComboRun {
		t.Fatalf("combo = %v, want RUN", play.Combo)
	}
	if hc := play.HighCard(); hc.Rank != 5 || hc.Suit != 2 {
		t.Fatalf("high card = %v, want 5♦", hc)
	}
}

func TestCanBeatPlay(t *testing.T) {
	pairs := func(start int32, n int) []Card {
		var cards []Card
		for i := 0; i < n; i++ {
			cards = append(cards, Card{Rank: start + int32(i), Suit: 0}, Card{Rank: start + int32(i), Suit: 1})
		}
		return cards
	}

	tests := []struct {
		name     string
		last     []Card
		play     []Card
		expected bool
	}{
		{
			name:     "Higher single beats lower single",
			last:     []Card{{Rank: 7, Suit: 3}},
			play:     []Card{{Rank: 8, Suit: 0}},
			expected: true,
		},
		{
			name:     "Suit breaks rank ties",
			last:     []Card{{Rank: 7, Suit: 1}},
			play:     []Card{{Rank: 7, Suit: 2}},
			expected: true,
		},
		{
			name:     "Lower single loses",
			last:     []Card{{Rank: 9, Suit: 0}},
			play:     []Card{{Rank: 8, Suit: 3}},
			expected: false,
		},
		{
			name:     "Pair cannot answer single",
			last:     []Card{{Rank: 7, Suit: 0}},
			play:     []Card{{Rank: 8, Suit: 0}, {Rank: 8, Suit: 1}},
			expected: false,
		},
		{
			name:     "Quad chops single 2",
			last:     []Card{{Rank: 15, Suit: 3}},
			play:     []Card{{Rank: 5, Suit: 0}, {Rank: 5, Suit: 1}, {Rank: 5, Suit: 2}, {Rank: 5, Suit: 3}},
			expected: true,
		},
		{
			name:     "Quad does not chop pair of 2s",
			last:     []Card{{Rank: 15, Suit: 0}, {Rank: 15, Suit: 1}},
			play:     []Card{{Rank: 5, Suit: 0}, {Rank: 5, Suit: 1}, {Rank: 5, Suit: 2}, {Rank: 5, Suit: 3}},
			expected: false,
		},
		{
			name:     "Three-pair bomb chops single 2",
			last:     []Card{{Rank: 15, Suit: 0}},
			play:     pairs(3, 3),
			expected: true,
		},
		{
			name:     "Three-pair bomb does not chop pair of 2s",
			last:     []Card{{Rank: 15, Suit: 0}, {Rank: 15, Suit: 1}},
			play:     pairs(3, 3),
			expected: false,
		},
		{
			name:     "Four-pair bomb chops pair of 2s",
			last:     []Card{{Rank: 15, Suit: 0}, {Rank: 15, Suit: 1}},
			play:     pairs(3, 4),
			expected: true,
		},
		{
			name:     "Five-pair bomb chops triple of 2s",
			last:     []Card{{Rank: 15, Suit: 0}, {Rank: 15, Suit: 1}, {Rank: 15, Suit: 2}},
			play:     pairs(3, 5),
			expected: true,
		},
		{
			name:     "Four-pair bomb does not chop triple of 2s",
			last:     []Card{{Rank: 15, Suit: 0}, {Rank: 15, Suit: 1}, {Rank: 15, Suit: 2}},
			play:     pairs(3, 4),
			expected: false,
		},
		{
			name:     "Higher bomb beats bomb of same length",
			last:     pairs(3, 3),
			play:     pairs(4, 3),
			expected: true,
		},
		{
			name:     "Longer bomb cannot answer shorter bomb",
			last:     pairs(3, 3),
			play:     pairs(4, 4),
			expected: false,
		},
		{
			name:     "Higher run beats run of same length",
			last:     []Card{{Rank: 3, Suit: 0}, {Rank: 4, Suit: 1}, {Rank: 5, Suit: 2}},
			play:     []Card{{Rank: 4, Suit: 0}, {Rank: 5, Suit: 1}, {Rank: 6, Suit: 2}},
			expected: true,
		},
		{
			name:     "Longer run cannot answer shorter run",
			last:     []Card{{Rank: 3, Suit: 0}, {Rank: 4, Suit: 1}, {Rank: 5, Suit: 2}},
			play:     []Card{{Rank: 4, Suit: 0}, {Rank: 5, Suit: 1}, {Rank: 6, Suit: 2}, {Rank: 7, Suit: 3}},
			expected: false,
		},
		{
			name:     "Unsuited run cannot answer suited run",
			last:     []Card{{Rank: 3, Suit: 2}, {Rank: 4, Suit: 2}, {Rank: 5, Suit: 2}},
			play:     []Card{{Rank: 6, Suit: 0}, {Rank: 7, Suit: 1}, {Rank: 8, Suit: 2}},
			expected: false,
		},
		{
			name:     "Suited run beats suited run",
			last:     []Card{{Rank: 3, Suit: 2}, {Rank: 4, Suit: 2}, {Rank: 5, Suit: 2}},
			play:     []Card{{Rank: 6, Suit: 1}, {Rank: 7, Suit: 1}, {Rank: 8, Suit: 1}},
			expected: true,
		},
		{
			name:     "Suited run beats unsuited run",
			last:     []Card{{Rank: 3, Suit: 2}, {Rank: 4, Suit: 1}, {Rank: 5, Suit: 2}},
			play:     []Card{{Rank: 6, Suit: 1}, {Rank: 7, Suit: 1}, {Rank: 8, Suit: 1}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanBeatPlay(DeterminePlay(tt.play), DeterminePlay(tt.last))
			if got != tt.expected {
				t.Errorf("CanBeatPlay = %v, want %v", got, tt.expected)
			}
		})
	}
}
