package domain

import (
	"encoding/json"
	"strconv"
)

// Suit constants in Tien Len order: spades lowest, hearts highest.
const (
	SuitSpades int32 = iota
	SuitClubs
	SuitDiamonds
	SuitHearts
)

// Rank bounds. Ranks run 3..15 with J=11, Q=12, K=13, A=14 and 2=15,
// so the 2 is the highest rank in the deck.
const (
	RankLow int32 = 3
	RankTwo int32 = 15
)

// Card is a single playing card.
type Card struct {
	Rank int32 // 3..15
	Suit int32 // 0..3
}

// Value returns the absolute ordering key of a card (Rank*4 + Suit).
// The 3 of spades is the deck minimum.
func (c Card) Value() int32 {
	return c.Rank*4 + c.Suit
}

var rankNames = map[int32]string{11: "J", 12: "Q", 13: "K", 14: "A", 15: "2"}
var suitNames = [4]string{"♠", "♣", "♦", "♥"}

func (c Card) String() string {
	name, ok := rankNames[c.Rank]
	if !ok {
		name = strconv.Itoa(int(c.Rank))
	}
	if c.Suit < 0 || c.Suit > 3 {
		return name + "?"
	}
	return name + suitNames[c.Suit]
}

// cardJSON is the wire/storage form of a card. Value is redundant but
// clients sort on it, so it is kept in the encoded form.
type cardJSON struct {
	Rank  int32 `json:"rank"`
	Suit  int32 `json:"suit"`
	Value int32 `json:"value"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Rank: c.Rank, Suit: c.Suit, Value: c.Value()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	c.Rank = cj.Rank
	c.Suit = cj.Suit
	return nil
}
