package domain

import (
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func newTestGame() *Game {
	return NewGame([SeatCount]string{"p0", "p1", "p2", "p3"})
}

func TestDealConservesDeck(t *testing.T) {
	g := newTestGame()
	start := g.Deal(rand.New(rand.NewSource(7)))

	seen := make(map[int32]bool)
	for i, hand := range g.Hands {
		if len(hand) != HandSize {
			t.Fatalf("hand %d size = %d, want %d", i, len(hand), HandSize)
		}
		for j, c := range hand {
			if seen[c.Value()] {
				t.Fatalf("duplicate card %v", c)
			}
			seen[c.Value()] = true
			if j > 0 && hand[j-1].Value() > c.Value() {
				t.Fatalf("hand %d not sorted at %d", i, j)
			}
		}
	}
	if len(seen) != 52 {
		t.Fatalf("dealt %d distinct cards, want 52", len(seen))
	}

	// Starter must hold the 3 of spades.
	holds := false
	for _, c := range g.Hands[start] {
		if c.Rank == RankLow && c.Suit == SuitSpades {
			holds = true
		}
	}
	if !holds {
		t.Fatalf("starting player %d does not hold 3♠", start)
	}
	if g.CurrentPlayer != start {
		t.Fatalf("current player = %d, want %d", g.CurrentPlayer, start)
	}
	if g.LastPlay != nil {
		t.Fatal("fresh deal should leave power open")
	}
}

// rig sets up a mid-game state directly.
func rig(hands [SeatCount][]Card, current int) *Game {
	g := newTestGame()
	for i := range hands {
		SortHand(hands[i])
		g.Hands[i] = hands[i]
	}
	g.CurrentPlayer = current
	g.WinOrder = []int{}
	g.MoveHistory = []Move{}
	return g
}

func TestCanPlayErrors(t *testing.T) {
	g := rig([SeatCount][]Card{
		{{Rank: 3, Suit: 0}, {Rank: 3, Suit: 1}, {Rank: 4, Suit: 0}, {Rank: 4, Suit: 1}, {Rank: 5, Suit: 0}, {Rank: 5, Suit: 1}},
		{{Rank: 9, Suit: 0}},
		{{Rank: 10, Suit: 0}},
		{{Rank: 11, Suit: 0}},
	}, 0)

	if err := g.CanPlay(1, []Card{{Rank: 9, Suit: 0}}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out-of-turn play error = %v, want %v", err, ErrNotYourTurn)
	}
	if err := g.CanPlay(0, []Card{{Rank: 3, Suit: 0}, {Rank: 4, Suit: 0}}); !errors.Is(err, ErrInvalidCombo) {
		t.Fatalf("invalid combo error = %v, want %v", err, ErrInvalidCombo)
	}
	if err := g.CanPlay(0, g.Hands[0]); !errors.Is(err, ErrCantOpenWithBomb) {
		t.Fatalf("bomb opening error = %v, want %v", err, ErrCantOpenWithBomb)
	}
	if err := g.CanPlay(0, []Card{{Rank: 3, Suit: 0}}); err != nil {
		t.Fatalf("single opening error = %v, want nil", err)
	}

	// Once a play is on the table, weaker plays are rejected.
	if err := g.PlayCards(0, []Card{{Rank: 5, Suit: 1}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if err := g.CanPlay(1, []Card{{Rank: 9, Suit: 0}}); err != nil {
		t.Fatalf("beating single error = %v, want nil", err)
	}
	g.CurrentPlayer = 0
	if err := g.CanPlay(0, []Card{{Rank: 4, Suit: 0}}); !errors.Is(err, ErrCantBeatLastPlay) {
		t.Fatalf("weak play error = %v, want %v", err, ErrCantBeatLastPlay)
	}
}

func TestPlayCardsRemovesAndRecords(t *testing.T) {
	g := rig([SeatCount][]Card{
		{{Rank: 3, Suit: 0}, {Rank: 6, Suit: 2}},
		{{Rank: 9, Suit: 0}},
		{{Rank: 10, Suit: 0}},
		{{Rank: 11, Suit: 0}},
	}, 0)

	if err := g.PlayCards(0, []Card{{Rank: 3, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if len(g.Hands[0]) != 1 || g.Hands[0][0].Rank != 6 {
		t.Fatalf("hand after play = %v", g.Hands[0])
	}
	if g.LastPlay == nil || g.LastPlay.Combo != ComboSingle {
		t.Fatalf("last play = %+v", g.LastPlay)
	}
	if g.CurrentPlayer != 1 {
		t.Fatalf("current player = %d, want 1", g.CurrentPlayer)
	}
	if len(g.MoveHistory) != 1 || g.MoveHistory[0].Action != ActionPlay || g.MoveHistory[0].PlayerPos != 0 {
		t.Fatalf("move history = %+v", g.MoveHistory)
	}
}

func TestPassTurnErrors(t *testing.T) {
	g := rig([SeatCount][]Card{
		{{Rank: 3, Suit: 0}},
		{{Rank: 9, Suit: 0}},
		{{Rank: 10, Suit: 0}},
		{{Rank: 11, Suit: 0}},
	}, 0)

	if err := g.PassTurn(1); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out-of-turn pass error = %v, want %v", err, ErrNotYourTurn)
	}
	if err := g.PassTurn(0); !errors.Is(err, ErrCantPass) {
		t.Fatalf("pass with power error = %v, want %v", err, ErrCantPass)
	}
}

func TestPowerTransferAfterAllPass(t *testing.T) {
	g := rig([SeatCount][]Card{
		{{Rank: 13, Suit: 0}, {Rank: 3, Suit: 1}},
		{{Rank: 9, Suit: 0}},
		{{Rank: 10, Suit: 0}},
		{{Rank: 11, Suit: 0}},
	}, 0)

	// A plays K♠; B, C and D pass; power returns to A.
	if err := g.PlayCards(0, []Card{{Rank: 13, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	for _, pos := range []int{1, 2, 3} {
		if err := g.PassTurn(pos); err != nil {
			t.Fatalf("pass %d error: %v", pos, err)
		}
	}

	if g.CurrentPlayer != 0 {
		t.Fatalf("current player = %d, want 0", g.CurrentPlayer)
	}
	if g.LastPlay != nil {
		t.Fatal("power transfer should clear last play")
	}
	if g.PassedPlayers != [SeatCount]bool{} {
		t.Fatalf("passed players = %v, want all false", g.PassedPlayers)
	}
}

func TestWinOrderAndGameOver(t *testing.T) {
	g := rig([SeatCount][]Card{
		{{Rank: 6, Suit: 0}},
		{{Rank: 7, Suit: 0}},
		{{Rank: 8, Suit: 0}},
		{{Rank: 9, Suit: 0}, {Rank: 10, Suit: 0}},
	}, 0)

	if err := g.PlayCards(0, []Card{{Rank: 6, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if err := g.PlayCards(1, []Card{{Rank: 7, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if err := g.PlayCards(2, []Card{{Rank: 8, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}

	if !g.IsGameOver() {
		t.Fatal("game should be over after three finishers")
	}
	if !reflect.DeepEqual(g.WinOrder, []int{0, 1, 2}) {
		t.Fatalf("win order = %v", g.WinOrder)
	}
	if g.LastActivePlayer() != 3 {
		t.Fatalf("last active = %d, want 3", g.LastActivePlayer())
	}
}

func TestFinishedPlayersAreSkipped(t *testing.T) {
	g := rig([SeatCount][]Card{
		{{Rank: 6, Suit: 0}},
		{{Rank: 7, Suit: 0}, {Rank: 8, Suit: 0}},
		{{Rank: 9, Suit: 0}, {Rank: 10, Suit: 0}},
		{{Rank: 11, Suit: 0}, {Rank: 12, Suit: 0}},
	}, 0)

	if err := g.PlayCards(0, []Card{{Rank: 6, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if err := g.PlayCards(1, []Card{{Rank: 7, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if err := g.PlayCards(2, []Card{{Rank: 9, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if err := g.PlayCards(3, []Card{{Rank: 11, Suit: 0}}); err != nil {
		t.Fatalf("play error: %v", err)
	}

	// Seat 0 finished: turn must cycle 3 -> 1, never back to 0.
	if g.CurrentPlayer != 1 {
		t.Fatalf("current player = %d, want 1", g.CurrentPlayer)
	}
}

func TestGameRoundTrip(t *testing.T) {
	g := newTestGame()
	g.Deal(rand.New(rand.NewSource(11)))
	pos := g.CurrentPlayer
	low := g.Hands[pos][0]
	if err := g.PlayCards(pos, []Card{low}); err != nil {
		t.Fatalf("play error: %v", err)
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var back Game
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !reflect.DeepEqual(g, &back) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", g, &back)
	}
}
