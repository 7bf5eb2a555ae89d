package server

import (
	"context"
	"errors"

	"thirteen/internal/domain"
	"thirteen/internal/tourney"
)

// ErrConnectionGone marks a send whose recipient has disappeared. Such
// sends are dropped silently; the stale registry record ages out via TTL.
var ErrConnectionGone = errors.New("connection gone")

// Sender delivers a message to a single connection.
type Sender interface {
	Send(connectionID string, msg Message) error
}

// send delivers one message, logging every failure except gone peers.
func (d *Dispatcher) send(connectionID string, msg Message) {
	if connectionID == "" {
		return
	}
	if err := d.sender.Send(connectionID, msg); err != nil && !errors.Is(err, ErrConnectionGone) {
		d.log.Error("send failed", "connection", connectionID, "type", msg.Type, "err", err)
	}
}

func (d *Dispatcher) sendError(connectionID, code, message string) {
	d.send(connectionID, Message{Type: TypeError, Payload: ErrorPayload{Code: code, Message: message}})
}

// broadcastTourney fans the public tournament state out to every seated
// connection and everything else in the registry, spectators included.
func (d *Dispatcher) broadcastTourney(ctx context.Context, t *tourney.Tourney) {
	msg := Message{Type: TypeTourneyUpdated, Payload: t.ToClientState()}

	targets := make(map[string]bool)
	for i := range t.Seats {
		if t.Seats[i].Occupied() && t.Seats[i].ConnectionID != "" {
			targets[t.Seats[i].ConnectionID] = true
		}
	}
	conns, err := d.conns.List(ctx)
	if err != nil {
		d.log.Error("connection scan failed", "err", err)
	}
	for _, conn := range conns {
		targets[conn.ConnectionID] = true
	}

	for connectionID := range targets {
		d.send(connectionID, msg)
	}
}

// broadcastGameFlow sends the messages a finished mutation calls for:
// per-seat starts, the post-burst state, or the game-over notice.
func (d *Dispatcher) broadcastGameFlow(t *tourney.Tourney, flow *gameFlow) {
	if flow == nil {
		return
	}
	if flow.started {
		d.broadcastGameStarted(t, flow.game)
	}
	switch {
	case flow.gameOver:
		d.broadcastGameOver(t, flow)
	case !flow.started || len(flow.botMoves) > 0:
		// A burst of bot moves collapses into one update carrying the
		// final state.
		d.broadcastGameUpdate(t, flow.game)
	}
}

// broadcastGameStarted sends each seat a private payload with its hand.
func (d *Dispatcher) broadcastGameStarted(t *tourney.Tourney, game *domain.Game) {
	players := make([]string, tourney.SeatCount)
	for i := range t.Seats {
		players[i] = t.Seats[i].PlayerName
	}

	for i := range t.Seats {
		seat := &t.Seats[i]
		if !seat.Occupied() || seat.ConnectionID == "" {
			continue
		}
		d.send(seat.ConnectionID, Message{Type: TypeGameStarted, Payload: GameStartedPayload{
			YourPosition:  i,
			YourHand:      game.Hands[i],
			CurrentPlayer: game.CurrentPlayer,
			Players:       players,
		}})
	}
}

// broadcastGameUpdate sends each seat the shared state plus its own hand.
func (d *Dispatcher) broadcastGameUpdate(t *tourney.Tourney, game *domain.Game) {
	for i := range t.Seats {
		seat := &t.Seats[i]
		if !seat.Occupied() || seat.ConnectionID == "" {
			continue
		}
		d.send(seat.ConnectionID, Message{Type: TypeGameUpdated, Payload: GameUpdatedPayload{
			CurrentPlayer: game.CurrentPlayer,
			LastPlay:      game.LastPlay,
			PassedPlayers: game.PassedPlayers,
			HandCounts:    game.HandCounts(),
			YourHand:      game.Hands[i],
		}})
	}
}

// broadcastGameOver sends the standings to every occupied seat.
func (d *Dispatcher) broadcastGameOver(t *tourney.Tourney, flow *gameFlow) {
	payload := GameOverPayload{
		WinOrder:        flow.winOrder,
		PointsAwarded:   tourney.PointsAwarded,
		Leaderboard:     t.Leaderboard(),
		TourneyComplete: flow.complete,
	}
	if flow.complete {
		winner := t.WinnerPosition()
		payload.Winner = &winner
	}

	msg := Message{Type: TypeGameOver, Payload: payload}
	for i := range t.Seats {
		seat := &t.Seats[i]
		if seat.Occupied() && seat.ConnectionID != "" {
			d.send(seat.ConnectionID, msg)
		}
	}
}
