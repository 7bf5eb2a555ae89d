package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"thirteen/internal/auth"
	"thirteen/internal/bot"
	"thirteen/internal/domain"
	"thirteen/internal/store"
	"thirteen/internal/tourney"
)

// casRetries bounds the load-mutate-save retry loop on version conflicts.
const casRetries = 3

// errNoop tells updateTourney the mutation changed nothing and the
// snapshot must not be re-persisted.
var errNoop = errors.New("no changes")

// Dispatcher routes client frames into tournament and game mutations.
// Every message is handled as an independent load-mutate-save transaction
// against the stores, so concurrent workers serialize through the
// tournament record's version instead of shared memory.
type Dispatcher struct {
	log      *log.Logger
	conns    store.ConnectionStore
	tourneys store.TourneyStore
	sender   Sender
	clock    quartz.Clock

	rngMu sync.Mutex
	rng   *rand.Rand

	targetScore int
	grace       time.Duration
	connTTL     time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the wall clock (used by tests).
func WithClock(clock quartz.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = clock }
}

// WithRand overrides the shuffle RNG (used by tests).
func WithRand(rng *rand.Rand) DispatcherOption {
	return func(d *Dispatcher) { d.rng = rng }
}

// WithTargetScore overrides the target score for fresh tournaments.
func WithTargetScore(score int) DispatcherOption {
	return func(d *Dispatcher) { d.targetScore = score }
}

// WithGrace overrides the disconnect grace period.
func WithGrace(grace time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.grace = grace }
}

// WithConnectionTTL overrides how long connection records live in the
// registry without reconnecting.
func WithConnectionTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.connTTL = ttl }
}

// NewDispatcher wires a dispatcher to its collaborators.
func NewDispatcher(logger *log.Logger, conns store.ConnectionStore, tourneys store.TourneyStore, sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		log:         logger.WithPrefix("dispatch"),
		conns:       conns,
		tourneys:    tourneys,
		sender:      sender,
		clock:       quartz.NewReal(),
		targetScore: tourney.DefaultTargetScore,
		grace:       tourney.DefaultGrace,
		connTTL:     store.ConnectionTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return d
}

// HandleConnect registers a fresh connection in the registry.
func (d *Dispatcher) HandleConnect(ctx context.Context, connectionID string, id auth.Identity) error {
	now := d.clock.Now().Unix()
	return d.conns.Put(ctx, store.Connection{
		ConnectionID: connectionID,
		PlayerID:     id.PlayerID,
		PlayerName:   id.PlayerName,
		ConnectedAt:  now,
		LastPing:     now,
		TTL:          now + int64(d.connTTL/time.Second),
	})
}

// HandleDisconnect drops the connection record and stamps the player's
// seat with the disconnect time while the tournament is still forming.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, connectionID string) {
	conn, err := d.conns.Get(ctx, connectionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Error("disconnect lookup failed", "connection", connectionID, "err", err)
		}
		return
	}
	if err := d.conns.Delete(ctx, connectionID); err != nil {
		d.log.Error("disconnect delete failed", "connection", connectionID, "err", err)
	}

	// No tournament, nothing to stamp.
	if _, _, err := d.tourneys.Get(ctx, tourney.GlobalID); err != nil {
		return
	}

	_, err = d.updateTourney(ctx, func(t *tourney.Tourney) error {
		if !t.MarkDisconnected(conn.PlayerID, d.clock.Now()) {
			return errNoop
		}
		return nil
	})
	if err != nil {
		d.log.Error("disconnect seat update failed", "player", conn.PlayerID, "err", err)
	}
}

// HandleFrame processes one raw client frame.
func (d *Dispatcher) HandleFrame(ctx context.Context, connectionID string, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.sendError(connectionID, CodeInvalidJSON, "Invalid JSON in message body")
		return
	}

	d.log.Debug("frame received", "action", frame.Action, "connection", connectionID)

	// Heartbeats and debug resets do not need a resolved player.
	switch frame.Action {
	case ActionPing:
		d.handlePing(ctx, connectionID, frame.Payload)
		return
	case ActionReset:
		d.handleReset(ctx, connectionID)
		return
	}

	conn, err := d.conns.Get(ctx, connectionID)
	if err != nil {
		d.sendError(connectionID, CodeUnauthorized, "Connection not found")
		return
	}

	switch frame.Action {
	case ActionInfo:
		d.handleInfo(ctx, conn)
	case ActionClaimSeat:
		d.handleClaimSeat(ctx, conn, frame.Payload)
	case ActionLeave:
		d.handleLeave(ctx, conn)
	case ActionReady:
		d.handleReady(ctx, conn)
	case ActionAddBot:
		d.handleAddBot(ctx, conn, frame.Payload)
	case ActionKickBot:
		d.handleKickBot(ctx, conn, frame.Payload)
	case ActionPlay:
		d.handlePlay(ctx, conn, frame.Payload)
	case ActionPass:
		d.handlePass(ctx, conn)
	case ActionQuickStart:
		d.handleQuickStart(ctx, conn, frame.Payload)
	default:
		d.sendError(connectionID, CodeUnknownAction, fmt.Sprintf("Unknown action: %s", frame.Action))
	}
}

func (d *Dispatcher) handlePing(ctx context.Context, connectionID string, payload json.RawMessage) {
	var ping PingPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &ping); err != nil {
			d.sendError(connectionID, CodeInvalidJSON, "Invalid ping payload")
			return
		}
	}
	if err := d.conns.Touch(ctx, connectionID, ping.Timestamp); err != nil && !errors.Is(err, store.ErrNotFound) {
		d.log.Error("ping touch failed", "connection", connectionID, "err", err)
	}
	d.send(connectionID, Message{Type: TypePong, Payload: PongPayload{Timestamp: ping.Timestamp}})
}

func (d *Dispatcher) handleInfo(ctx context.Context, conn store.Connection) {
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		if !t.CleanupDisconnected(d.clock.Now(), d.grace) {
			return errNoop
		}
		return nil
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to get tournament info")
		return
	}
	d.send(conn.ConnectionID, Message{Type: TypeTourneyUpdated, Payload: t.ToClientState()})
}

func (d *Dispatcher) handleClaimSeat(ctx context.Context, conn store.Connection, payload json.RawMessage) {
	var req SeatPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendError(conn.ConnectionID, CodeInvalidJSON, "Invalid claim payload")
			return
		}
	}

	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		t.CleanupDisconnected(d.clock.Now(), d.grace)
		_, err := t.ClaimSeat(conn.PlayerID, conn.PlayerName, conn.ConnectionID, req.SeatPosition)
		return err
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to claim seat")
		return
	}
	d.broadcastTourney(ctx, t)
}

func (d *Dispatcher) handleLeave(ctx context.Context, conn store.Connection) {
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		return t.Leave(conn.PlayerID)
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to leave")
		return
	}
	d.broadcastTourney(ctx, t)
}

func (d *Dispatcher) handleReady(ctx context.Context, conn store.Connection) {
	var started *gameFlow
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		started = nil
		if err := t.SetReady(conn.PlayerID, true); err != nil {
			return err
		}
		if t.Status == tourney.StatusInProgress && t.CurrentGame == nil {
			flow, err := d.startGame(t)
			if err != nil {
				return err
			}
			started = flow
		}
		return nil
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to ready up")
		return
	}

	d.broadcastTourney(ctx, t)
	if started != nil {
		d.broadcastGameFlow(t, started)
	}
}

func (d *Dispatcher) handleAddBot(ctx context.Context, conn store.Connection, payload json.RawMessage) {
	var req SeatPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendError(conn.ConnectionID, CodeInvalidJSON, "Invalid add_bot payload")
			return
		}
	}
	if req.SeatPosition == nil {
		d.sendError(conn.ConnectionID, CodeMissingSeatPosition, "seatPosition is required")
		return
	}

	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		return t.AddBot(*req.SeatPosition, req.BotProfile)
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to add bot")
		return
	}
	d.broadcastTourney(ctx, t)
}

func (d *Dispatcher) handleKickBot(ctx context.Context, conn store.Connection, payload json.RawMessage) {
	var req SeatPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendError(conn.ConnectionID, CodeInvalidJSON, "Invalid kick_bot payload")
			return
		}
	}
	if req.SeatPosition == nil {
		d.sendError(conn.ConnectionID, CodeMissingSeatPosition, "seatPosition is required")
		return
	}

	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		return t.KickBot(*req.SeatPosition)
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to kick bot")
		return
	}
	d.broadcastTourney(ctx, t)
}

func (d *Dispatcher) handlePlay(ctx context.Context, conn store.Connection, payload json.RawMessage) {
	var req PlayPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendError(conn.ConnectionID, CodeInvalidJSON, "Invalid play payload")
			return
		}
	}

	var flow *gameFlow
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		if t.Status != tourney.StatusInProgress || t.CurrentGame == nil {
			return errNoActiveGame
		}
		seat := t.SeatByPlayer(conn.PlayerID)
		if seat == nil {
			return tourney.ErrNotInTourney
		}
		if err := t.CurrentGame.PlayCards(seat.Position, req.Cards); err != nil {
			return err
		}
		var err error
		flow, err = d.finishMove(t)
		return err
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to play cards")
		return
	}
	d.broadcastGameFlow(t, flow)
}

func (d *Dispatcher) handlePass(ctx context.Context, conn store.Connection) {
	var flow *gameFlow
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		if t.Status != tourney.StatusInProgress || t.CurrentGame == nil {
			return errNoActiveGame
		}
		seat := t.SeatByPlayer(conn.PlayerID)
		if seat == nil {
			return tourney.ErrNotInTourney
		}
		if err := t.CurrentGame.PassTurn(seat.Position); err != nil {
			return err
		}
		var err error
		flow, err = d.finishMove(t)
		return err
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to pass")
		return
	}
	d.broadcastGameFlow(t, flow)
}

func (d *Dispatcher) handleReset(ctx context.Context, connectionID string) {
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		*t = *d.newTourney()
		return nil
	})
	if err != nil {
		d.fail(connectionID, err, "Failed to reset")
		return
	}
	d.log.Info("tournament reset")
	d.broadcastTourney(ctx, t)
	d.send(connectionID, Message{Type: TypeDebugReset, Payload: DebugResetPayload{Message: "Tourney reset"}})
}

func (d *Dispatcher) handleQuickStart(ctx context.Context, conn store.Connection, payload json.RawMessage) {
	var req SeatPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendError(conn.ConnectionID, CodeInvalidJSON, "Invalid quick_start payload")
			return
		}
	}
	seatPosition := 0
	if req.SeatPosition != nil {
		seatPosition = *req.SeatPosition
	}

	var flow *gameFlow
	t, err := d.updateTourney(ctx, func(t *tourney.Tourney) error {
		*t = *d.newTourney()
		if _, err := t.ClaimSeat(conn.PlayerID, conn.PlayerName, conn.ConnectionID, &seatPosition); err != nil {
			return err
		}
		for i := 0; i < tourney.SeatCount; i++ {
			if !t.Seats[i].Occupied() {
				if err := t.AddBot(i, ""); err != nil {
					return err
				}
			}
		}
		if err := t.SetReady(conn.PlayerID, true); err != nil {
			return err
		}
		var err error
		flow, err = d.startGame(t)
		return err
	})
	if err != nil {
		d.fail(conn.ConnectionID, err, "Failed to quick start")
		return
	}

	d.log.Info("quick start", "player", conn.PlayerName, "seat", seatPosition)
	d.broadcastTourney(ctx, t)
	d.broadcastGameFlow(t, flow)
}

// gameFlow captures what happened to the game inside one mutation so the
// right broadcasts can be sent after the snapshot is persisted.
type gameFlow struct {
	started  bool
	game     *domain.Game
	botMoves []bot.BotMove
	gameOver bool
	winOrder []int
	complete bool
}

// startGame deals the next game and runs the bot driver in case a bot
// holds the opening turn.
func (d *Dispatcher) startGame(t *tourney.Tourney) (*gameFlow, error) {
	d.rngMu.Lock()
	game, err := t.StartGame(d.rng)
	d.rngMu.Unlock()
	if err != nil {
		return nil, err
	}

	flow, err := d.finishMove(t)
	if err != nil {
		return nil, err
	}
	flow.started = true
	flow.game = game
	return flow, nil
}

// finishMove runs the bot driver and, when the game has ended, completes
// it on the tournament. Called inside the mutation so the whole burst
// commits atomically with the triggering move.
func (d *Dispatcher) finishMove(t *tourney.Tourney) (*gameFlow, error) {
	game := t.CurrentGame
	flow := &gameFlow{game: game}

	if !game.IsGameOver() {
		flow.botMoves = bot.RunBots(t, game)
	}

	if game.IsGameOver() {
		if last := game.LastActivePlayer(); last >= 0 {
			game.WinOrder = append(game.WinOrder, last)
		}
		flow.gameOver = true
		flow.winOrder = append([]int(nil), game.WinOrder...)

		complete, err := t.CompleteGame(flow.winOrder, d.clock.Now())
		if err != nil {
			return nil, err
		}
		flow.complete = complete
	}
	return flow, nil
}

func (d *Dispatcher) newTourney() *tourney.Tourney {
	t := tourney.New()
	t.TargetScore = d.targetScore
	return t
}

// updateTourney runs one load-mutate-save transaction with optimistic
// retries. A rule violation from mutate aborts without persisting; errNoop
// commits nothing but still returns the loaded snapshot.
func (d *Dispatcher) updateTourney(ctx context.Context, mutate func(*tourney.Tourney) error) (*tourney.Tourney, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		t, version, err := d.loadOrCreate(ctx)
		if err != nil {
			return nil, err
		}

		if err := mutate(t); err != nil {
			if errors.Is(err, errNoop) {
				return t, nil
			}
			return nil, err
		}

		if _, err := d.tourneys.Put(ctx, t, version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				d.log.Debug("version conflict, retrying", "attempt", attempt+1)
				continue
			}
			return nil, err
		}
		return t, nil
	}
	return nil, store.ErrVersionConflict
}

func (d *Dispatcher) loadOrCreate(ctx context.Context) (*tourney.Tourney, int64, error) {
	t, version, err := d.tourneys.Get(ctx, tourney.GlobalID)
	if err == nil {
		return t, version, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, 0, err
	}

	fresh := d.newTourney()
	version, err = d.tourneys.Put(ctx, fresh, 0)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Lost the creation race; use the winner's record.
			return d.tourneys.Get(ctx, tourney.GlobalID)
		}
		return nil, 0, err
	}
	return fresh, version, nil
}

// fail answers a rule violation with its wire code, anything else with an
// internal error.
func (d *Dispatcher) fail(connectionID string, err error, msg string) {
	if code := ruleCode(err); code != "" {
		d.sendError(connectionID, code, fmt.Sprintf("%s: %s", msg, code))
		return
	}
	d.log.Error(msg, "err", err)
	d.sendError(connectionID, CodeInternalError, msg)
}
