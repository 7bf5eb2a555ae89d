package tourney

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"thirteen/internal/domain"
)

// GlobalID is the reserved id of the single tournament instance.
const GlobalID = "global"

// DefaultTargetScore is the score a seat must reach to end the tournament.
const DefaultTargetScore = 21

// SeatCount is the fixed number of seats in a tournament.
const SeatCount = domain.SeatCount

// DefaultGrace is how long a disconnected player in a pre-game tournament
// keeps their seat.
const DefaultGrace = 5 * time.Second

// Status is the lifecycle stage of the tournament.
type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusStarting     Status = "starting"
	StatusInProgress   Status = "in_progress"
	StatusBetweenGames Status = "between_games"
	StatusCompleted    Status = "completed"
)

// Rule violations surfaced by the tournament operations. The dispatcher
// maps these onto wire error codes.
var (
	ErrInProgress   = errors.New("tournament already in progress")
	ErrFull         = errors.New("tournament is full")
	ErrSeatTaken    = errors.New("seat is taken")
	ErrInvalidSeat  = errors.New("invalid seat position")
	ErrNotInTourney = errors.New("player is not seated")
	ErrInvalidState = errors.New("invalid tournament state for this action")
	ErrSeatEmpty    = errors.New("seat is empty")
	ErrNotABot      = errors.New("seat is not occupied by a bot")
)

// PointsAwarded are the points granted by finishing position.
var PointsAwarded = []int{4, 2, 1, 0}

// Seat is one of the four tournament positions. A zero player id means the
// seat is empty. Older stored records may lack the bot and disconnect
// fields; the zero values are the correct defaults for them.
type Seat struct {
	Position       int    `json:"position"`
	PlayerID       string `json:"playerId,omitempty"`
	PlayerName     string `json:"playerName,omitempty"`
	ConnectionID   string `json:"connectionId,omitempty"`
	Score          int    `json:"score"`
	GamesWon       int    `json:"gamesWon"`
	LastGamePoints int    `json:"lastGamePoints"`
	Ready          bool   `json:"ready"`
	IsBot          bool   `json:"isBot,omitempty"`
	BotProfile     string `json:"botProfile,omitempty"`
	DisconnectedAt int64  `json:"disconnectedAt,omitempty"` // unix seconds, 0 = connected
}

// Occupied reports whether a player or bot holds the seat.
func (s *Seat) Occupied() bool {
	return s.PlayerID != ""
}

// clear resets the seat to its empty state, keeping only the position.
func (s *Seat) clear() {
	*s = Seat{Position: s.Position}
}

// GameRecord is one completed game in the tournament history.
type GameRecord struct {
	GameNumber    int   `json:"gameNumber"`
	WinOrder      []int `json:"winOrder"`
	PointsAwarded []int `json:"pointsAwarded"`
	Timestamp     int64 `json:"timestamp"`
}

// Tourney is the singleton tournament state machine.
type Tourney struct {
	ID          string          `json:"tourneyId"`
	Status      Status          `json:"status"`
	TargetScore int             `json:"targetScore"`
	Seats       [SeatCount]Seat `json:"seats"`
	CurrentGame *domain.Game    `json:"currentGame"`
	GameHistory []GameRecord    `json:"gameHistory"`
}

// New creates an empty waiting tournament.
func New() *Tourney {
	t := &Tourney{
		ID:          GlobalID,
		Status:      StatusWaiting,
		TargetScore: DefaultTargetScore,
		GameHistory: []GameRecord{},
	}
	for i := range t.Seats {
		t.Seats[i].Position = i
	}
	return t
}

// Normalize repairs fields that older stored records may be missing.
func (t *Tourney) Normalize() {
	if t.ID == "" {
		t.ID = GlobalID
	}
	if t.Status == "" {
		t.Status = StatusWaiting
	}
	if t.TargetScore == 0 {
		t.TargetScore = DefaultTargetScore
	}
	if t.GameHistory == nil {
		t.GameHistory = []GameRecord{}
	}
	for i := range t.Seats {
		t.Seats[i].Position = i
	}
}

// SeatByPlayer returns the seat held by the player, or nil.
func (t *Tourney) SeatByPlayer(playerID string) *Seat {
	if playerID == "" {
		return nil
	}
	for i := range t.Seats {
		if t.Seats[i].PlayerID == playerID {
			return &t.Seats[i]
		}
	}
	return nil
}

// OccupiedCount returns the number of occupied seats.
func (t *Tourney) OccupiedCount() int {
	n := 0
	for i := range t.Seats {
		if t.Seats[i].Occupied() {
			n++
		}
	}
	return n
}

// ReadyCount returns the number of occupied seats that are ready.
func (t *Tourney) ReadyCount() int {
	n := 0
	for i := range t.Seats {
		if t.Seats[i].Occupied() && t.Seats[i].Ready {
			n++
		}
	}
	return n
}

// AllReady reports whether every occupied seat is ready. An empty
// tournament is never ready.
func (t *Tourney) AllReady() bool {
	occupied := 0
	for i := range t.Seats {
		if !t.Seats[i].Occupied() {
			continue
		}
		occupied++
		if !t.Seats[i].Ready {
			return false
		}
	}
	return occupied > 0
}

// ClaimSeat seats a player, or refreshes the connection id when the player
// is already seated (reconnection). Returns the claimed position.
func (t *Tourney) ClaimSeat(playerID, playerName, connectionID string, seatPosition *int) (int, error) {
	if t.Status != StatusWaiting && t.Status != StatusStarting {
		return -1, ErrInProgress
	}

	if seat := t.SeatByPlayer(playerID); seat != nil {
		seat.ConnectionID = connectionID
		seat.DisconnectedAt = 0
		return seat.Position, nil
	}

	var seat *Seat
	if seatPosition != nil {
		pos := *seatPosition
		if pos < 0 || pos >= SeatCount {
			return -1, ErrInvalidSeat
		}
		if t.Seats[pos].Occupied() {
			return -1, ErrSeatTaken
		}
		seat = &t.Seats[pos]
	} else {
		for i := range t.Seats {
			if !t.Seats[i].Occupied() {
				seat = &t.Seats[i]
				break
			}
		}
		if seat == nil {
			return -1, ErrFull
		}
	}

	seat.clear()
	seat.PlayerID = playerID
	seat.PlayerName = playerName
	seat.ConnectionID = connectionID

	t.promoteIfFull()
	return seat.Position, nil
}

// Leave vacates the player's seat. Only legal before the tournament has
// begun playing.
func (t *Tourney) Leave(playerID string) error {
	seat := t.SeatByPlayer(playerID)
	if seat == nil {
		return ErrNotInTourney
	}
	if t.Status != StatusWaiting && t.Status != StatusStarting {
		return ErrInProgress
	}

	seat.clear()
	t.demoteIfNotFull()
	return nil
}

// AddBot seats a bot at the given position. Bots carry no connection and
// are always ready.
func (t *Tourney) AddBot(seatPosition int, botProfile string) error {
	if t.Status != StatusWaiting && t.Status != StatusStarting {
		return ErrInProgress
	}
	if seatPosition < 0 || seatPosition >= SeatCount {
		return ErrInvalidSeat
	}
	seat := &t.Seats[seatPosition]
	if seat.Occupied() {
		return ErrSeatTaken
	}

	seat.clear()
	seat.PlayerID = "bot_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	seat.PlayerName = fmt.Sprintf("Bot_%d", seatPosition+1)
	seat.Ready = true
	seat.IsBot = true
	seat.BotProfile = botProfile

	t.promoteIfFull()
	return nil
}

// KickBot vacates a bot seat.
func (t *Tourney) KickBot(seatPosition int) error {
	if t.Status != StatusWaiting && t.Status != StatusStarting {
		return ErrInProgress
	}
	if seatPosition < 0 || seatPosition >= SeatCount {
		return ErrInvalidSeat
	}
	seat := &t.Seats[seatPosition]
	if !seat.Occupied() {
		return ErrSeatEmpty
	}
	if !seat.IsBot {
		return ErrNotABot
	}

	seat.clear()
	t.demoteIfNotFull()
	return nil
}

// SetReady flags the player's readiness. When all four seats are occupied
// and ready the tournament moves to in-progress; the caller is responsible
// for starting the game.
func (t *Tourney) SetReady(playerID string, ready bool) error {
	seat := t.SeatByPlayer(playerID)
	if seat == nil {
		return ErrNotInTourney
	}
	if t.Status != StatusStarting && t.Status != StatusBetweenGames {
		return ErrInvalidState
	}

	seat.Ready = ready

	if t.AllReady() && t.OccupiedCount() == SeatCount {
		t.Status = StatusInProgress
	}
	return nil
}

// StartGame deals a fresh game for the four seated players and stores it
// as the current game. Ready flags are consumed by the start.
func (t *Tourney) StartGame(rng *rand.Rand) (*domain.Game, error) {
	if t.OccupiedCount() != SeatCount {
		return nil, fmt.Errorf("cannot start game with %d/%d seats occupied", t.OccupiedCount(), SeatCount)
	}

	var playerIDs [SeatCount]string
	for i := range t.Seats {
		playerIDs[i] = t.Seats[i].PlayerID
	}

	game := domain.NewGame(playerIDs)
	game.Deal(rng)
	t.CurrentGame = game

	for i := range t.Seats {
		t.Seats[i].Ready = false
	}
	return game, nil
}

// CurrentGameNumber returns the 1-based number of the running game, or the
// count of completed games when none is live.
func (t *Tourney) CurrentGameNumber() int {
	n := len(t.GameHistory)
	if t.CurrentGame != nil {
		n++
	}
	return n
}

// CompleteGame awards points for the finished game, records it in the
// history and transitions to between-games or completed. Returns whether
// the tournament is complete.
func (t *Tourney) CompleteGame(winOrder []int, now time.Time) (bool, error) {
	if t.CurrentGame == nil {
		return false, ErrInvalidState
	}

	for i, pos := range winOrder {
		if pos < 0 || pos >= SeatCount || i >= len(PointsAwarded) {
			return false, fmt.Errorf("bad win order %v", winOrder)
		}
		seat := &t.Seats[pos]
		seat.Score += PointsAwarded[i]
		seat.LastGamePoints = PointsAwarded[i]
		if i == 0 {
			seat.GamesWon++
		}
	}

	t.GameHistory = append(t.GameHistory, GameRecord{
		GameNumber:    len(t.GameHistory) + 1,
		WinOrder:      winOrder,
		PointsAwarded: PointsAwarded,
		Timestamp:     now.Unix(),
	})
	t.CurrentGame = nil

	maxScore := 0
	for i := range t.Seats {
		if t.Seats[i].Score > maxScore {
			maxScore = t.Seats[i].Score
		}
	}

	if maxScore >= t.TargetScore {
		t.Status = StatusCompleted
		return true, nil
	}
	t.Status = StatusBetweenGames
	return false, nil
}

// WinnerPosition returns the seat with the highest score (first on ties).
func (t *Tourney) WinnerPosition() int {
	winner := 0
	for i := 1; i < SeatCount; i++ {
		if t.Seats[i].Score > t.Seats[winner].Score {
			winner = i
		}
	}
	return winner
}

// MarkDisconnected stamps the player's seat with the disconnect time when
// the tournament has not begun playing. In-progress seats are left alone.
func (t *Tourney) MarkDisconnected(playerID string, now time.Time) bool {
	seat := t.SeatByPlayer(playerID)
	if seat == nil {
		return false
	}
	if t.Status != StatusWaiting && t.Status != StatusStarting {
		return false
	}
	seat.DisconnectedAt = now.Unix()
	return true
}

// CleanupDisconnected reclaims seats whose disconnect grace has expired.
// Only applies before the tournament has begun playing. Returns whether
// any seat was cleared.
func (t *Tourney) CleanupDisconnected(now time.Time, grace time.Duration) bool {
	if t.Status != StatusWaiting && t.Status != StatusStarting {
		return false
	}

	removed := false
	for i := range t.Seats {
		seat := &t.Seats[i]
		if !seat.Occupied() || seat.DisconnectedAt == 0 {
			continue
		}
		if now.Unix()-seat.DisconnectedAt >= int64(grace/time.Second) {
			seat.clear()
			removed = true
		}
	}
	if removed {
		t.demoteIfNotFull()
	}
	return removed
}

func (t *Tourney) promoteIfFull() {
	if t.Status == StatusWaiting && t.OccupiedCount() == SeatCount {
		t.Status = StatusStarting
	}
}

func (t *Tourney) demoteIfNotFull() {
	if t.Status == StatusStarting && t.OccupiedCount() < SeatCount {
		t.Status = StatusWaiting
	}
}
