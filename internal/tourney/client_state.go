package tourney

import "sort"

// SeatState is the public view of a seat.
type SeatState struct {
	Position   int    `json:"position"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	GamesWon   int    `json:"gamesWon"`
	Ready      bool   `json:"ready"`
	IsBot      bool   `json:"isBot"`
}

// ClientState is the public tournament state broadcast to clients. Hands
// and connection ids never appear here.
type ClientState struct {
	Status            Status               `json:"status"`
	Seats             [SeatCount]SeatState `json:"seats"`
	TargetScore       int                  `json:"targetScore"`
	CurrentGameNumber int                  `json:"currentGameNumber"`
	ReadyCount        int                  `json:"readyCount"`
}

// ToClientState builds the public view of the tournament.
func (t *Tourney) ToClientState() ClientState {
	state := ClientState{
		Status:            t.Status,
		TargetScore:       t.TargetScore,
		CurrentGameNumber: t.CurrentGameNumber(),
		ReadyCount:        t.ReadyCount(),
	}
	for i := range t.Seats {
		seat := &t.Seats[i]
		state.Seats[i] = SeatState{
			Position:   seat.Position,
			PlayerName: seat.PlayerName,
			Score:      seat.Score,
			GamesWon:   seat.GamesWon,
			Ready:      seat.Ready,
			IsBot:      seat.IsBot,
		}
	}
	return state
}

// LeaderboardEntry is one occupied seat's standing.
type LeaderboardEntry struct {
	Position       int    `json:"position"`
	PlayerName     string `json:"playerName"`
	TotalScore     int    `json:"totalScore"`
	LastGamePoints int    `json:"lastGamePoints"`
	GamesWon       int    `json:"gamesWon"`
}

// Leaderboard returns occupied seats sorted by score descending.
func (t *Tourney) Leaderboard() []LeaderboardEntry {
	board := make([]LeaderboardEntry, 0, SeatCount)
	for i := range t.Seats {
		seat := &t.Seats[i]
		if !seat.Occupied() {
			continue
		}
		board = append(board, LeaderboardEntry{
			Position:       seat.Position,
			PlayerName:     seat.PlayerName,
			TotalScore:     seat.Score,
			LastGamePoints: seat.LastGamePoints,
			GamesWon:       seat.GamesWon,
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].TotalScore > board[j].TotalScore
	})
	return board
}
