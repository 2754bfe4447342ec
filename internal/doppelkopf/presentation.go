package doppelkopf

// ClientState is the personalized view of a game for one player. It
// carries only the viewer's own hand; opponents are reduced to hand
// counts so a room broadcast can never leak cards.
type ClientState struct {
	GameID          string         `json:"gameId"`
	Phase           Phase          `json:"phase"`
	Settings        GameSettings   `json:"settings"`
	Players         []SeatState    `json:"players"`
	Hand            []Card         `json:"hand"`
	CurrentTrick    []PlayedCard   `json:"currentTrick"`
	CurrentPlayerID string         `json:"currentPlayer"`
	Scores          map[string]int `json:"scores"`
	TricksPlayed    int            `json:"tricksPlayed"`
}

type SeatState struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seat      int    `json:"seat"`
	HandCount int    `json:"handCount"`
	IsYou     bool   `json:"isYou"`
}

// Summary is the joinable-session listing entry for the lobby.
type Summary struct {
	ID        string       `json:"id"`
	Settings  GameSettings `json:"settings"`
	Players   []Player     `json:"players"`
	CreatedBy string       `json:"createdBy"`
}

func (g *Game) ClientState(playerID string) *ClientState {
	g.mu.Lock()
	defer g.mu.Unlock()

	seats := make([]SeatState, 0, len(g.players))
	for _, p := range g.players {
		seats = append(seats, SeatState{
			ID:        p.ID,
			Name:      p.Name,
			Seat:      p.Seat,
			HandCount: len(g.hands[p.ID]),
			IsYou:     p.ID == playerID,
		})
	}

	scores := make(map[string]int, len(g.scores))
	for id, tricks := range g.scores {
		scores[id] = tricks
	}

	var currentPlayerID string
	if g.phase == PhaseTrickPlay && len(g.players) > 0 {
		currentPlayerID = g.players[g.currentPlayerIndex].ID
	}

	return &ClientState{
		GameID:          g.id,
		Phase:           g.phase,
		Settings:        g.settings,
		Players:         seats,
		Hand:            append([]Card(nil), g.hands[playerID]...),
		CurrentTrick:    append([]PlayedCard(nil), g.currentTrick...),
		CurrentPlayerID: currentPlayerID,
		Scores:          scores,
		TricksPlayed:    len(g.trickHistory),
	}
}

func (g *Game) Summary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Summary{
		ID:        g.id,
		Settings:  g.settings,
		Players:   append([]Player(nil), g.players...),
		CreatedBy: g.createdBy,
	}
}

// Joinable reports whether the lobby listing should offer this game.
func (g *Game) Joinable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseLobby && len(g.players) < maxSeats
}
