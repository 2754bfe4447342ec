package doppelkopf

import (
	"sync"

	"github.com/google/uuid"
)

// GameSettings is fixed at session creation and immutable thereafter.
// SecondDullBeatsFirstDull is accepted and round-tripped to clients but
// deliberately not wired into card comparison; equal trumps always keep
// the first-played card.
type GameSettings struct {
	PlayWithNine             bool `json:"playWithNine"`
	SecondDullBeatsFirstDull bool `json:"secondDullBeatsFirstDull"`
	WithSheep                bool `json:"withSheep"`
	TestMode                 bool `json:"testMode"`
}

type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseDealing   Phase = "dealing"
	PhaseTrickPlay Phase = "trickPlay"
	PhaseScoring   Phase = "scoring"
	PhaseClosed    Phase = "closed"
)

// Player is a durable identity; it exists independent of any live
// connection. Seat is the roster position (0..3) and fixes turn order.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Seat int    `json:"seat"`
}

type PlayedCard struct {
	PlayerID string `json:"playerId"`
	Card     Card   `json:"card"`
}

// Trick is a completed trick with its recorded winner.
type Trick struct {
	Cards  []PlayedCard `json:"cards"`
	Winner string       `json:"winner"`
}

const maxSeats = 4

// Game is the aggregate root for one room. All public operations
// serialize on the game's own mutex, so events for one room apply as
// atomic units while other rooms proceed concurrently.
type Game struct {
	mu sync.Mutex

	id        string
	settings  GameSettings
	createdBy string

	players            []Player
	phase              Phase
	hands              map[string][]Card
	undealt            []Card
	currentTrick       []PlayedCard
	trickHistory       []Trick
	currentPlayerIndex int
	scores             map[string]int
}

func NewGame(settings GameSettings, creator Player) *Game {
	creator.Seat = 0
	return &Game{
		id:        uuid.New().String(),
		settings:  settings,
		createdBy: creator.ID,
		players:   []Player{creator},
		phase:     PhaseLobby,
		hands:     make(map[string][]Card),
		scores:    make(map[string]int),
	}
}

func (g *Game) ID() string {
	return g.id
}

func (g *Game) Settings() GameSettings {
	return g.settings
}

func (g *Game) CreatedBy() string {
	return g.createdBy
}

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Players returns a copy of the roster in seat order.
func (g *Game) Players() []Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Player(nil), g.players...)
}

func (g *Game) HasPlayer(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seatOf(playerID) != -1
}

func (g *Game) seatOf(playerID string) int {
	for i, p := range g.players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Join seats a player in the lobby. Joining again with an id that is
// already seated re-affirms membership and refreshes the display name.
func (g *Game) Join(player Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return NewStateError("GAME_STARTED", "cannot join a game in progress")
	}
	if player.ID == "" {
		return NewValidationError("PLAYER_INVALID", "player id must not be empty")
	}

	if seat := g.seatOf(player.ID); seat != -1 {
		g.players[seat].Name = player.Name
		return nil
	}

	if len(g.players) >= maxSeats {
		return NewCapacityError("ROOM_FULL", "game already has 4 players")
	}

	player.Seat = len(g.players)
	g.players = append(g.players, player)
	return nil
}

// Leave removes a player and reports whether the session closed as a
// result. The session closes when the creator leaves, when the roster
// empties, or when a seat is vacated after trick play began (a trick
// round cannot continue with an unseated turn pointer).
func (g *Game) Leave(playerID string) (closed bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseClosed {
		return false, NewStateError("GAME_CLOSED", "game is closed")
	}

	seat := g.seatOf(playerID)
	if seat == -1 {
		return false, NewNotFoundError("PLAYER_NOT_FOUND", "player is not in this game")
	}

	g.players = append(g.players[:seat], g.players[seat+1:]...)
	for i := range g.players {
		g.players[i].Seat = i
	}
	delete(g.hands, playerID)

	if len(g.players) == 0 || playerID == g.createdBy || g.phase != PhaseLobby {
		g.phase = PhaseClosed
		return true, nil
	}
	return false, nil
}

// Start locks the roster, deals, and enters trick play. Creator only,
// lobby only, exactly four seated players. Dealing is synchronous: the
// deck is shuffled and split into equal hands in seat order, leftover
// cards (sheep games) stay undealt.
func (g *Game) Start(requestingPlayerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return NewStateError("WRONG_PHASE", "game has already started")
	}
	if requestingPlayerID != g.createdBy {
		return NewAuthorizationError("NOT_CREATOR", "only the game creator can start the game")
	}
	if len(g.players) != maxSeats {
		return NewValidationError("PLAYER_COUNT", "game needs exactly 4 players to start")
	}
	for _, p := range g.players {
		if p.ID == "" {
			return NewValidationError("PLAYER_INVALID", "seated player has no identity")
		}
	}

	g.phase = PhaseDealing

	deck := NewDeck(g.settings)
	deck.Shuffle()

	cardsPerPlayer := deck.Count() / maxSeats
	for i, p := range g.players {
		start := i * cardsPerPlayer
		hand := make([]Card, cardsPerPlayer)
		copy(hand, deck.Cards[start:start+cardsPerPlayer])
		g.hands[p.ID] = hand
	}
	g.undealt = append([]Card(nil), deck.Cards[maxSeats*cardsPerPlayer:]...)

	g.currentTrick = nil
	g.trickHistory = nil
	g.currentPlayerIndex = 0
	for _, p := range g.players {
		g.scores[p.ID] = 0
	}

	g.phase = PhaseTrickPlay
	return nil
}

// PlayResult describes the state transition caused by one accepted
// card play.
type PlayResult struct {
	Trick         []PlayedCard
	TrickComplete bool
	TrickWinner   PlayedCard
	NextPlayerID  string
	Finished      bool
}

// PlayCard validates and applies one move. Rejections leave the hands,
// the trick, and the turn pointer untouched.
func (g *Game) PlayCard(playerID string, card Card) (PlayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseTrickPlay {
		return PlayResult{}, NewStateError("WRONG_PHASE", "game is not in trick play")
	}
	if g.players[g.currentPlayerIndex].ID != playerID {
		return PlayResult{}, NewStateError("NOT_YOUR_TURN", "it is not your turn")
	}

	hand := g.hands[playerID]
	cardIndex := -1
	for i, held := range hand {
		if held == card {
			cardIndex = i
			break
		}
	}
	if cardIndex == -1 {
		return PlayResult{}, NewValidationError("CARD_NOT_IN_HAND", "card is not in your hand")
	}
	if !IsLegalPlay(card, hand, g.currentTrick, g.settings) {
		return PlayResult{}, NewValidationError("FOLLOW_SUIT", "you must follow the leading suit")
	}

	// The card moves from hand to trick; it is never playable twice.
	g.hands[playerID] = append(hand[:cardIndex], hand[cardIndex+1:]...)
	g.currentTrick = append(g.currentTrick, PlayedCard{PlayerID: playerID, Card: card})

	result := PlayResult{
		Trick: append([]PlayedCard(nil), g.currentTrick...),
	}

	if len(g.currentTrick) == len(g.players) {
		winner := ResolveTrickWinner(g.currentTrick, g.settings)
		g.trickHistory = append(g.trickHistory, Trick{
			Cards:  g.currentTrick,
			Winner: winner.PlayerID,
		})
		g.scores[winner.PlayerID]++
		g.currentTrick = nil
		g.currentPlayerIndex = g.seatOf(winner.PlayerID)

		result.TrickComplete = true
		result.TrickWinner = winner
	} else {
		g.currentPlayerIndex = (g.currentPlayerIndex + 1) % len(g.players)
	}

	if g.allHandsEmpty() {
		g.phase = PhaseScoring
		result.Finished = true
	}

	result.NextPlayerID = g.players[g.currentPlayerIndex].ID
	return result, nil
}

func (g *Game) allHandsEmpty() bool {
	for _, p := range g.players {
		if len(g.hands[p.ID]) > 0 {
			return false
		}
	}
	return true
}

// Scores returns the final per-player trick tallies once the session
// has reached scoring.
func (g *Game) Scores() (map[string]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseScoring {
		return nil, NewStateError("WRONG_PHASE", "game has not finished yet")
	}

	scores := make(map[string]int, len(g.scores))
	for id, tricks := range g.scores {
		scores[id] = tricks
	}
	return scores, nil
}

// Close is terminal: no further operations are accepted afterwards.
func (g *Game) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseClosed {
		return NewStateError("GAME_CLOSED", "game is already closed")
	}
	g.phase = PhaseClosed
	return nil
}
