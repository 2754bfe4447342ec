package server

import (
	"sync"

	"doppelkopf-server/internal/doppelkopf"
)

// GameRegistry owns the exclusive mapping from game id to live game.
// The registry lock guards only the map; every game serializes its own
// mutation internally, so events for different rooms never block each
// other. Operations that must be check-and-set (one open room per
// creator) run entirely under the registry lock.
type GameRegistry struct {
	games map[string]*doppelkopf.Game
	mu    sync.RWMutex
}

func NewGameRegistry() *GameRegistry {
	return &GameRegistry{
		games: make(map[string]*doppelkopf.Game),
	}
}

// Create opens a new lobby with the creator auto-seated. Outside test
// mode a player may own at most one open room at a time; the check and
// the insert happen under the same lock so two racing createGame events
// cannot both succeed.
func (gr *GameRegistry) Create(settings doppelkopf.GameSettings, creator doppelkopf.Player) (*doppelkopf.Game, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	if !settings.TestMode {
		for _, game := range gr.games {
			if game.CreatedBy() == creator.ID && !game.Settings().TestMode && game.Phase() != doppelkopf.PhaseClosed {
				return nil, doppelkopf.NewValidationError("ALREADY_CREATED", "you already have an open game")
			}
		}
	}

	game := doppelkopf.NewGame(settings, creator)
	gr.games[game.ID()] = game
	return game, nil
}

func (gr *GameRegistry) Get(gameID string) (*doppelkopf.Game, error) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()

	game, exists := gr.games[gameID]
	if !exists {
		return nil, doppelkopf.NewNotFoundError("GAME_NOT_FOUND", "game not found")
	}
	return game, nil
}

func (gr *GameRegistry) Remove(gameID string) {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	delete(gr.games, gameID)
}

// ListJoinable enumerates lobby-phase rooms with a free seat,
// partitioned so production and test rooms never mix.
func (gr *GameRegistry) ListJoinable() (games, testGames []doppelkopf.Summary) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()

	games = make([]doppelkopf.Summary, 0)
	testGames = make([]doppelkopf.Summary, 0)
	for _, game := range gr.games {
		if !game.Joinable() {
			continue
		}
		if game.Settings().TestMode {
			testGames = append(testGames, game.Summary())
		} else {
			games = append(games, game.Summary())
		}
	}
	return games, testGames
}

// FindByPlayer returns the open game a player is seated in, if any.
// A player can be seated in at most one open room.
func (gr *GameRegistry) FindByPlayer(playerID string) *doppelkopf.Game {
	gr.mu.RLock()
	defer gr.mu.RUnlock()

	for _, game := range gr.games {
		if game.Phase() != doppelkopf.PhaseClosed && game.HasPlayer(playerID) {
			return game
		}
	}
	return nil
}

// CloseAllTest closes and removes every test-mode room and returns the
// closed games so callers can notify their members.
func (gr *GameRegistry) CloseAllTest() []*doppelkopf.Game {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	closed := make([]*doppelkopf.Game, 0)
	for id, game := range gr.games {
		if !game.Settings().TestMode {
			continue
		}
		// Already-closed rooms are removed without a second close.
		_ = game.Close()
		delete(gr.games, id)
		closed = append(closed, game)
	}
	return closed
}

// All snapshots every registered game, used for shutdown teardown.
func (gr *GameRegistry) All() []*doppelkopf.Game {
	gr.mu.RLock()
	defer gr.mu.RUnlock()

	games := make([]*doppelkopf.Game, 0, len(gr.games))
	for _, game := range gr.games {
		games = append(games, game)
	}
	return games
}
