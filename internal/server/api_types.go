package server

import (
	"doppelkopf-server/internal/doppelkopf"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// JOIN / REJOIN (identity)
// ============================================================================
type JoinRequest struct {
	Name string `json:"name"`
}

type JoinedResponse struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	Name     string `json:"name"`
}

type RejoinRequest struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Token string `json:"token"`
}

// ============================================================================
// CREATE GAME (createGame)
// ============================================================================
type CreateGameRequest = doppelkopf.GameSettings

type GameCreatedResponse struct {
	Game doppelkopf.Summary `json:"game"`
}

// ============================================================================
// JOIN GAME (joinGame)
// ============================================================================
type JoinGameRequest struct {
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type GameJoinedResponse struct {
	GameID  string              `json:"gameId"`
	Players []doppelkopf.Player `json:"players"`
}

// ============================================================================
// LEAVE GAME (leaveGame)
// ============================================================================
type LeaveGameRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// ============================================================================
// PLAY CARD (playCard)
// ============================================================================
type PlayCardRequest struct {
	GameID   string          `json:"gameId"`
	PlayerID string          `json:"playerId"`
	Card     doppelkopf.Card `json:"card"`
}

// ============================================================================
// CHAT (chatMessage)
// ============================================================================
type ChatMessageRequest struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

type ChatMessageBroadcast struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// ============================================================================
// ROOM NOTIFICATIONS
// ============================================================================
type PlayerListNotification struct {
	GameID  string              `json:"gameId"`
	Players []doppelkopf.Player `json:"players"`
}

type GameClosedNotification struct {
	GameID string `json:"gameId"`
}

type CardPlayedNotification struct {
	GameID   string          `json:"gameId"`
	PlayerID string          `json:"playerId"`
	Card     doppelkopf.Card `json:"card"`
}

type TrickUpdateNotification struct {
	GameID    string                  `json:"gameId"`
	Trick     []doppelkopf.PlayedCard `json:"trick"`
	Completed bool                    `json:"completed"`
	Winner    string                  `json:"winner,omitempty"`
}

type ActivePlayerNotification struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type GameFinishedNotification struct {
	GameID string         `json:"gameId"`
	Scores map[string]int `json:"scores"`
}

type PlayerDisconnectedNotification struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// ============================================================================
// LOBBY LISTING (availableGames)
// ============================================================================
// Production and test rooms are partitioned into separate lists so the
// two never mix in a lobby view.
type AvailableGamesNotification struct {
	Games     []doppelkopf.Summary `json:"games"`
	TestGames []doppelkopf.Summary `json:"testGames"`
}
