package server

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"doppelkopf-server/internal/doppelkopf"
)

// SessionInfo is a durable player identity with its reconnect token.
// The token is issued once at first join and exchanged on rejoin; the
// identity it proves is what carries session membership, not the
// transport connection.
type SessionInfo struct {
	PlayerID string
	Token    string
	Name     string
}

type SessionManager struct {
	byToken  map[string]SessionInfo // token → identity
	byPlayer map[string]string      // playerID → token
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		byToken:  make(map[string]SessionInfo),
		byPlayer: make(map[string]string),
	}
}

// Register issues a fresh identity and reconnect token for a display
// name.
func (sm *SessionManager) Register(name string) (SessionInfo, error) {
	if err := ValidateName(name); err != nil {
		return SessionInfo{}, err
	}

	info := SessionInfo{
		PlayerID: uuid.New().String(),
		Token:    uuid.New().String(),
		Name:     strings.TrimSpace(name),
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.byToken[info.Token] = info
	sm.byPlayer[info.PlayerID] = info.Token
	return info, nil
}

// Validate checks a rejoin token against the identity it claims.
func (sm *SessionManager) Validate(token, playerID string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	info, exists := sm.byToken[token]
	if !exists {
		return SessionInfo{}, doppelkopf.NewNotFoundError("TOKEN_NOT_FOUND", "invalid session token")
	}
	if info.PlayerID != playerID {
		return SessionInfo{}, doppelkopf.NewAuthorizationError("TOKEN_MISMATCH", "token does not match player identity")
	}
	return info, nil
}

func (sm *SessionManager) Get(playerID string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	token, exists := sm.byPlayer[playerID]
	if !exists {
		return SessionInfo{}, doppelkopf.NewNotFoundError("PLAYER_NOT_FOUND", "unknown player identity")
	}
	return sm.byToken[token], nil
}

// Rename updates the display name tied to an identity, used when a
// rejoin carries a changed name.
func (sm *SessionManager) Rename(playerID, name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	token, exists := sm.byPlayer[playerID]
	if !exists {
		return
	}
	info := sm.byToken[token]
	info.Name = strings.TrimSpace(name)
	sm.byToken[token] = info
}

func (sm *SessionManager) Remove(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	info, exists := sm.byToken[token]
	if !exists {
		return
	}
	delete(sm.byToken, token)
	delete(sm.byPlayer, info.PlayerID)
}

func (sm *SessionManager) AllSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]SessionInfo, 0, len(sm.byToken))
	for _, info := range sm.byToken {
		sessions = append(sessions, info)
	}
	return sessions
}
