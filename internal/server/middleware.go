package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"doppelkopf-server/internal/doppelkopf"
)

// RateLimiter implements per-connection rate limiting using a sliding
// window, so one abusive client cannot starve the rest of a room.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID → timestamps of recent requests
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow checks if a connection may send another message. Old
// timestamps are dropped on the way, keeping memory bounded.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	valid = append(valid, now)
	r.requests[connectionID] = valid
	return true
}

// RemoveConnection drops rate limit state when a websocket disconnects.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks last activity per connection for detecting
// dead clients.
type ConnectionHealth struct {
	lastActivity map[string]time.Time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

func (h *ConnectionHealth) IsInactive(connectionID string, timeout time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lastActivity, exists := h.lastActivity[connectionID]
	if !exists {
		return false
	}
	return time.Since(lastActivity) > timeout
}

func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

// ValidateMessageType rejects unknown event names before dispatch.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":              true,
		"join":              true,
		"rejoin":            true,
		"createGame":        true,
		"joinGame":          true,
		"leaveGame":         true,
		"startGame":         true,
		"playCard":          true,
		"chatMessage":       true,
		"closeGame":         true,
		"closeAllTestGames": true,
		"requestGames":      true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: unknown message type '%s'", msgType)
	}
	return nil
}

// ValidateName checks display name requirements.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return doppelkopf.NewValidationError("NAME_INVALID", "name cannot be empty")
	}
	if len(name) > 20 {
		return doppelkopf.NewValidationError("NAME_INVALID", "name too long (max 20 characters)")
	}
	return nil
}
