package server

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub is the per-room publish/subscribe fan-out. Each game id owns a
// topic; joining and leaving a room is an explicit subscribe or
// unsubscribe in the handlers, never a transport side effect.
// Subscriptions are keyed by player identity, so a rebound connection
// resumes delivery without resubscribing.
type Hub struct {
	topics      map[string]map[string]bool // gameID → set of playerIDs
	connections *ConnectionManager
	log         *logrus.Logger
	mu          sync.RWMutex
}

func NewHub(connections *ConnectionManager, log *logrus.Logger) *Hub {
	return &Hub{
		topics:      make(map[string]map[string]bool),
		connections: connections,
		log:         log,
	}
}

func (h *Hub) Subscribe(gameID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[gameID]
	if !ok {
		topic = make(map[string]bool)
		h.topics[gameID] = topic
	}
	topic[playerID] = true
}

func (h *Hub) Unsubscribe(gameID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.topics[gameID], playerID)
	if len(h.topics[gameID]) == 0 {
		delete(h.topics, gameID)
	}
}

// DropTopic removes a room's topic entirely. Called after the terminal
// gameClosed notification has gone out.
func (h *Hub) DropTopic(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, gameID)
}

func (h *Hub) Members(gameID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.topics[gameID]))
	for playerID := range h.topics[gameID] {
		members = append(members, playerID)
	}
	return members
}

// Broadcast multicasts a message to every subscriber of a room topic.
// Subscribers without a live connection are skipped; their identity
// keeps the subscription for when they rebind.
func (h *Hub) Broadcast(gameID string, msg ServerMessage) {
	h.BroadcastExcept(gameID, "", msg)
}

func (h *Hub) BroadcastExcept(gameID, exceptPlayerID string, msg ServerMessage) {
	for _, playerID := range h.Members(gameID) {
		if playerID == exceptPlayerID {
			continue
		}
		if err := h.Unicast(playerID, msg); err != nil {
			h.log.WithFields(logrus.Fields{
				"gameId":   gameID,
				"playerId": playerID,
				"type":     msg.Type,
			}).WithError(err).Warn("broadcast delivery failed")
		}
	}
}

// Unicast sends a message to one player's current connection. A player
// without a bound connection is not an error; the message is dropped.
func (h *Hub) Unicast(playerID string, msg ServerMessage) error {
	conn := h.connections.ConnectionForPlayer(playerID)
	if conn == nil {
		return nil
	}
	return conn.Send(context.Background(), msg)
}
