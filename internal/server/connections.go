package server

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// Conn is the transport surface the server needs from one client
// connection. Handlers and the broadcast hub only see this interface,
// so they can be exercised without a live websocket.
type Conn interface {
	Send(ctx context.Context, msg ServerMessage) error
	Close(reason string) error
}

// wsConn adapts a coder/websocket connection to Conn.
type wsConn struct {
	sock *websocket.Conn
	mu   sync.Mutex
}

func newWSConn(sock *websocket.Conn) *wsConn {
	return &wsConn{sock: sock}
}

func (c *wsConn) Send(ctx context.Context, msg ServerMessage) error {
	data, err := marshalMessage(msg)
	if err != nil {
		return err
	}

	// coder/websocket allows one concurrent writer per connection.
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(reason string) error {
	return c.sock.Close(websocket.StatusNormalClosure, reason)
}

// ConnectionManager binds durable player identities to their current
// transport connection. Rebinding on reconnect replaces the previous
// connection without touching session membership.
type ConnectionManager struct {
	conns    map[string]Conn   // connectionID → connection
	players  map[string]string // connectionID → playerID
	byPlayer map[string]string // playerID → connectionID
	mu       sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns:    make(map[string]Conn),
		players:  make(map[string]string),
		byPlayer: make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(connectionID string, conn Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[connectionID] = conn
}

// BindPlayer maps a player identity to a connection and returns the id
// of the previously bound connection, if any. The caller decides what
// to do with the evicted connection.
func (cm *ConnectionManager) BindPlayer(connectionID, playerID string) (oldConnectionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	old := cm.byPlayer[playerID]
	if old == connectionID {
		return ""
	}
	cm.players[connectionID] = playerID
	cm.byPlayer[playerID] = connectionID
	return old
}

// RemoveConnection drops a connection and returns the player identity
// it was bound to, if any. The identity itself stays valid for rejoin.
func (cm *ConnectionManager) RemoveConnection(connectionID string) (playerID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	playerID = cm.players[connectionID]
	delete(cm.conns, connectionID)
	delete(cm.players, connectionID)
	if playerID != "" && cm.byPlayer[playerID] == connectionID {
		delete(cm.byPlayer, playerID)
	}
	return playerID
}

func (cm *ConnectionManager) PlayerForConnection(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.players[connectionID]
}

func (cm *ConnectionManager) ConnectionForPlayer(playerID string) Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	connID, ok := cm.byPlayer[playerID]
	if !ok {
		return nil
	}
	return cm.conns[connID]
}

func (cm *ConnectionManager) GetConnection(connectionID string) Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conns[connectionID]
}

// AllConnections snapshots every live connection, bound or not. Used
// for lobby-list pushes.
func (cm *ConnectionManager) AllConnections() []Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conns := make([]Conn, 0, len(cm.conns))
	for _, conn := range cm.conns {
		conns = append(conns, conn)
	}
	return conns
}
