package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// fakeConn records messages instead of writing to a websocket, so
// handlers and the hub can be exercised without a live transport.
type fakeConn struct {
	mu       sync.Mutex
	messages []ServerMessage
	closed   bool
}

func (f *fakeConn) Send(ctx context.Context, msg ServerMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeConn) Close(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) byType(msgType string) []ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches := make([]ServerMessage, 0)
	for _, msg := range f.messages {
		if msg.Type == msgType {
			matches = append(matches, msg)
		}
	}
	return matches
}

func (f *fakeConn) lastOfType(msgType string) (ServerMessage, bool) {
	matches := f.byType(msgType)
	if len(matches) == 0 {
		return ServerMessage{}, false
	}
	return matches[len(matches)-1], true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestServer() *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return newServer(Config{
		Port:               0,
		LogLevel:           "panic",
		RateLimitPerSecond: 1000,
		AllowedOrigins:     []string{"*"},
	}, log)
}

// connect registers a fake connection with the server.
func connect(s *Server, connectionID string) *fakeConn {
	conn := &fakeConn{}
	s.connections.AddConnection(connectionID, conn)
	return conn
}

// send dispatches one client message the way the read loop would.
func send(t *testing.T, s *Server, conn Conn, connectionID, msgType string, payload interface{}) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal %s payload: %v", msgType, err)
	}
	s.dispatch(context.Background(), conn, connectionID, ClientMessage{Type: msgType, Payload: raw})
}
