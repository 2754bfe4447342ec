package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"doppelkopf-server/internal/doppelkopf"
)

type Config struct {
	Port               int      `env:"PORT" envDefault:"3000"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	RateLimitPerSecond int      `env:"RATE_LIMIT_PER_SECOND" envDefault:"20"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type Server struct {
	config      Config
	log         *logrus.Logger
	registry    *GameRegistry
	sessions    *SessionManager
	connections *ConnectionManager
	hub         *Hub
	limiter     *RateLimiter
	health      *ConnectionHealth
	handlers    map[string]handlerFunc
}

func NewServer() (*Server, *http.Server) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("Failed to parse configuration: %v", err)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	srv := newServer(cfg, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// newServer wires the managers without the HTTP listener, which lets
// tests drive handlers directly.
func newServer(cfg Config, log *logrus.Logger) *Server {
	connections := NewConnectionManager()

	srv := &Server{
		config:      cfg,
		log:         log,
		registry:    NewGameRegistry(),
		sessions:    NewSessionManager(),
		connections: connections,
		hub:         NewHub(connections, log),
		limiter:     NewRateLimiter(cfg.RateLimitPerSecond, time.Second),
		health:      NewConnectionHealth(),
	}

	// Message dispatch table: event name → handler. New events register
	// here and in ValidateMessageType.
	srv.handlers = map[string]handlerFunc{
		"ping":              srv.handlePing,
		"join":              srv.handleJoin,
		"rejoin":            srv.handleRejoin,
		"createGame":        srv.handleCreateGame,
		"joinGame":          srv.handleJoinGame,
		"leaveGame":         srv.handleLeaveGame,
		"startGame":         srv.handleStartGame,
		"playCard":          srv.handlePlayCard,
		"chatMessage":       srv.handleChatMessage,
		"closeGame":         srv.handleCloseGame,
		"closeAllTestGames": srv.handleCloseAllTestGames,
		"requestGames":      srv.handleRequestGames,
	}

	return srv
}

// Shutdown tears down every room with a terminal notification before
// the HTTP listener stops accepting.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, game := range s.registry.All() {
		if game.Phase() != doppelkopf.PhaseClosed {
			_ = game.Close()
		}
		s.hub.Broadcast(game.ID(), ServerMessage{
			Type:    "gameClosed",
			Payload: GameClosedNotification{GameID: game.ID()},
		})
		s.hub.DropTopic(game.ID())
		s.registry.Remove(game.ID())
	}

	s.log.Info("All games closed for shutdown")
	return ctx.Err()
}
