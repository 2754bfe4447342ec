package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"doppelkopf-server/internal/doppelkopf"
)

type handlerFunc func(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	games, testGames := s.registry.ListJoinable()
	resp, err := json.Marshal(map[string]interface{}{
		"status":        "ok",
		"joinableGames": len(games) + len(testGames),
	})
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		s.log.WithError(err).Error("Failed to write health response")
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.config.AllowedOrigins,
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	conn := newWSConn(socket)
	connectionID := uuid.New().String()

	s.log.WithField("connectionId", connectionID).Info("New connection")
	s.connections.AddConnection(connectionID, conn)
	defer s.handleDisconnect(connectionID)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			s.log.WithField("connectionId", connectionID).WithError(err).Debug("Connection read ended")
			return
		}

		if msgType != websocket.MessageText {
			s.log.WithField("connectionId", connectionID).Warn("Non-text input, ignoring")
			continue
		}

		s.health.UpdateActivity(connectionID)

		if !s.limiter.Allow(connectionID) {
			s.sendError(ctx, conn, "RATE_LIMITED: too many messages, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.WithField("connectionId", connectionID).WithError(err).Warn("Invalid JSON")
			s.sendError(ctx, conn, "INVALID_JSON: message is not valid JSON")
			continue
		}

		s.dispatch(ctx, conn, connectionID, msg)
	}
}

// dispatch routes one client message through the handler table.
func (s *Server) dispatch(ctx context.Context, conn Conn, connectionID string, msg ClientMessage) {
	s.log.WithFields(logrus.Fields{
		"connectionId": connectionID,
		"type":         msg.Type,
	}).Debug("Message received")

	if err := ValidateMessageType(msg.Type); err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.handlers[msg.Type](ctx, conn, connectionID, msg.Payload)
}

// handleDisconnect applies the leave policy when a socket goes away.
// In the lobby a vanished player gives up the seat; mid-game the seat
// and hand survive for a rejoin, unless the creator is the one gone.
func (s *Server) handleDisconnect(connectionID string) {
	s.limiter.RemoveConnection(connectionID)
	s.health.RemoveConnection(connectionID)

	playerID := s.connections.RemoveConnection(connectionID)
	s.log.WithField("connectionId", connectionID).Info("Connection closed")
	if playerID == "" {
		return
	}

	// A rejoin may already have bound this identity to a new socket;
	// then this close is the stale connection and membership stands.
	if s.connections.ConnectionForPlayer(playerID) != nil {
		return
	}

	game := s.registry.FindByPlayer(playerID)
	if game == nil {
		return
	}

	if game.Phase() != doppelkopf.PhaseLobby && playerID != game.CreatedBy() {
		s.hub.Broadcast(game.ID(), ServerMessage{
			Type: "playerDisconnected",
			Payload: PlayerDisconnectedNotification{
				GameID:   game.ID(),
				PlayerID: playerID,
			},
		})
		return
	}

	s.removeFromGame(game, playerID)
}

// removeFromGame performs the shared leave bookkeeping: session
// mutation, topic membership, notifications, registry cleanup.
func (s *Server) removeFromGame(game *doppelkopf.Game, playerID string) error {
	closed, err := game.Leave(playerID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"gameId":   game.ID(),
			"playerId": playerID,
		}).WithError(err).Warn("Leave failed")
		return err
	}

	if closed {
		s.hub.Broadcast(game.ID(), ServerMessage{
			Type:    "gameClosed",
			Payload: GameClosedNotification{GameID: game.ID()},
		})
		s.hub.DropTopic(game.ID())
		s.registry.Remove(game.ID())
	} else {
		s.hub.Unsubscribe(game.ID(), playerID)
		s.hub.Broadcast(game.ID(), ServerMessage{
			Type: "playerLeft",
			Payload: PlayerListNotification{
				GameID:  game.ID(),
				Players: game.Players(),
			},
		})
	}

	s.broadcastGameList()
	return nil
}

func (s *Server) sendMessage(ctx context.Context, conn Conn, msg ServerMessage) {
	if err := conn.Send(ctx, msg); err != nil {
		s.log.WithField("type", msg.Type).WithError(err).Warn("Failed to send message")
	}
}

// sendError reports a rejected request to the originating connection
// only; errors never fan out to the room.
func (s *Server) sendError(ctx context.Context, conn Conn, message string) {
	s.sendMessage(ctx, conn, ServerMessage{
		Type:    "error",
		Payload: ErrorMessage{Message: message},
	})
}

func (s *Server) availableGamesMessage() ServerMessage {
	games, testGames := s.registry.ListJoinable()
	return ServerMessage{
		Type: "availableGames",
		Payload: AvailableGamesNotification{
			Games:     games,
			TestGames: testGames,
		},
	}
}

// broadcastGameList pushes the joinable listing to every connection,
// bound or not, whenever it changes.
func (s *Server) broadcastGameList() {
	msg := s.availableGamesMessage()
	for _, conn := range s.connections.AllConnections() {
		s.sendMessage(context.Background(), conn, msg)
	}
}

// boundIdentity resolves the durable identity behind a connection, or
// rejects the request when the connection never joined.
func (s *Server) boundIdentity(ctx context.Context, conn Conn, connectionID string) (SessionInfo, bool) {
	playerID := s.connections.PlayerForConnection(connectionID)
	if playerID == "" {
		s.sendError(ctx, conn, "NOT_JOINED: register an identity with join first")
		return SessionInfo{}, false
	}

	info, err := s.sessions.Get(playerID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return SessionInfo{}, false
	}
	return info, true
}

// parseGameID accepts either a bare string payload or {"gameId": ...},
// both occur in the wild for startGame and closeGame.
func parseGameID(payload json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(payload, &id); err == nil && id != "" {
		return id, nil
	}

	var req struct {
		GameID string `json:"gameId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		return "", doppelkopf.NewValidationError("INVALID_PAYLOAD", "missing game id")
	}
	return req.GameID, nil
}

func (s *Server) handlePing(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	s.sendMessage(ctx, conn, ServerMessage{Type: "pong", Payload: struct{}{}})
}

// handleJoin registers a durable identity for this connection and
// answers with the identity token plus the joinable-game listing.
func (s *Server) handleJoin(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var req JoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid join payload")
		return
	}

	info, err := s.sessions.Register(req.Name)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.connections.BindPlayer(connectionID, info.PlayerID)

	s.log.WithFields(logrus.Fields{
		"playerId": info.PlayerID,
		"name":     info.Name,
	}).Info("Player joined")

	s.sendMessage(ctx, conn, ServerMessage{
		Type: "joined",
		Payload: JoinedResponse{
			PlayerID: info.PlayerID,
			Token:    info.Token,
			Name:     info.Name,
		},
	})
	s.sendMessage(ctx, conn, s.availableGamesMessage())
}

// handleRejoin rebinds a durable identity to a fresh connection and
// restores the player's view of the room they were seated in. Session
// state and turn order are never touched.
func (s *Server) handleRejoin(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var req RejoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid rejoin payload")
		return
	}

	info, err := s.sessions.Validate(req.Token, req.ID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}
	if req.Name != "" && req.Name != info.Name {
		s.sessions.Rename(info.PlayerID, req.Name)
		info.Name = req.Name
	}

	oldConnectionID := s.connections.BindPlayer(connectionID, info.PlayerID)
	if oldConnectionID != "" {
		if oldConn := s.connections.GetConnection(oldConnectionID); oldConn != nil {
			s.sendMessage(context.Background(), oldConn, ServerMessage{
				Type: "disconnected_elsewhere",
				Payload: ErrorMessage{
					Message: "You connected on another device",
				},
			})
			_ = oldConn.Close("Connected from another device")
		}
		s.connections.RemoveConnection(oldConnectionID)
	}

	s.log.WithField("playerId", info.PlayerID).Info("Player rejoined")

	s.sendMessage(ctx, conn, ServerMessage{
		Type: "joined",
		Payload: JoinedResponse{
			PlayerID: info.PlayerID,
			Token:    info.Token,
			Name:     info.Name,
		},
	})

	game := s.registry.FindByPlayer(info.PlayerID)
	if game == nil {
		s.sendMessage(ctx, conn, s.availableGamesMessage())
		return
	}

	switch game.Phase() {
	case doppelkopf.PhaseLobby:
		s.sendMessage(ctx, conn, ServerMessage{
			Type: "gameJoined",
			Payload: GameJoinedResponse{
				GameID:  game.ID(),
				Players: game.Players(),
			},
		})
	default:
		// Restore the in-game view: the same personalized payload the
		// deal sent, with only this player's hand.
		s.sendMessage(ctx, conn, ServerMessage{
			Type:    "gameStarted",
			Payload: game.ClientState(info.PlayerID),
		})
	}
}

func (s *Server) handleCreateGame(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var settings CreateGameRequest
	if err := json.Unmarshal(payload, &settings); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid createGame payload")
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}

	creator := doppelkopf.Player{ID: info.PlayerID, Name: info.Name}
	game, err := s.registry.Create(settings, creator)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.hub.Subscribe(game.ID(), info.PlayerID)

	s.log.WithFields(logrus.Fields{
		"gameId":   game.ID(),
		"playerId": info.PlayerID,
		"testMode": settings.TestMode,
	}).Info("Game created")

	s.sendMessage(ctx, conn, ServerMessage{
		Type:    "gameCreated",
		Payload: GameCreatedResponse{Game: game.Summary()},
	})
	s.broadcastGameList()
}

func (s *Server) handleJoinGame(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var req JoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid joinGame payload")
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}
	if req.PlayerID != "" && req.PlayerID != info.PlayerID {
		s.sendError(ctx, conn, "IDENTITY_MISMATCH: you can only seat your own identity")
		return
	}

	game, err := s.registry.Get(req.GameID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	name := info.Name
	if req.PlayerName != "" {
		name = req.PlayerName
	}

	if err := game.Join(doppelkopf.Player{ID: info.PlayerID, Name: name}); err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.hub.Subscribe(game.ID(), info.PlayerID)

	s.sendMessage(ctx, conn, ServerMessage{
		Type: "gameJoined",
		Payload: GameJoinedResponse{
			GameID:  game.ID(),
			Players: game.Players(),
		},
	})
	s.hub.Broadcast(game.ID(), ServerMessage{
		Type: "playerJoined",
		Payload: PlayerListNotification{
			GameID:  game.ID(),
			Players: game.Players(),
		},
	})
	s.broadcastGameList()
}

func (s *Server) handleLeaveGame(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var req LeaveGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid leaveGame payload")
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}
	if req.PlayerID != "" && req.PlayerID != info.PlayerID {
		s.sendError(ctx, conn, "IDENTITY_MISMATCH: you can only remove your own identity")
		return
	}

	game, err := s.registry.Get(req.GameID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	if err := s.removeFromGame(game, info.PlayerID); err != nil {
		s.sendError(ctx, conn, err.Error())
	}
}

// handleStartGame is the creator-only deal: roster locks, hands go out
// as per-player unicasts so no opponent ever sees another hand.
func (s *Server) handleStartGame(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	gameID, err := parseGameID(payload)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}

	game, err := s.registry.Get(gameID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	if err := game.Start(info.PlayerID); err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.log.WithField("gameId", game.ID()).Info("Game started")

	for _, p := range game.Players() {
		if err := s.hub.Unicast(p.ID, ServerMessage{
			Type:    "gameStarted",
			Payload: game.ClientState(p.ID),
		}); err != nil {
			s.log.WithField("playerId", p.ID).WithError(err).Warn("Failed to send gameStarted")
		}
	}

	state := game.ClientState("")
	s.hub.Broadcast(game.ID(), ServerMessage{
		Type: "activePlayer",
		Payload: ActivePlayerNotification{
			GameID:   game.ID(),
			PlayerID: state.CurrentPlayerID,
		},
	})
	s.broadcastGameList()
}

func (s *Server) handlePlayCard(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var req PlayCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid playCard payload")
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}
	if req.PlayerID != "" && req.PlayerID != info.PlayerID {
		s.sendError(ctx, conn, "IDENTITY_MISMATCH: you can only play your own cards")
		return
	}

	game, err := s.registry.Get(req.GameID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	result, err := game.PlayCard(info.PlayerID, req.Card)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.hub.Broadcast(game.ID(), ServerMessage{
		Type: "cardPlayed",
		Payload: CardPlayedNotification{
			GameID:   game.ID(),
			PlayerID: info.PlayerID,
			Card:     req.Card,
		},
	})

	trickUpdate := TrickUpdateNotification{
		GameID:    game.ID(),
		Trick:     result.Trick,
		Completed: result.TrickComplete,
	}
	if result.TrickComplete {
		trickUpdate.Winner = result.TrickWinner.PlayerID
	}
	s.hub.Broadcast(game.ID(), ServerMessage{Type: "trickUpdate", Payload: trickUpdate})

	if result.Finished {
		scores, err := game.Scores()
		if err != nil {
			s.log.WithField("gameId", game.ID()).WithError(err).Error("Scoring failed after final trick")
			return
		}
		s.hub.Broadcast(game.ID(), ServerMessage{
			Type: "gameFinished",
			Payload: GameFinishedNotification{
				GameID: game.ID(),
				Scores: scores,
			},
		})
		return
	}

	s.hub.Broadcast(game.ID(), ServerMessage{
		Type: "activePlayer",
		Payload: ActivePlayerNotification{
			GameID:   game.ID(),
			PlayerID: result.NextPlayerID,
		},
	})
}

// handleChatMessage relays chat to the room topic; the server never
// interprets the content.
func (s *Server) handleChatMessage(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	var req ChatMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: invalid chatMessage payload")
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}

	game, err := s.registry.Get(req.GameID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}
	if !game.HasPlayer(info.PlayerID) {
		s.sendError(ctx, conn, "NOT_IN_GAME: you are not seated in this game")
		return
	}

	s.hub.Broadcast(game.ID(), ServerMessage{
		Type: "chatMessage",
		Payload: ChatMessageBroadcast{
			GameID:   game.ID(),
			PlayerID: info.PlayerID,
			Name:     info.Name,
			Message:  req.Message,
		},
	})
}

func (s *Server) handleCloseGame(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	gameID, err := parseGameID(payload)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	info, ok := s.boundIdentity(ctx, conn, connectionID)
	if !ok {
		return
	}

	game, err := s.registry.Get(gameID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}
	if game.CreatedBy() != info.PlayerID {
		s.sendError(ctx, conn, "NOT_CREATOR: only the game creator can close the game")
		return
	}

	if err := game.Close(); err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	// Terminal notification goes out before the room disappears.
	s.hub.Broadcast(game.ID(), ServerMessage{
		Type:    "gameClosed",
		Payload: GameClosedNotification{GameID: game.ID()},
	})
	s.hub.DropTopic(game.ID())
	s.registry.Remove(game.ID())

	s.log.WithField("gameId", game.ID()).Info("Game closed by creator")
	s.broadcastGameList()
}

func (s *Server) handleCloseAllTestGames(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	closed := s.registry.CloseAllTest()
	for _, game := range closed {
		s.hub.Broadcast(game.ID(), ServerMessage{
			Type:    "gameClosed",
			Payload: GameClosedNotification{GameID: game.ID()},
		})
		s.hub.DropTopic(game.ID())
	}

	if len(closed) > 0 {
		s.log.WithField("count", len(closed)).Info("Closed all test games")
		s.broadcastGameList()
	}
}

func (s *Server) handleRequestGames(ctx context.Context, conn Conn, connectionID string, payload json.RawMessage) {
	s.sendMessage(ctx, conn, s.availableGamesMessage())
}
