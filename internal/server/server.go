package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"thirteen/internal/auth"
)

// Server owns the HTTP listener, the WebSocket handshake and the hub.
type Server struct {
	logger     *log.Logger
	dispatcher *Dispatcher
	hub        *Hub
	authSecret []byte
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer wires the HTTP front of the tournament server. An empty
// authSecret trusts handshake query parameters for identity.
func NewServer(logger *log.Logger, dispatcher *Dispatcher, hub *Hub, authSecret []byte) *Server {
	s := &Server{
		logger:     logger.WithPrefix("server"),
		dispatcher: dispatcher,
		hub:        hub,
		authSecret: authSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The tournament server has no browser origin of its own.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.httpServer = &http.Server{Handler: mux}
	return s
}

// ListenAndServe blocks serving the given address until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer.Addr = addr
	s.logger.Info("listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and tears down live ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleWS performs the $connect flow: authenticate, upgrade, register
// the connection and start its pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r, s.authSecret)
	if err != nil {
		s.logger.Warn("handshake rejected", "err", err)
		http.Error(w, "playerId required", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "err", err)
		return
	}

	connectionID := uuid.NewString()
	conn := newConnection(connectionID, ws, s.logger)

	ctx := context.Background()
	if err := s.dispatcher.HandleConnect(ctx, connectionID, identity); err != nil {
		s.logger.Error("connect registration failed", "connection", connectionID, "err", err)
		ws.Close()
		return
	}

	s.hub.add(conn)
	s.logger.Info("connected", "connection", connectionID, "player", identity.PlayerID)

	go conn.writePump()
	go conn.readPump(ctx, s.dispatcher, s.hub)
}
