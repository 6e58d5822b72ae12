package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/entrepeneur4lyf/spark/internal/chat"
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/events"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

// Chat is the orchestrator surface used by the handlers
type Chat interface {
	SendTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
	Regenerate(ctx context.Context, sessionID string) (*chat.TurnResult, error)
	Cancel(sessionID string) bool
	Activate(ctx context.Context, id string) (*domain.Session, error)
	NewSession() string
	ActiveSession() string
	Bootstrap(ctx context.Context, sharedID string) (storage.Selection, error)
	Logout(ctx context.Context) (string, error)
}

// Server represents the API server
type Server struct {
	chat      Chat
	repo      storage.Repository
	broker    *events.Broker[events.Notice]
	logger    *log.Logger
	origin    string
	localOnly bool
	upgrader  websocket.Upgrader
	started   time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// Option customizes a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShareOrigin sets the origin used in share links
func WithShareOrigin(origin string) Option {
	return func(s *Server) {
		s.origin = strings.TrimRight(origin, "/")
	}
}

// WithLocalhostOnly rejects requests that do not come from a loopback address
func WithLocalhostOnly(enabled bool) Option {
	return func(s *Server) {
		s.localOnly = enabled
	}
}

// NewServer creates a new API server
func NewServer(c Chat, repo storage.Repository, broker *events.Broker[events.Notice], opts ...Option) *Server {
	s := &Server{
		chat:      c,
		repo:      repo,
		broker:    broker,
		logger:    log.Default(),
		localOnly: true,
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: isLocalhostOrigin,
	}
	return s
}

// isLocalhostOrigin checks if the WebSocket origin is localhost
func isLocalhostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return isLocalOrigin(origin)
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "http://[::1]:")
}

// Start serves on addr until Stop is called
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware)
	if s.localOnly {
		router.Use(localhostOnly)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/bootstrap", s.handleBootstrap).Methods("GET")

	// Mock authentication
	api.HandleFunc("/auth", s.handleGetUser).Methods("GET")
	api.HandleFunc("/auth", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth", s.handleLogout).Methods("DELETE")

	// Sessions
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions", s.handleNewSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/activate", s.handleActivate).Methods("POST")
	api.HandleFunc("/sessions/{id}/messages", s.handleSendMessage).Methods("POST")
	api.HandleFunc("/sessions/{id}/regenerate", s.handleRegenerate).Methods("POST")
	api.HandleFunc("/sessions/{id}/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/sessions/{id}/share", s.handleShare).Methods("GET")
	api.HandleFunc("/sessions/{id}/messages/{messageId}/bookmark", s.handleToggleBookmark).Methods("POST")

	// Library
	api.HandleFunc("/bookmarks", s.handleListBookmarks).Methods("GET")
	api.HandleFunc("/apps", s.handleListApps).Methods("GET")
	api.HandleFunc("/apps/{id}", s.handleGetApp).Methods("GET")

	// Event streams
	api.HandleFunc("/ws", s.handleEventsWebSocket)
	api.HandleFunc("/events", s.handleEventsSSE).Methods("GET")

	return router
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allow := "http://localhost:5173"
		if origin != "" && isLocalOrigin(origin) {
			allow = origin
		}
		w.Header().Set("Access-Control-Allow-Origin", allow)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Response helpers
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	s.writeJSONStatus(w, code, map[string]string{"error": message})
}

// writeDomainError maps package sentinels to HTTP statuses
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chat.ErrSessionBusy), errors.Is(err, chat.ErrNothingToRegenerate):
		s.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrLoginRequired):
		s.writeError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("Request failed", "error", err)
		s.writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) publish(t events.EventType, n events.Notice) {
	if s.broker != nil {
		s.broker.Publish(t, n, events.WithSessionID(n.SessionID))
	}
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"active":    s.chat.ActiveSession(),
	}
	if s.broker != nil {
		health["events"] = s.broker.Stats()
	}
	s.writeJSON(w, health)
}
