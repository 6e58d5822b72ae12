package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/events"
)

// LoginRequest is the body of POST /auth
type LoginRequest struct {
	Provider domain.Provider `json:"provider"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.repo.GetUser(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Provider {
	case domain.ProviderGoogle, domain.ProviderGitHub:
	default:
		s.writeError(w, "provider must be google or github", http.StatusBadRequest)
		return
	}

	user, err := s.repo.Login(r.Context(), req.Provider)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(events.UserChanged, events.Notice{Detail: "login"})
	s.writeJSON(w, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.chat.Logout(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"sessionId": sessionID})
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := s.repo.ListBookmarks(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	s.writeJSON(w, bookmarks)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.repo.ListApps(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if apps == nil {
		apps = []domain.AppItem{}
	}
	s.writeJSON(w, apps)
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.repo.GetApp(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, app)
}
