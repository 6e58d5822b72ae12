package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/entrepeneur4lyf/spark/internal/chat"
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/events"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

// maxMessageBody bounds a message upload, image data URI included
const maxMessageBody = 20 << 20

// SendMessageRequest is the body of POST /sessions/{id}/messages
type SendMessageRequest struct {
	Text      string           `json:"text"`
	Image     string           `json:"image,omitempty"`
	ImageSize domain.ImageSize `json:"imageSize,omitempty"`
}

// TurnResponse reports a finished turn
type TurnResponse struct {
	SessionID   string          `json:"sessionId"`
	UserMessage *domain.Message `json:"userMessage,omitempty"`
	Reply       domain.Message  `json:"reply"`
	Session     *domain.Session `json:"session,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
	Error       string          `json:"error,omitempty"`
	Stale       bool            `json:"stale,omitempty"`
}

func newTurnResponse(res *chat.TurnResult) TurnResponse {
	out := TurnResponse{
		SessionID:   res.SessionID,
		UserMessage: res.UserMessage,
		Reply:       res.Reply,
		Session:     res.Session,
		Stale:       res.Stale,
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, d.String())
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// handleBootstrap picks the initial session: the shared one when it exists
// locally, else the most recent, else a new id.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	sel, err := s.chat.Bootstrap(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	user, _ := s.repo.GetUser(r.Context())
	s.writeJSON(w, map[string]any{
		"sessionId": sel.SessionID,
		"session":   sel.Session,
		"shared":    sel.Shared,
		"user":      user,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.ListSessions(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	s.writeJSON(w, sessions)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	id := s.chat.NewSession()
	s.writeJSONStatus(w, http.StatusCreated, map[string]string{"sessionId": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.repo.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.repo.DeleteSession(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(events.SessionDeleted, events.Notice{SessionID: id})

	resp := map[string]string{"deleted": id}
	if s.chat.ActiveSession() == id {
		resp["sessionId"] = s.chat.NewSession()
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.chat.Activate(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"sessionId": id, "session": session})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody)).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch req.ImageSize {
	case "", domain.ImageSize1K, domain.ImageSize2K, domain.ImageSize4K:
	default:
		s.writeError(w, "imageSize must be 1K, 2K or 4K", http.StatusBadRequest)
		return
	}

	res, err := s.chat.SendTurn(r.Context(), chat.TurnRequest{
		SessionID: mux.Vars(r)["id"],
		Text:      req.Text,
		Image:     req.Image,
		Settings:  domain.ImageSettings{Size: req.ImageSize},
	})
	s.writeTurn(w, res, err)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.chat.Regenerate(r.Context(), mux.Vars(r)["id"])
	s.writeTurn(w, res, err)
}

func (s *Server) writeTurn(w http.ResponseWriter, res *chat.TurnResult, err error) {
	if err != nil && !errors.Is(err, chat.ErrStaleTurn) {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, newTurnResponse(res))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]bool{"cancelled": s.chat.Cancel(mux.Vars(r)["id"])})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	origin := s.origin
	if origin == "" {
		origin = "http://" + r.Host
	}
	s.writeJSON(w, map[string]string{"url": storage.ShareLink(origin, id)})
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookmarked, err := s.repo.ToggleBookmark(r.Context(), vars["id"], vars["messageId"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	detail := "removed"
	if bookmarked {
		detail = "added"
	}
	s.publish(events.BookmarkToggled, events.Notice{SessionID: vars["id"], MessageID: vars["messageId"], Detail: detail})
	s.writeJSON(w, map[string]bool{"bookmarked": bookmarked})
}
