package storage

import (
	"context"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// Selection is the session chosen at load time
type Selection struct {
	SessionID string
	// Session is nil when a new, not yet persisted session was started
	Session *domain.Session
	// Shared is true when the requested shared session was found locally
	Shared bool
}

// SelectInitialSession picks the shared session when present locally, else
// the most recent session, else a fresh id.
func SelectInitialSession(ctx context.Context, repo Repository, sharedID string) (Selection, error) {
	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		return Selection{}, err
	}
	if sharedID != "" {
		for i := range sessions {
			if sessions[i].ID == sharedID {
				return Selection{SessionID: sharedID, Session: &sessions[i], Shared: true}, nil
			}
		}
	}
	if len(sessions) > 0 {
		return Selection{SessionID: sessions[0].ID, Session: &sessions[0]}, nil
	}
	return Selection{SessionID: NewSessionID()}, nil
}
