package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/google/uuid"
)

// Derived-field defaults
const (
	DefaultSessionTitle = "新对话"
	UnknownQuestion     = "Unknown Question"

	titleRunes   = 20
	previewRunes = 30
)

// Repository is the persistence contract used by the orchestrator and the
// API. Reads of absent or unreadable collections return empty results.
type Repository interface {
	GetUser(ctx context.Context) (*domain.User, error)
	Login(ctx context.Context, provider domain.Provider) (*domain.User, error)
	Logout(ctx context.Context) error

	ListSessions(ctx context.Context) ([]domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	SaveSession(ctx context.Context, id string, messages []domain.Message) (*domain.Session, error)
	ReplaceMessage(ctx context.Context, sessionID string, msg domain.Message) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error

	ListBookmarks(ctx context.Context) ([]domain.Bookmark, error)
	ToggleBookmark(ctx context.Context, sessionID, messageID string) (bool, error)

	ListApps(ctx context.Context) ([]domain.AppItem, error)
	GetApp(ctx context.Context, id string) (*domain.AppItem, error)
}

// KVRepository implements Repository with one whole-collection document per
// namespace. Writes are read-modify-write; they are serialized within the
// process but remain last-write-wins across processes.
type KVRepository struct {
	store  KVStore
	logger *log.Logger
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// RepositoryOption customizes a KVRepository
type RepositoryOption func(*KVRepository)

// WithRepositoryLogger sets the logger
func WithRepositoryLogger(logger *log.Logger) RepositoryOption {
	return func(r *KVRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *KVRepository) {
		r.now = now
	}
}

// WithIDGenerator overrides id generation
func WithIDGenerator(newID func() string) RepositoryOption {
	return func(r *KVRepository) {
		r.newID = newID
	}
}

// NewKVRepository creates a repository over store
func NewKVRepository(store KVStore, opts ...RepositoryOption) *KVRepository {
	r := &KVRepository{
		store:  store,
		logger: log.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying key-value store
func (r *KVRepository) Store() KVStore {
	return r.store
}

// NewSessionID returns a fresh collision-resistant session id
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// ShareLink builds <origin>?session_id=<id>
func ShareLink(origin, sessionID string) string {
	return fmt.Sprintf("%s?session_id=%s", origin, url.QueryEscape(sessionID))
}

// --- user ---

func (r *KVRepository) GetUser(ctx context.Context) (*domain.User, error) {
	data, err := r.store.Get(ctx, KeyUser)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("Failed to read user", "error", err)
		}
		return nil, nil
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		r.logger.Warn("Ignoring unreadable user record", "error", err)
		return nil, nil
	}
	return &user, nil
}

var mockProfiles = map[domain.Provider]domain.User{
	domain.ProviderGoogle: {
		Name:   "Alex Chen",
		Email:  "alex.chen@gmail.com",
		Avatar: "https://images.unsplash.com/photo-1535713875002-d1d0cf377fde?auto=format&fit=crop&w=100&h=100",
	},
	domain.ProviderGitHub: {
		Name:   "Dev_Spark",
		Email:  "dev@github.com",
		Avatar: "https://images.unsplash.com/photo-1522075469751-3a6694fb2f61?auto=format&fit=crop&w=100&h=100",
	},
}

// Login signs in with a mock profile for provider
func (r *KVRepository) Login(ctx context.Context, provider domain.Provider) (*domain.User, error) {
	profile, ok := mockProfiles[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported login provider %q", provider)
	}
	user := profile
	user.ID = "user_" + r.newID()
	user.Provider = provider

	if err := r.putJSON(ctx, KeyUser, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout removes the stored user
func (r *KVRepository) Logout(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeyUser); err != nil {
		return fmt.Errorf("failed to clear user: %w", err)
	}
	return nil
}

// --- sessions ---

// ListSessions returns sessions newest first
func (r *KVRepository) ListSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, _ := loadCollection[domain.Session](ctx, r, KeySessions)
	sortSessions(sessions)
	return sessions, nil
}

func (r *KVRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	sessions, _ := loadCollection[domain.Session](ctx, r, KeySessions)
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i], nil
		}
	}
	return nil, ErrNotFound
}

// SaveSession stores messages under id and recomputes the derived fields.
// An empty message list is a no-op and returns nil.
func (r *KVRepository) SaveSession(ctx context.Context, id string, messages []domain.Message) (*domain.Session, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := loadCollection[domain.Session](ctx, r, KeySessions)
	if err != nil {
		return nil, err
	}
	session := r.upsertSession(&sessions, id, messages)
	if err := r.putJSON(ctx, KeySessions, sessions); err != nil {
		return nil, err
	}
	return &session, nil
}

// ReplaceMessage swaps the stored message with msg.ID for msg inside one
// locked read-modify-write. The stored bookmark flag is kept. A missing
// session or message yields ErrNotFound and nothing is written.
func (r *KVRepository) ReplaceMessage(ctx context.Context, sessionID string, msg domain.Message) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := loadCollection[domain.Session](ctx, r, KeySessions)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID != sessionID {
			continue
		}
		mi := sessions[i].FindMessage(msg.ID)
		if mi < 0 {
			return nil, fmt.Errorf("message %s: %w", msg.ID, ErrNotFound)
		}
		messages := domain.CloneMessages(sessions[i].Messages)
		msg.IsBookmarked = messages[mi].IsBookmarked
		messages[mi] = msg.Clone()
		session := r.upsertSession(&sessions, sessionID, messages)
		if err := r.putJSON(ctx, KeySessions, sessions); err != nil {
			return nil, err
		}
		return &session, nil
	}
	return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
}

func (r *KVRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := loadCollection[domain.Session](ctx, r, KeySessions)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	return r.putJSON(ctx, KeySessions, kept)
}

func (r *KVRepository) upsertSession(sessions *[]domain.Session, id string, messages []domain.Message) domain.Session {
	updated := domain.Session{
		ID:          id,
		Title:       sessionTitle(messages),
		PreviewText: truncateRunes(messages[len(messages)-1].Text, previewRunes),
		UpdatedAt:   r.nextTimestamp(*sessions),
		Messages:    domain.CloneMessages(messages),
	}
	for i := range *sessions {
		if (*sessions)[i].ID == id {
			(*sessions)[i] = updated
			return updated
		}
	}
	*sessions = append(*sessions, updated)
	return updated
}

// nextTimestamp keeps updatedAt strictly increasing across saves
func (r *KVRepository) nextTimestamp(sessions []domain.Session) time.Time {
	now := r.now()
	for _, s := range sessions {
		if !now.After(s.UpdatedAt) {
			now = s.UpdatedAt.Add(time.Millisecond)
		}
	}
	return now
}

func sessionTitle(messages []domain.Message) string {
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		title := truncateRunes(m.Text, titleRunes)
		if len([]rune(m.Text)) > titleRunes {
			title += "..."
		}
		return title
	}
	return DefaultSessionTitle
}

func sortSessions(sessions []domain.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}

// --- bookmarks ---

// ListBookmarks returns bookmarks newest first
func (r *KVRepository) ListBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	bookmarks, _ := loadCollection[domain.Bookmark](ctx, r, KeyBookmarks)
	sort.SliceStable(bookmarks, func(i, j int) bool {
		return bookmarks[i].Timestamp.After(bookmarks[j].Timestamp)
	})
	return bookmarks, nil
}

// ToggleBookmark adds or removes the bookmark for a message and returns the
// new state. Adding snapshots the answer and derives an app when the answer
// embeds an html block; removing also removes that app. The message's
// isBookmarked flag is updated in its session.
func (r *KVRepository) ToggleBookmark(ctx context.Context, sessionID, messageID string) (bool, error) {
	user, _ := r.GetUser(ctx)
	if user == nil {
		return false, ErrLoginRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := loadCollection[domain.Session](ctx, r, KeySessions)
	if err != nil {
		return false, err
	}
	si := -1
	for i := range sessions {
		if sessions[i].ID == sessionID {
			si = i
			break
		}
	}
	if si < 0 {
		return false, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	mi := sessions[si].FindMessage(messageID)
	if mi < 0 {
		return false, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	msg := sessions[si].Messages[mi]

	bookmarks, err := loadCollection[domain.Bookmark](ctx, r, KeyBookmarks)
	if err != nil {
		return false, err
	}
	apps, err := loadCollection[domain.AppItem](ctx, r, KeyApps)
	if err != nil {
		return false, err
	}

	bookmarked := true
	if bi := indexBookmark(bookmarks, messageID); bi >= 0 {
		bookmarks = append(bookmarks[:bi], bookmarks[bi+1:]...)
		apps = removeApp(apps, messageID)
		bookmarked = false
	} else {
		question := UnknownQuestion
		if mi > 0 {
			question = sessions[si].Messages[mi-1].Text
		}
		now := r.now()
		bookmarks = append([]domain.Bookmark{{
			ID:        "bm_" + r.newID(),
			MessageID: messageID,
			Question:  question,
			Answer:    msg.Clone(),
			Timestamp: now,
		}}, bookmarks...)
		if app, ok := AppFromMessage(msg, now); ok && indexApp(apps, app.ID) < 0 {
			apps = append([]domain.AppItem{app}, apps...)
		}
	}

	if err := r.putJSON(ctx, KeyApps, apps); err != nil {
		return false, err
	}
	if err := r.putJSON(ctx, KeyBookmarks, bookmarks); err != nil {
		return false, err
	}

	messages := domain.CloneMessages(sessions[si].Messages)
	messages[mi].IsBookmarked = bookmarked
	r.upsertSession(&sessions, sessionID, messages)
	if err := r.putJSON(ctx, KeySessions, sessions); err != nil {
		return false, err
	}
	return bookmarked, nil
}

func indexBookmark(bookmarks []domain.Bookmark, messageID string) int {
	for i, b := range bookmarks {
		if b.MessageID == messageID {
			return i
		}
	}
	return -1
}

// --- apps ---

// ListApps returns apps newest first
func (r *KVRepository) ListApps(ctx context.Context) ([]domain.AppItem, error) {
	apps, _ := loadCollection[domain.AppItem](ctx, r, KeyApps)
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps, nil
}

func (r *KVRepository) GetApp(ctx context.Context, id string) (*domain.AppItem, error) {
	apps, _ := loadCollection[domain.AppItem](ctx, r, KeyApps)
	if i := indexApp(apps, id); i >= 0 {
		return &apps[i], nil
	}
	return nil, ErrNotFound
}

func indexApp(apps []domain.AppItem, id string) int {
	for i, a := range apps {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func removeApp(apps []domain.AppItem, id string) []domain.AppItem {
	kept := apps[:0]
	for _, a := range apps {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	return kept
}

// --- codec ---

// loadCollection reads a namespace. Absent or malformed content yields an
// empty collection. Only a failing store returns an error, so that a
// read-modify-write never overwrites data it could not read.
func loadCollection[T any](ctx context.Context, r *KVRepository, key string) ([]T, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		r.logger.Warn("Failed to read collection", "key", key, "error", err)
		return []T{}, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		r.logger.Warn("Ignoring unreadable collection", "key", key, "error", err)
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (r *KVRepository) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
