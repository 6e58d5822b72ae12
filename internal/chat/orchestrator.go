// Package chat runs chat turns: it records the user message and a loading
// placeholder, asks the model for an answer, resolves directives in that
// answer and writes the finished reply back into the owning session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/events"
	"github.com/entrepeneur4lyf/spark/internal/llm"
	"github.com/entrepeneur4lyf/spark/internal/response"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

// Assembler turns raw model text into display-ready text
type Assembler interface {
	Assemble(ctx context.Context, in response.Input) response.Processed
}

// TurnRequest is one user submission
type TurnRequest struct {
	// SessionID defaults to the active session
	SessionID string
	Text      string
	// Image is an optional data URI
	Image    string
	Settings domain.ImageSettings
}

// TurnResult describes a finished turn
type TurnResult struct {
	SessionID string
	// UserMessage is nil for a regenerated turn
	UserMessage *domain.Message
	Reply       domain.Message
	Session     *domain.Session
	Diagnostics []response.Diagnostic
	// Err is the backend failure that produced an error reply
	Err error
	// Stale is true when the session was no longer active on completion
	Stale bool
}

// Failed reports whether the reply carries an error text
func (r *TurnResult) Failed() bool {
	return r.Err != nil
}

type inflight struct {
	cancel context.CancelFunc
	// activeAtStart is the active session when the turn began
	activeAtStart string
}

// Orchestrator coordinates turns against a repository, a completion backend
// and a response assembler. Only one turn per session may be in flight.
type Orchestrator struct {
	repo      storage.Repository
	backend   llm.CompletionBackend
	assembler Assembler
	locator   LocationProvider
	events    events.Publisher[events.Notice]
	logger    *log.Logger

	systemInstruction string
	locationTimeout   time.Duration
	imageSettings     domain.ImageSettings
	now               func() time.Time
	newID             func() string

	mu      sync.Mutex
	active  string
	running map[string]*inflight
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEvents sets the publisher for turn and session notices
func WithEvents(p events.Publisher[events.Notice]) Option {
	return func(o *Orchestrator) {
		o.events = p
	}
}

// WithLocationProvider enables location hints for grounding
func WithLocationProvider(p LocationProvider) Option {
	return func(o *Orchestrator) {
		o.locator = p
	}
}

// WithLocationTimeout bounds each location lookup
func WithLocationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.locationTimeout = d
		}
	}
}

// WithSystemInstruction overrides the system prompt
func WithSystemInstruction(s string) Option {
	return func(o *Orchestrator) {
		o.systemInstruction = s
	}
}

// WithImageSettings sets the defaults for fields a request leaves empty and
// the settings used for regenerated turns.
func WithImageSettings(s domain.ImageSettings) Option {
	return func(o *Orchestrator) {
		o.imageSettings = s
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides message id generation
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// New creates an Orchestrator
func New(repo storage.Repository, backend llm.CompletionBackend, assembler Assembler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:            repo,
		backend:         backend,
		assembler:       assembler,
		logger:          log.Default(),
		locationTimeout: DefaultLocationTimeout,
		imageSettings:   domain.ImageSettings{Size: domain.ImageSize1K},
		now:             time.Now,
		newID:           uuid.NewString,
		running:         make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// --- session selection ---

// ActiveSession returns the id of the active session
func (o *Orchestrator) ActiveSession() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Activate makes id the active session and returns its stored record, or
// nil when the session has not been saved yet.
func (o *Orchestrator) Activate(ctx context.Context, id string) (*domain.Session, error) {
	o.setActive(id)
	session, err := o.repo.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return session, nil
}

// NewSession activates a fresh, unsaved session
func (o *Orchestrator) NewSession() string {
	id := storage.NewSessionID()
	o.setActive(id)
	return id
}

// Bootstrap selects and activates the initial session
func (o *Orchestrator) Bootstrap(ctx context.Context, sharedID string) (storage.Selection, error) {
	sel, err := storage.SelectInitialSession(ctx, o.repo, sharedID)
	if err != nil {
		return sel, fmt.Errorf("failed to select initial session: %w", err)
	}
	o.setActive(sel.SessionID)
	return sel, nil
}

// Logout clears the user and starts a new session
func (o *Orchestrator) Logout(ctx context.Context) (string, error) {
	if err := o.repo.Logout(ctx); err != nil {
		return "", err
	}
	o.publish(events.UserChanged, events.Notice{Detail: "logout"}, "")
	return o.NewSession(), nil
}

func (o *Orchestrator) setActive(id string) {
	o.mu.Lock()
	o.active = id
	o.mu.Unlock()
	o.publish(events.SessionActivated, events.Notice{SessionID: id}, id)
}

// --- turns ---

// SendTurn submits a user message and waits for the reply
func (o *Orchestrator) SendTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Text) == "" && req.Image == "" {
		return nil, ErrEmptyInput
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = o.ActiveSession()
	}
	if sessionID == "" {
		sessionID = o.NewSession()
	}

	ctx, done, err := o.begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer done()

	history, err := o.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	user := domain.Message{
		ID:        o.newID(),
		Role:      domain.RoleUser,
		Text:      req.Text,
		Image:     req.Image,
		Timestamp: now,
	}
	settings := req.Settings
	if settings.Size == "" {
		settings.Size = o.imageSettings.Size
	}
	if settings.AspectRatio == "" {
		settings.AspectRatio = o.imageSettings.AspectRatio
	}

	result, err := o.run(ctx, turnPlan{
		sessionID: sessionID,
		retained:  append(domain.CloneMessages(history), user),
		history:   history,
		input:     user,
		settings:  settings,
		errText:   SendErrorText,
	})
	if result != nil {
		result.UserMessage = &user
	}
	return result, err
}

// Regenerate replaces the last model reply of a session with a new answer to
// the same user message. The user message is not repeated in the history.
func (o *Orchestrator) Regenerate(ctx context.Context, sessionID string) (*TurnResult, error) {
	if sessionID == "" {
		sessionID = o.ActiveSession()
	}
	ctx, done, err := o.begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer done()

	msgs, err := o.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	n := len(msgs)
	if n < 2 || msgs[n-1].Role != domain.RoleModel || msgs[n-2].Role != domain.RoleUser {
		return nil, ErrNothingToRegenerate
	}

	return o.run(ctx, turnPlan{
		sessionID: sessionID,
		retained:  msgs[:n-1],
		history:   msgs[:n-2],
		input:     msgs[n-2],
		settings:  o.imageSettings,
		errText:   RegenerateErrorText,
	})
}

// Cancel aborts the in-flight turn of a session. The placeholder is finalized
// with the error text. It reports whether a turn was running.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	t, ok := o.running[sessionID]
	o.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// Busy reports whether a turn is in flight for the session
func (o *Orchestrator) Busy(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[sessionID]
	return ok
}

type turnPlan struct {
	sessionID string
	// retained is the session content kept before the placeholder
	retained []domain.Message
	// history precedes input in the completion request
	history  []domain.Message
	input    domain.Message
	settings domain.ImageSettings
	errText  string
}

func (o *Orchestrator) run(ctx context.Context, plan turnPlan) (*TurnResult, error) {
	placeholder := domain.Message{
		ID:        o.newID(),
		Role:      domain.RoleModel,
		Timestamp: o.now(),
		IsLoading: true,
	}
	pending := append(domain.CloneMessages(plan.retained), placeholder)
	if _, err := o.repo.SaveSession(context.WithoutCancel(ctx), plan.sessionID, pending); err != nil {
		o.logger.Warn("failed to save pending turn", "session", plan.sessionID, "error", err)
	}
	o.publish(events.TurnStarted, events.Notice{SessionID: plan.sessionID, MessageID: placeholder.ID, Message: &placeholder}, plan.sessionID)

	req := llm.CompletionRequest{
		Turns:             buildTurns(plan.history, plan.input),
		SystemInstruction: o.systemInstruction,
		Location:          ResolveLocation(ctx, o.locator, o.locationTimeout),
	}

	result := &TurnResult{SessionID: plan.sessionID}
	reply := placeholder
	reply.IsLoading = false

	resp, err := llm.CompleteWithToolFallback(ctx, o.backend, req, o.logger)
	if err != nil {
		o.logger.Error("completion failed", "session", plan.sessionID, "error", err)
		reply.Text = plan.errText
		result.Err = err
	} else {
		processed := o.assembler.Assemble(ctx, response.Input{
			Text:            resp.Text,
			GroundingChunks: resp.GroundingChunks,
			SourceImage:     plan.input.Image,
			Settings:        plan.settings,
		})
		reply.Text = processed.Text
		reply.GroundingChunks = processed.GroundingChunks
		reply.ThemeColor = processed.ThemeColor
		result.Diagnostics = processed.Diagnostics
	}
	result.Reply = reply

	// the turn may have been cancelled; the reply is written regardless
	session, err := o.finalize(context.WithoutCancel(ctx), plan.sessionID, reply)
	if err != nil {
		o.logger.Warn("failed to store reply", "session", plan.sessionID, "error", err)
	}
	result.Session = session

	notice := events.Notice{SessionID: plan.sessionID, MessageID: reply.ID, Message: &reply}
	if o.switchedAway(plan.sessionID) {
		result.Stale = true
		o.publish(events.TurnDiscarded, notice, plan.sessionID)
		return result, ErrStaleTurn
	}
	if result.Err != nil {
		notice.Detail = result.Err.Error()
		o.publish(events.TurnFailed, notice, plan.sessionID)
	} else {
		o.publish(events.TurnCompleted, notice, plan.sessionID)
	}
	return result, nil
}

// finalize replaces the placeholder in the stored session. A session deleted
// while the turn ran is not recreated.
func (o *Orchestrator) finalize(ctx context.Context, sessionID string, reply domain.Message) (*domain.Session, error) {
	saved, err := o.repo.ReplaceMessage(ctx, sessionID, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to replace placeholder %s: %w", reply.ID, err)
	}
	o.publish(events.SessionSaved, events.Notice{SessionID: sessionID}, sessionID)
	return saved, nil
}

// begin marks the session busy. The returned context is cancelled by Cancel
// and done releases the session.
func (o *Orchestrator) begin(ctx context.Context, sessionID string) (context.Context, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.running[sessionID]; busy {
		return nil, nil, ErrSessionBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	o.running[sessionID] = &inflight{cancel: cancel, activeAtStart: o.active}
	return ctx, func() { o.end(sessionID) }, nil
}

func (o *Orchestrator) end(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.running[sessionID]; ok {
		t.cancel()
		delete(o.running, sessionID)
	}
}

// switchedAway reports whether the active session changed while the turn ran
// and the turn's session is not the one now shown.
func (o *Orchestrator) switchedAway(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.running[sessionID]
	if !ok {
		return false
	}
	return o.active != t.activeAtStart && o.active != sessionID
}

func (o *Orchestrator) loadMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	session, err := o.repo.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return session.Messages, nil
}

func (o *Orchestrator) publish(t events.EventType, n events.Notice, sessionID string) {
	if o.events == nil {
		return
	}
	o.events.Publish(t, n, events.WithSessionID(sessionID))
}
