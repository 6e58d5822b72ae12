package events

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	defaultBufferSize = 64
	defaultMaxEvents  = 1000
)

// Broker fans events out to subscribers and keeps a bounded history so
// reconnecting clients can resume from the last event they saw.
type Broker[T any] struct {
	mu         sync.RWMutex
	subs       map[chan Event[T]]subscription
	history    []Event[T]
	maxEvents  int
	bufferSize int
	done       chan struct{}
	logger     *log.Logger
	now        func() time.Time
}

type subscription struct {
	id      string
	filters []EventFilter
}

// NewBroker creates a new broker with default settings
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithOptions[T](defaultBufferSize, defaultMaxEvents)
}

// NewBrokerWithOptions creates a broker with a per-subscriber buffer and a
// history bound.
func NewBrokerWithOptions[T any](channelBufferSize, maxEvents int) *Broker[T] {
	if channelBufferSize <= 0 {
		channelBufferSize = defaultBufferSize
	}
	if maxEvents < 0 {
		maxEvents = 0
	}
	return &Broker[T]{
		subs:       make(map[chan Event[T]]subscription),
		history:    make([]Event[T], 0, maxEvents),
		maxEvents:  maxEvents,
		bufferSize: channelBufferSize,
		done:       make(chan struct{}),
		logger:     log.Default(),
		now:        time.Now,
	}
}

// SetLogger replaces the broker's logger
func (b *Broker[T]) SetLogger(logger *log.Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Publish records the event and delivers it to matching subscribers. Slow
// subscribers lose events rather than block the publisher.
func (b *Broker[T]) Publish(eventType EventType, payload T, opts ...PublishOption) {
	var options PublishOptions
	for _, opt := range opts {
		opt(&options)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed() {
		return
	}

	event := Event[T]{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: b.now(),
		SessionID: options.SessionID,
	}
	b.record(event)

	for ch, sub := range b.subs {
		if !matches(event.Header(), sub.filters) {
			continue
		}
		select {
		case ch <- event:
		default:
			b.logger.Warn("Event channel full, dropping event", "subscriber", sub.id, "event", event.ID, "type", event.Type)
		}
	}
}

// Subscribe delivers events published from now on. The channel closes when
// ctx is done or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context, filters ...EventFilter) <-chan Event[T] {
	return b.SubscribeAfter(ctx, "", filters...)
}

// SubscribeAfter is Subscribe preceded by the retained events published after
// lastEventID. An unknown or empty id replays nothing.
func (b *Broker[T]) SubscribeAfter(ctx context.Context, lastEventID string, filters ...EventFilter) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	backlog := b.after(lastEventID, filters)
	ch := make(chan Event[T], b.bufferSize+len(backlog))
	for _, ev := range backlog {
		ch <- ev
	}
	if b.closed() {
		close(ch)
		return ch
	}
	b.subs[ch] = subscription{id: uuid.NewString(), filters: filters}

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(ch)
		case <-b.done:
		}
	}()
	return ch
}

func (b *Broker[T]) unsubscribe(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// record appends to the history, dropping the oldest entries past the bound.
// Callers hold b.mu.
func (b *Broker[T]) record(event Event[T]) {
	if b.maxEvents == 0 {
		return
	}
	if len(b.history) == b.maxEvents {
		copy(b.history, b.history[1:])
		b.history = b.history[:b.maxEvents-1]
	}
	b.history = append(b.history, event)
}

// after returns retained events newer than id. Callers hold b.mu.
func (b *Broker[T]) after(id string, filters []EventFilter) []Event[T] {
	if id == "" {
		return nil
	}
	start := -1
	for i := len(b.history) - 1; i >= 0; i-- {
		if b.history[i].ID == id {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	var out []Event[T]
	for _, ev := range b.history[start:] {
		if matches(ev.Header(), filters) {
			out = append(out, ev)
		}
	}
	return out
}

// History returns retained events matching filters, oldest first
func (b *Broker[T]) History(filters ...EventFilter) []Event[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event[T], 0, len(b.history))
	for _, ev := range b.history {
		if matches(ev.Header(), filters) {
			out = append(out, ev)
		}
	}
	return out
}

// Stats returns broker statistics
func (b *Broker[T]) Stats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BrokerStats{
		Subscribers: len(b.subs),
		Retained:    len(b.history),
		MaxEvents:   b.maxEvents,
		Shutdown:    b.closed(),
	}
}

// BrokerStats contains broker statistics
type BrokerStats struct {
	Subscribers int  `json:"subscribers"`
	Retained    int  `json:"retained"`
	MaxEvents   int  `json:"maxEvents"`
	Shutdown    bool `json:"shutdown"`
}

// closed reports whether Shutdown ran. Callers hold b.mu.
func (b *Broker[T]) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Shutdown closes every subscriber channel and drops the history
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed() {
		return
	}
	close(b.done)

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.logger.Debug("Event broker shut down", "history", len(b.history))
	b.history = nil
}

func matches(h Header, filters []EventFilter) bool {
	for _, f := range filters {
		if !f(h) {
			return false
		}
	}
	return true
}
