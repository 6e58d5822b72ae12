package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event[T]{}
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	b := NewBroker[Notice]()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx)

	b.Publish(TurnCompleted, Notice{SessionID: "s1", MessageID: "m1"}, WithSessionID("s1"))

	ev := receive(t, ch)
	assert.Equal(t, TurnCompleted, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, "m1", ev.Payload.MessageID)
	assert.NotEmpty(t, ev.ID)
}

func TestBroker_Filters(t *testing.T) {
	b := NewBroker[Notice]()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx, FilterByType(TurnDiscarded), FilterBySessionID("s2"))

	b.Publish(TurnCompleted, Notice{}, WithSessionID("s2"))
	b.Publish(TurnDiscarded, Notice{}, WithSessionID("s1"))
	b.Publish(TurnDiscarded, Notice{Detail: "wanted"}, WithSessionID("s2"))

	ev := receive(t, ch)
	assert.Equal(t, "wanted", ev.Payload.Detail)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra.Type)
	default:
	}
}

func TestBroker_UnsubscribeOnCancel(t *testing.T) {
	b := NewBroker[Notice]()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	assert.Equal(t, 1, b.Stats().Subscribers)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Stats().Subscribers)
}

func TestBroker_HistoryIsBounded(t *testing.T) {
	b := NewBrokerWithOptions[Notice](4, 3)
	defer b.Shutdown()

	for i := 0; i < 5; i++ {
		b.Publish(SessionSaved, Notice{Detail: string(rune('a' + i))})
	}
	history := b.History()
	require.Len(t, history, 3)
	assert.Equal(t, "c", history[0].Payload.Detail)
	assert.Equal(t, "e", history[2].Payload.Detail)

	assert.Len(t, b.History(FilterByType(TurnFailed)), 0)
}

func TestBroker_ShutdownClosesSubscribers(t *testing.T) {
	b := NewBroker[Notice]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx)

	b.Shutdown()
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, b.Stats().Shutdown)

	// publishing after shutdown is a no-op
	b.Publish(TurnStarted, Notice{})
	assert.Len(t, b.History(), 0)
}

func TestBroker_SubscribeAfterReplaysMissedEvents(t *testing.T) {
	b := NewBroker[Notice]()
	defer b.Shutdown()

	b.Publish(SessionSaved, Notice{Detail: "seen"}, WithSessionID("s1"))
	last := b.History()[0].ID
	b.Publish(SessionSaved, Notice{Detail: "other"}, WithSessionID("s2"))
	b.Publish(TurnCompleted, Notice{Detail: "missed"}, WithSessionID("s1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.SubscribeAfter(ctx, last, FilterBySessionID("s1"))

	assert.Equal(t, "missed", receive(t, ch).Payload.Detail)

	b.Publish(TurnStarted, Notice{Detail: "live"}, WithSessionID("s1"))
	assert.Equal(t, "live", receive(t, ch).Payload.Detail)
}

func TestBroker_SubscribeAfterUnknownID(t *testing.T) {
	b := NewBroker[Notice]()
	defer b.Shutdown()
	b.Publish(SessionSaved, Notice{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.SubscribeAfter(ctx, "evicted")
	select {
	case ev := <-ch:
		t.Fatalf("unexpected replay of %s", ev.Type)
	default:
	}
}

func TestBroker_SubscribeAfterShutdown(t *testing.T) {
	b := NewBroker[Notice]()
	b.Shutdown()
	_, ok := <-b.Subscribe(context.Background())
	assert.False(t, ok)
}
