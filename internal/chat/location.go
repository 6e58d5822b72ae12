package chat

import (
	"context"
	"time"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// DefaultLocationTimeout bounds the wait for a location fix
const DefaultLocationTimeout = 2 * time.Second

// LocationProvider returns the device location, if known
type LocationProvider interface {
	Locate(ctx context.Context) (*domain.Location, error)
}

// LocationFunc adapts a function to LocationProvider
type LocationFunc func(ctx context.Context) (*domain.Location, error)

// Locate implements LocationProvider
func (f LocationFunc) Locate(ctx context.Context) (*domain.Location, error) {
	return f(ctx)
}

// StaticLocation always reports the same coordinates
type StaticLocation domain.Location

// Locate implements LocationProvider
func (s StaticLocation) Locate(context.Context) (*domain.Location, error) {
	loc := domain.Location(s)
	return &loc, nil
}

// ResolveLocation asks p for a location but never waits longer than
// timeout. Any failure resolves to nil.
func ResolveLocation(ctx context.Context, p LocationProvider, timeout time.Duration) *domain.Location {
	if p == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultLocationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		loc *domain.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		loc, err := p.Locate(ctx)
		ch <- result{loc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil
		}
		return r.loc
	case <-ctx.Done():
		return nil
	}
}
