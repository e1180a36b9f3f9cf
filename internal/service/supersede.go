package service

import (
	"context"
	"sync"
)

// Superseder hands out per-key request contexts where starting a new
// request cancels the in-flight one for the same key. Detail loads and
// remote searches use it so only the latest response lands.
type Superseder struct {
	mu      sync.Mutex
	gen     uint64
	pending map[string]inflight
}

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// NewSuperseder creates an empty superseder.
func NewSuperseder() *Superseder {
	return &Superseder{
		pending: make(map[string]inflight),
	}
}

// Begin returns a child context for key, cancelling any in-flight request
// with the same key first. The returned cancel must be called when the
// request finishes; it only clears the bookkeeping entry if the request
// has not already been superseded by a newer one.
func (s *Superseder) Begin(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if prev, ok := s.pending[key]; ok {
		prev.cancel()
	}
	s.gen++
	gen := s.gen
	s.pending[key] = inflight{gen: gen, cancel: cancel}
	s.mu.Unlock()

	done := func() {
		s.mu.Lock()
		if current, ok := s.pending[key]; ok && current.gen == gen {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		cancel()
	}
	return ctx, done
}

// CancelAll cancels every in-flight request, e.g. on shutdown.
func (s *Superseder) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, req := range s.pending {
		req.cancel()
		delete(s.pending, key)
	}
}
