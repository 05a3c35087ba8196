package shiftsync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/feed"
)

// Manager hands out one live Syncer per user. The first request for a
// user builds the syncer and loads any shift already in progress; later
// requests reuse it, so the feed subscriptions and reconciliation loop
// persist across requests.
type Manager struct {
	store  Store
	feeds  feed.Feed
	logger *zap.Logger
	opts   Options

	mu     sync.Mutex
	byUser map[string]*Syncer
}

// NewManager builds an empty registry.
func NewManager(store Store, feeds feed.Feed, logger *zap.Logger, opts Options) *Manager {
	return &Manager{
		store:  store,
		feeds:  feeds,
		logger: logger,
		opts:   opts,
		byUser: make(map[string]*Syncer),
	}
}

// For returns the user's syncer, creating and loading it on first use.
func (m *Manager) For(ctx context.Context, userEmail string) (*Syncer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byUser[userEmail]; ok {
		return s, nil
	}

	s := New(m.store, m.feeds, m.logger, userEmail, m.opts)
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	m.byUser[userEmail] = s
	return s, nil
}

// Close tears down every syncer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, s := range m.byUser {
		s.Close()
		delete(m.byUser, email)
	}
}
