package cache

import (
	"context"
	"sync"
	"time"

	"github.com/subsync/backend/internal/domain/billing"
)

// InMemorySessionStore implements billing.SessionStore with a local map.
// Suitable for single-instance deployments and tests.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]inMemorySessionEntry
	now      func() time.Time
}

type inMemorySessionEntry struct {
	session   billing.CheckoutSession
	expiresAt time.Time
}

// NewInMemorySessionStore creates a new in-memory checkout session store
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]inMemorySessionEntry),
		now:      time.Now,
	}
}

// SaveSession stores the session with the payment token TTL
func (s *InMemorySessionStore) SaveSession(ctx context.Context, cartID string, session *billing.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[cartID] = inMemorySessionEntry{
		session:   *session,
		expiresAt: s.now().Add(billing.PaymentTokenTTL),
	}
	return nil
}

// GetSession returns the cached session, or (nil, nil) when absent or expired
func (s *InMemorySessionStore) GetSession(ctx context.Context, cartID string) (*billing.CheckoutSession, error) {
	s.mu.RLock()
	entry, ok := s.sessions[cartID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, cartID)
		s.mu.Unlock()
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

// DeleteSession drops the session
func (s *InMemorySessionStore) DeleteSession(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, cartID)
	return nil
}

// Ensure InMemorySessionStore implements SessionStore
var _ billing.SessionStore = (*InMemorySessionStore)(nil)
