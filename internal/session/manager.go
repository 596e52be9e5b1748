package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/redirect10-prog/siteForge-ai/internal/metrics"
)

var ErrNotFound = errors.New("session: not found")

const (
	DefaultCapacity = 1024
	DefaultTTL      = 2 * time.Hour
)

// Manager keeps live sessions in memory. Idle sessions expire after the TTL
// and the least recently used ones are evicted past capacity.
type Manager struct {
	deps  Deps
	cache *expirable.LRU[string, *Session]
}

func NewManager(deps Deps, capacity int, ttl time.Duration) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	onEvict := func(string, *Session) { metrics.ActiveSessions.Dec() }
	return &Manager{
		deps:  deps,
		cache: expirable.NewLRU[string, *Session](capacity, onEvict, ttl),
	}
}

// Create starts an empty session owned by ownerID. Zero means anonymous.
func (m *Manager) Create(ownerID uint) *Session {
	s := New(uuid.NewString(), ownerID, m.deps)
	m.cache.Add(s.ID(), s)
	metrics.ActiveSessions.Inc()
	return s
}

// Get returns the session when ownerID owns it and refreshes its TTL.
func (m *Manager) Get(id string, ownerID uint) (*Session, error) {
	s, ok := m.cache.Get(id)
	if !ok || s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	m.cache.Add(id, s)
	return s, nil
}

// Close drops the session.
func (m *Manager) Close(id string, ownerID uint) error {
	if _, err := m.Get(id, ownerID); err != nil {
		return err
	}
	m.cache.Remove(id)
	return nil
}

func (m *Manager) Len() int { return m.cache.Len() }
