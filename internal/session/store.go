// Package session holds the generated content of one editing session as a
// sequence of immutable snapshots.
package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
)

var (
	ErrStale        = errors.New("session: result belongs to an older generation")
	ErrNoContent    = errors.New("session: nothing generated yet")
	ErrLastSection  = errors.New("session: cannot delete the last section")
	ErrSectionIndex = errors.New("session: section index out of range")
	ErrSectionGone  = errors.New("session: section was removed while the operation ran")
	ErrBadOrder     = errors.New("session: order must list every section exactly once")
	ErrNoBackend    = errors.New("session: website has no backend specification")
	ErrBusy         = errors.New("session: operation already running")
)

// Status tells observers what is in flight. Index fields are -1 when idle.
type Status struct {
	Generating        bool              `json:"generating"`
	GeneratingImages  bool              `json:"generatingImages"`
	ImageProgress     imagegen.Progress `json:"imageProgress"`
	ImageIndex        int               `json:"imageIndex"`
	EditingIndex      int               `json:"editingIndex"`
	GeneratingBackend bool              `json:"generatingBackend"`
}

func idle() Status {
	return Status{ImageIndex: -1, EditingIndex: -1}
}

// Snapshot is one committed state. Snapshots are never modified after they
// are published.
type Snapshot struct {
	ID         string                    `json:"id"`
	Version    uint64                    `json:"version"`
	Epoch      uint64                    `json:"epoch"`
	Prompt     string                    `json:"prompt,omitempty"`
	Tier       string                    `json:"tier,omitempty"`
	Website    *website.GeneratedWebsite `json:"website,omitempty"`
	Validation *website.ValidationResult `json:"validation,omitempty"`
	Code       *website.GeneratedCode    `json:"code,omitempty"`
	CodeSource string                    `json:"codeSource,omitempty"`
	Status     Status                    `json:"status"`
	Error      string                    `json:"error,omitempty"`
	SavedID    string                    `json:"savedId,omitempty"`
	SavedSlug  string                    `json:"savedSlug,omitempty"`
	UpdatedAt  time.Time                 `json:"updatedAt"`

	// keys identify sections across reorders and deletes; keys[i] belongs
	// to Website.Sections[i].
	keys []string
}

// clone copies everything a command may change. Code and Validation are
// replaced wholesale, never edited, so they are shared.
func (s *Snapshot) clone() *Snapshot {
	out := *s
	if s.Website != nil {
		w := s.Website.Clone()
		out.Website = &w
	}
	out.keys = slices.Clone(s.keys)
	return &out
}

func (s *Snapshot) indexOf(key string) int {
	return slices.Index(s.keys, key)
}

func (s *Snapshot) section(index int) (website.Section, string, error) {
	if s.Website == nil {
		return website.Section{}, "", ErrNoContent
	}
	if index < 0 || index >= len(s.Website.Sections) {
		return website.Section{}, "", ErrSectionIndex
	}
	return s.Website.Sections[index], s.keys[index], nil
}

func (s *Snapshot) revalidate() {
	if s.Website == nil {
		s.Validation = nil
		return
	}
	v := website.Validate(*s.Website)
	s.Validation = &v
}

// Store publishes snapshots to subscribers. All writes go through Update,
// which serializes them.
type Store struct {
	mu     sync.Mutex
	cur    *Snapshot
	subs   map[uint64]chan *Snapshot
	nextID uint64
	now    func() time.Time
}

func NewStore(id string) *Store {
	s := &Store{
		subs: map[uint64]chan *Snapshot{},
		now:  time.Now,
	}
	s.cur = &Snapshot{ID: id, Status: idle(), UpdatedAt: s.now()}
	return s
}

// Current returns the latest snapshot.
func (s *Store) Current() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update applies fn to a copy of the current snapshot and commits it. When
// fn fails nothing is committed.
func (s *Store) Update(fn func(*Snapshot) error) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(fn)
}

// UpdateAt is Update for results of work started at epoch. It fails with
// ErrStale when a newer generation has started since.
func (s *Store) UpdateAt(epoch uint64, fn func(*Snapshot) error) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.Epoch != epoch {
		return s.cur, ErrStale
	}
	return s.commit(fn)
}

func (s *Store) commit(fn func(*Snapshot) error) (*Snapshot, error) {
	next := s.cur.clone()
	if err := fn(next); err != nil {
		return s.cur, err
	}
	next.Version = s.cur.Version + 1
	next.UpdatedAt = s.now()
	s.cur = next
	for _, ch := range s.subs {
		offer(ch, next)
	}
	return next, nil
}

// offer delivers snap, replacing an undelivered older snapshot so a slow
// reader always ends up with the latest one.
func offer(ch chan *Snapshot, snap *Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Subscribe returns a channel that receives the current snapshot and then
// every later one. Call cancel to stop.
func (s *Store) Subscribe() (<-chan *Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan *Snapshot, 1)
	ch <- s.cur
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}
