package editor

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrLocked is returned when another edit holds the lock.
var ErrLocked = errors.New("editor: an edit is already in progress")

// Lock allows one edit at a time over a piece of content. The holder gets a
// token; only that token releases it.
type Lock struct {
	mu    sync.Mutex
	token string
	index int
}

// TryAcquire takes the lock for the section at index.
func (l *Lock) TryAcquire(index int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return "", ErrLocked
	}
	l.token = uuid.NewString()
	l.index = index
	return l.token, nil
}

// Release frees the lock when token is the current one.
func (l *Lock) Release(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token == "" || token != l.token {
		return false
	}
	l.token = ""
	l.index = 0
	return true
}

// Holding reports the section being edited, if any.
func (l *Lock) Holding() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index, l.token != ""
}
