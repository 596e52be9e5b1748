package llm

import (
	"context"
	"sync"
)

// Reply is one scripted answer: text, or an error when Err is set.
type Reply struct {
	Text string
	Err  error
}

// Scripted answers calls from a fixed list, in order. Once the list is used
// up the last reply repeats. It records every request it saw. It serves
// offline runs and tests.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	calls    int
	requests []Request
}

func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

func (s *Scripted) Name() string { return "scripted" }
func (s *Scripted) Close() error { return nil }

func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if len(s.replies) == 0 {
		return "", ErrEmptyContent
	}
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	return r.Text, r.Err
}

// Calls returns how many requests were made.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns a copy of the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
