// Package cursor tracks how many lines of each watched file were consumed.
package cursor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

// InvalidCursorError is returned when a caller tries to move a cursor backwards.
type InvalidCursorError struct {
	Path    string
	Current uint64
	Next    uint64
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("cursor for %s cannot move from %d back to %d", e.Path, e.Current, e.Next)
}

type Store struct {
	mu    sync.RWMutex
	lines map[string]uint64
}

func New() *Store { return &Store{lines: map[string]uint64{}} }

// Get returns the number of lines consumed from path, 0 if never seen.
func (s *Store) Get(path string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lines[path]
}

// Advance sets the consumed count for path. It never decreases.
func (s *Store) Advance(path string, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.lines[path]
	if n < cur {
		return &InvalidCursorError{Path: path, Current: cur, Next: n}
	}
	s.lines[path] = n
	return nil
}

// Track registers path with a zero cursor if it is not known yet.
func (s *Store) Track(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[path]; !ok {
		s.lines[path] = 0
	}
}

// Snapshot returns a copy of every cursor sorted by path.
func (s *Store) Snapshot() []model.FileCursor {
	s.mu.RLock()
	out := make([]model.FileCursor, 0, len(s.lines))
	for p, n := range s.lines {
		out = append(out, model.FileCursor{Path: p, LinesConsumed: n})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.lines = map[string]uint64{}
	s.mu.Unlock()
}
