package report

import (
	"sync"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

// AlertLog is the append-only in-memory list of the session's alerts.
type AlertLog struct {
	mu    sync.RWMutex
	items []model.AlertRecord
}

func (l *AlertLog) Append(a model.AlertRecord) {
	l.mu.Lock()
	l.items = append(l.items, a)
	l.mu.Unlock()
}

// Snapshot returns a copy in report order.
func (l *AlertLog) Snapshot() []model.AlertRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.AlertRecord, len(l.items))
	copy(out, l.items)
	return out
}

// Last returns up to n of the most recent alerts, newest first.
func (l *AlertLog) Last(n int) []model.AlertRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.items) {
		n = len(l.items)
	}
	out := make([]model.AlertRecord, 0, n)
	for i := len(l.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.items[i])
	}
	return out
}

func (l *AlertLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *AlertLog) Reset() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}
