package api

import (
	"sync"

	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

const subscriberBuffer = 64

// Event is one message on the dashboard stream.
type Event struct {
	Type      string             `json:"type"` // alert|candidate
	Severity  string             `json:"severity,omitempty"`
	Alert     *model.AlertRecord `json:"alert,omitempty"`
	Candidate *model.Candidate   `json:"candidate,omitempty"`
}

// Hub broadcasts alerts and candidate events to websocket subscribers. It is a
// report display; slow subscribers lose events instead of stalling the others.
type Hub struct {
	log  *logger.Logger
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{log: log, subs: map[chan Event]struct{}{}}
}

func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Show(a model.AlertRecord) {
	h.broadcast(Event{Type: "alert", Severity: rules.Severity(a.Category), Alert: &a})
}

func (h *Hub) ShowCandidate(c model.Candidate) {
	h.broadcast(Event{Type: "candidate", Candidate: &c})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			metrics.DisplayDrops.WithLabelValues("websocket").Inc()
			h.log.Debug().Str("type", ev.Type).Msg("dropped event for slow websocket client")
		}
	}
}
