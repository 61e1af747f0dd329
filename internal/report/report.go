// Package report fans confirmed alerts out to durable sinks, the in-memory
// alert log and live displays, in that order.
package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

const DefaultDisplayBuffer = 256

// Sink is a durable destination. Accept is called synchronously, once per alert.
type Sink interface {
	Accept(a model.AlertRecord) error
}

// Display is a live view. Show runs on a goroutine owned by the Reporter.
type Display interface {
	Show(a model.AlertRecord)
}

// CandidateDisplay is implemented by displays that also want "candidate detected" events.
type CandidateDisplay interface {
	ShowCandidate(c model.Candidate)
}

// NewAlert builds the record for a confirmed anomaly. An empty classification
// reason falls back to the raw line.
func NewAlert(rec model.LogRecord, conf ml.Confirmation, cls rules.Classification, now time.Time) model.AlertRecord {
	reason := cls.Reason
	if reason == "" {
		reason = rec.RawText
	}
	return model.AlertRecord{
		ID:                  uuid.NewString(),
		Timestamp:           rec.Timestamp,
		SourceFile:          rec.SourceFile,
		LineNumber:          rec.LineNumber,
		FeatureValue:        rec.FeatureValue,
		ReconstructionError: conf.ReconstructionError,
		Category:            cls.Category,
		SuggestedFix:        cls.SuggestedFix,
		Reason:              reason,
		RawText:             rec.RawText,
		DetectedAt:          now,
	}
}

type namedSink struct {
	name string
	sink Sink
}

type event struct {
	alert *model.AlertRecord
	cand  *model.Candidate
}

type displayWorker struct {
	name string
	d    Display
	q    chan event
	done chan struct{}
}

func (w *displayWorker) run() {
	defer close(w.done)
	for ev := range w.q {
		switch {
		case ev.alert != nil:
			w.d.Show(*ev.alert)
		case ev.cand != nil:
			if cd, ok := w.d.(CandidateDisplay); ok {
				cd.ShowCandidate(*ev.cand)
			}
		}
	}
}

type Reporter struct {
	log    *logger.Logger
	buffer int
	alerts *AlertLog

	mu       sync.RWMutex
	sinks    []namedSink
	displays []*displayWorker
	closed   bool
}

func New(log *logger.Logger, displayBuffer int) *Reporter {
	if log == nil {
		log = logger.Nop()
	}
	if displayBuffer <= 0 {
		displayBuffer = DefaultDisplayBuffer
	}
	return &Reporter{log: log, buffer: displayBuffer, alerts: &AlertLog{}}
}

func (r *Reporter) Alerts() *AlertLog { return r.alerts }

// AddSink registers a durable sink. Sinks are called in registration order.
func (r *Reporter) AddSink(name string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, namedSink{name, s})
}

// AddDisplay registers a live display and starts its goroutine.
func (r *Reporter) AddDisplay(name string, d Display) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	w := &displayWorker{name: name, d: d, q: make(chan event, r.buffer), done: make(chan struct{})}
	r.displays = append(r.displays, w)
	go w.run()
}

// Report delivers a to every sink, appends it to the alert log and queues it
// for every display. A failing sink or a full display queue never affects the others.
func (r *Reporter) Report(a model.AlertRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sinks {
		if err := accept(s.sink, a); err != nil {
			metrics.SinkErrors.WithLabelValues(s.name).Inc()
			r.log.Error().Err(err).Str("sink", s.name).Str("id", a.ID).Msg("sink write failed")
		}
	}
	r.alerts.Append(a)
	metrics.Alerts.WithLabelValues(a.Category).Inc()
	r.log.Warn().Str("id", a.ID).Str("file", a.SourceFile).Uint64("line", a.LineNumber).
		Str("category", a.Category).Float64("mse", a.ReconstructionError).Msg("anomaly")

	if r.closed {
		return
	}
	r.enqueue(event{alert: &a})
}

func accept(s Sink, a model.AlertRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.Accept(a)
}

// Candidate forwards a "candidate detected" event to displays that want it.
func (r *Reporter) Candidate(c model.Candidate) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	r.enqueue(event{cand: &c})
}

func (r *Reporter) enqueue(ev event) {
	for _, w := range r.displays {
		if ev.cand != nil {
			if _, ok := w.d.(CandidateDisplay); !ok {
				continue
			}
		}
		select {
		case w.q <- ev:
		default:
			metrics.DisplayDrops.WithLabelValues(w.name).Inc()
			r.log.Warn().Str("display", w.name).Msg("display queue full, event dropped")
		}
	}
}

// Close drains display queues until ctx is done, then closes sinks that are io.Closers.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, w := range r.displays {
		close(w.q)
	}
	displays, sinks := r.displays, r.sinks
	r.mu.Unlock()

	var err error
	for _, w := range displays {
		select {
		case <-w.done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	}
	for _, s := range sinks {
		if c, ok := s.sink.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}
