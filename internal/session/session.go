// Package session owns one monitoring run: its cursors, window and alert log,
// and the background loop that drives ingestion through detection to reporting.
//
// States: Idle -> Running -> StoppingRequested -> Stopped. A Stopped session
// may be started again; it starts from a clean slate.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/viniciushammett/go-log-stream-detector/internal/cursor"
	"github.com/viniciushammett/go-log-stream-detector/internal/detector"
	"github.com/viniciushammett/go-log-stream-detector/internal/export"
	"github.com/viniciushammett/go-log-stream-detector/internal/ingest"
	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/parser"
	"github.com/viniciushammett/go-log-stream-detector/internal/report"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

const DefaultPollInterval = time.Second

type AlreadyRunningError struct {
	State model.SessionState
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("session already active (state %s)", e.State)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func realTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

type Deps struct {
	Parser    parser.Parser
	Scorer    ml.Scorer
	Confirmer ml.Confirmer
	Rules     *rules.Set
	Reporter  *report.Reporter
	Log       *logger.Logger
}

type Options struct {
	PollInterval time.Duration
	Detector     detector.Options
	// Watch adds fsnotify wake-ups on top of the poll interval.
	Watch      bool
	TickerFunc TickerFunc
	Now        func() time.Time
}

type Status struct {
	State      model.SessionState `json:"state"`
	Root       string             `json:"root"`
	Extensions []string           `json:"extensions"`
	StartedAt  *time.Time         `json:"startedAt,omitempty"`
	Cursors    []model.FileCursor `json:"cursors"`
	Alerts     int                `json:"alerts"`
	WindowLen  int                `json:"windowLen"`
}

// Session drives one monitoring run. After Stop it stays Stopped, keeping its
// alerts readable, until the next Start resets it to Idle and then Running.
type Session struct {
	deps    Deps
	opts    Options
	log     *logger.Logger
	cursors *cursor.Store
	det     *detector.Detector

	mu        sync.Mutex
	state     model.SessionState
	root      string
	exts      []string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(deps Deps, opts Options) *Session {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewResp()
	}
	if deps.Scorer == nil {
		deps.Scorer = ml.NewZScore(0, 0)
	}
	if deps.Confirmer == nil {
		w := opts.Detector.WindowSize
		if w <= 0 {
			w = detector.DefaultWindowSize
		}
		deps.Confirmer = ml.NewReconstructor(ml.DefaultProfile(w))
	}
	if deps.Rules == nil {
		deps.Rules = rules.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = report.New(deps.Log, 0)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickerFunc == nil {
		opts.TickerFunc = realTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Detector.CandidateHook == nil {
		opts.Detector.CandidateHook = deps.Reporter.Candidate
	}
	return &Session{
		deps:    deps,
		opts:    opts,
		log:     deps.Log,
		cursors: cursor.New(),
		det:     detector.New(deps.Scorer, deps.Confirmer, opts.Detector, deps.Log),
	}
}

// Start begins monitoring root. It fails with *AlreadyRunningError unless the
// session is Idle or Stopped.
func (s *Session) Start(root string, extensions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.Idle && s.state != model.Stopped {
		return &AlreadyRunningError{State: s.state}
	}
	st, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("watch root %s: not a directory", root)
	}
	s.state = model.Idle

	s.det.Reset()
	s.deps.Reporter.Alerts().Reset()
	s.cursors.Reset()

	eng := ingest.New(s.cursors, extensions, s.log)
	s.exts = normalized(extensions)
	s.root = root
	s.startedAt = s.opts.Now()

	ctx, cancel := context.WithCancel(context.Background())
	var watcher *ingest.Watcher
	if s.opts.Watch {
		watcher, err = ingest.NewWatcher(root, eng.Match, s.log)
		if err != nil {
			s.log.Warn().Err(err).Str("root", root).Msg("fsnotify unavailable, polling only")
			watcher = nil
		}
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = model.Running
	metrics.SessionRunning.Set(1)
	s.log.Info().Str("root", root).Strs("extensions", s.exts).Dur("interval", s.opts.PollInterval).Msg("session started")

	go s.loop(ctx, eng, root, watcher, s.done)
	return nil
}

func normalized(exts []string) []string {
	if len(exts) == 0 {
		exts = ingest.DefaultExtensions
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, ingest.NormalizeExt(e))
	}
	return out
}

// Stop requests the loop to exit. Safe from any goroutine; a no-op unless Running.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.Running {
		return
	}
	s.state = model.StoppingRequested
	s.cancel()
	s.log.Info().Msg("session stop requested")
}

// Wait blocks until the current run reaches Stopped or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{State: s.state, Root: s.root, Extensions: append([]string(nil), s.exts...)}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	s.mu.Unlock()

	st.Cursors = s.cursors.Snapshot()
	st.Alerts = s.deps.Reporter.Alerts().Len()
	st.WindowLen = s.det.WindowLen()
	return st
}

// Alerts returns a copy of this run's alerts in report order.
func (s *Session) Alerts() []model.AlertRecord { return s.deps.Reporter.Alerts().Snapshot() }

// Export writes this run's alerts as CSV.
func (s *Session) Export(w io.Writer) error { return export.WriteCSV(w, s.Alerts()) }

func (s *Session) loop(ctx context.Context, eng *ingest.Engine, root string, watcher *ingest.Watcher, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.state = model.Stopped
		s.mu.Unlock()
		metrics.SessionRunning.Set(0)
		close(done)
		s.log.Info().Str("root", root).Msg("session stopped")
	}()

	tk := s.opts.TickerFunc(s.opts.PollInterval)
	defer tk.Stop()

	var wake <-chan struct{}
	if watcher != nil {
		go watcher.Run(ctx)
		wake = watcher.C()
	}

	for {
		if ctx.Err() != nil {
			return
		}
		s.iterate(ctx, eng, root)
		select {
		case <-ctx.Done():
			return
		case <-tk.C():
		case <-wake:
		}
	}
}

// iterate runs one poll. A panic aborts only this iteration.
func (s *Session) iterate(ctx context.Context, eng *ingest.Engine, root string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("poll iteration aborted")
		}
	}()

	lines, err := eng.Poll(ctx, root)
	if err != nil {
		s.log.Warn().Err(err).Msg("poll failed")
		return
	}
	for _, l := range lines {
		if ctx.Err() != nil {
			return
		}
		s.handle(ctx, l)
	}
}

func (s *Session) handle(ctx context.Context, l ingest.Line) {
	rec, ok := s.parse(l)
	if !ok {
		metrics.ParseFailures.Inc()
		s.log.Debug().Str("file", l.Path).Uint64("line", l.Number).Msg("unparsable line")
		return
	}
	if rec.SourceFile == "" {
		rec.SourceFile = l.Path
	}
	if rec.LineNumber == 0 {
		rec.LineNumber = l.Number
	}

	out := s.det.Process(ctx, rec)
	if !out.Confirmed {
		return
	}
	cls := s.deps.Rules.Classify(rec.FeatureValue, rec.RawText)
	s.deps.Reporter.Report(report.NewAlert(rec, *out.Confirmation, cls, s.opts.Now()))
}

// parse treats a panicking parser like an unparsable line.
func (s *Session) parse(l ingest.Line) (rec model.LogRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Interface("panic", r).Str("file", l.Path).Uint64("line", l.Number).Msg("parser panic")
			rec, ok = model.LogRecord{}, false
		}
	}()
	return s.deps.Parser.Parse(l.Text)
}
