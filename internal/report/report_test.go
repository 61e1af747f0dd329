package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

type memSink struct {
	mu     sync.Mutex
	got    []string
	err    error
	closed bool
}

func (m *memSink) Accept(a model.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.got = append(m.got, a.ID)
	return nil
}

func (m *memSink) Close() error { m.closed = true; return nil }

type memDisplay struct {
	mu    sync.Mutex
	ids   []string
	cands []model.Candidate
	block chan struct{}
}

func (d *memDisplay) Show(a model.AlertRecord) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.ids = append(d.ids, a.ID)
	d.mu.Unlock()
}

func (d *memDisplay) ShowCandidate(c model.Candidate) {
	d.mu.Lock()
	d.cands = append(d.cands, c)
	d.mu.Unlock()
}

func (d *memDisplay) IDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

func alertIDs(as []model.AlertRecord) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

type plainDisplay struct{ n int }

func (p *plainDisplay) Show(model.AlertRecord) { p.n++ }

func TestFanOutIndependence(t *testing.T) {
	r := New(nil, 8)
	broken := &memSink{err: errors.New("disk full")}
	good := &memSink{}
	r.AddSink("broken", broken)
	r.AddSink("good", good)
	disp := &memDisplay{}
	r.AddDisplay("mem", disp)

	r.Report(model.AlertRecord{ID: "a1", Category: rules.Error})

	assert.Equal(t, []string{"a1"}, good.got)
	assert.Equal(t, 1, r.Alerts().Len())
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"a1"}, disp.IDs())
	assert.True(t, broken.closed)
	assert.True(t, good.closed)
}

func TestDisplayOrderAndSlowDisplay(t *testing.T) {
	r := New(nil, 2)
	slow := &memDisplay{block: make(chan struct{})}
	fast := &memDisplay{}
	r.AddDisplay("slow", slow)
	r.AddDisplay("fast", fast)

	ids := []string{"1", "2", "3", "4", "5"}
	done := make(chan struct{})
	go func() {
		for _, id := range ids {
			r.Report(model.AlertRecord{ID: id})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a slow display")
	}
	assert.Equal(t, 5, r.Alerts().Len())

	close(slow.block)
	require.NoError(t, r.Close(context.Background()))

	assert.Equal(t, ids, alertIDs(r.Alerts().Snapshot()))
	got := slow.IDs()
	assert.NotEmpty(t, got)
	assert.Less(t, len(got), 5, "slow display must have dropped some alerts")
	assert.Equal(t, "1", got[0])
	// whatever arrived, arrived in order
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestCandidatesOnlyReachCandidateDisplays(t *testing.T) {
	r := New(nil, 4)
	d := &memDisplay{}
	p := &plainDisplay{}
	r.AddDisplay("mem", d)
	r.AddDisplay("plain", p)

	r.Candidate(model.Candidate{LineNumber: 3, Score: 0.9})
	require.NoError(t, r.Close(context.Background()))

	require.Len(t, d.cands, 1)
	assert.Equal(t, uint64(3), d.cands[0].LineNumber)
	assert.Zero(t, p.n)

	// after Close nothing is queued and nothing panics
	r.Report(model.AlertRecord{ID: "late"})
	r.Candidate(model.Candidate{})
	assert.Equal(t, 1, r.Alerts().Len())
}

func TestNewAlertReasonFallback(t *testing.T) {
	rec := model.LogRecord{Timestamp: "t", SourceFile: "f.log", LineNumber: 4, FeatureValue: 60, RawText: "raw line"}
	now := time.Now()

	a := NewAlert(rec, ml.Confirmation{ReconstructionError: 2, IsAnomaly: true}, rules.Default().Classify(60, "raw line"), now)
	assert.Equal(t, rules.MediumSpike, a.Category)
	assert.Equal(t, "raw line", a.Reason)
	assert.Equal(t, 2.0, a.ReconstructionError)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, now, a.DetectedAt)

	b := NewAlert(rec, ml.Confirmation{}, rules.Default().Classify(1, "timeout"), now)
	assert.Equal(t, "Timeout in log", b.Reason)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAlertLog(t *testing.T) {
	var l AlertLog
	l.Append(model.AlertRecord{ID: "1"})
	l.Append(model.AlertRecord{ID: "2"})
	l.Append(model.AlertRecord{ID: "3"})

	snap := l.Snapshot()
	snap[0].ID = "mutated"
	assert.Equal(t, "1", l.Snapshot()[0].ID)

	last := l.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, "3", last[0].ID)

	l.Reset()
	assert.Zero(t, l.Len())
}

type panicSink struct{}

func (panicSink) Accept(model.AlertRecord) error { panic("sink exploded") }

func TestPanickingSinkDoesNotBlockOthers(t *testing.T) {
	r := New(nil, 4)
	good := &memSink{}
	r.AddSink("panics", panicSink{})
	r.AddSink("good", good)
	disp := &memDisplay{}
	r.AddDisplay("mem", disp)

	before := testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("panics"))
	require.NotPanics(t, func() { r.Report(model.AlertRecord{ID: "p1"}) })
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("panics")))

	assert.Equal(t, []string{"p1"}, good.got)
	assert.Equal(t, 1, r.Alerts().Len())
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"p1"}, disp.IDs())
}
