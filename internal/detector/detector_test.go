package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

type fixedScorer struct {
	score float64
	err   error
	n     int
	reset int
}

func (f *fixedScorer) Score(context.Context, map[string]float64) (float64, error) {
	f.n++
	return f.score, f.err
}

func (f *fixedScorer) Reset() { f.reset++ }

type panicScorer struct{}

func (panicScorer) Score(context.Context, map[string]float64) (float64, error) { panic("boom") }

// spikeConfirmer flags a window whose newest value is above 100.
type spikeConfirmer struct {
	mu    sync.Mutex
	calls [][]float64
	delay time.Duration
	err   error
}

func (c *spikeConfirmer) Confirm(ctx context.Context, values []float64) (ml.Confirmation, error) {
	c.mu.Lock()
	c.calls = append(c.calls, values)
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ml.Confirmation{}, ctx.Err()
		}
	}
	if c.err != nil {
		return ml.Confirmation{}, c.err
	}
	last := values[len(values)-1]
	return ml.Confirmation{ReconstructionError: last, IsAnomaly: last > 100}, nil
}

func (c *spikeConfirmer) Calls() [][]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func rec(n int, v float64) model.LogRecord {
	return model.LogRecord{SourceFile: "app.log", LineNumber: uint64(n), FeatureValue: v, RawText: "x"}
}

func TestNoConfirmBeforeWindowFull(t *testing.T) {
	conf := &spikeConfirmer{}
	d := New(&fixedScorer{score: 0.99}, conf, Options{WindowSize: 5}, nil)

	for i := 1; i <= 4; i++ {
		out := d.Process(context.Background(), rec(i, 1000))
		assert.True(t, out.Candidate)
		assert.False(t, out.Confirmed)
		assert.Nil(t, out.Confirmation)
	}
	assert.Empty(t, conf.Calls())
	assert.Equal(t, 4, d.WindowLen())

	out := d.Process(context.Background(), rec(5, 1000))
	assert.True(t, out.Confirmed)
	require.Len(t, conf.Calls(), 1)
}

func TestConfirmOnlyCandidates(t *testing.T) {
	conf := &spikeConfirmer{}
	sc := &fixedScorer{score: 0.6}
	d := New(sc, conf, Options{WindowSize: 3}, nil)

	for i := 1; i <= 5; i++ {
		out := d.Process(context.Background(), rec(i, 500))
		assert.False(t, out.Candidate, "0.6 is not above the threshold")
	}
	assert.Empty(t, conf.Calls())
	assert.Equal(t, 5, sc.n)
}

func TestConfirmEveryFullWindow(t *testing.T) {
	conf := &spikeConfirmer{}
	d := New(&fixedScorer{score: 0}, conf, Options{WindowSize: 3, ConfirmEveryFullWindow: true}, nil)

	var confirmed int
	for i := 1; i <= 5; i++ {
		if d.Process(context.Background(), rec(i, 500)).Confirmed {
			confirmed++
		}
	}
	assert.Len(t, conf.Calls(), 3)
	assert.Equal(t, 3, confirmed)
}

func TestWindowScenario(t *testing.T) {
	conf := &spikeConfirmer{}
	d := New(&fixedScorer{score: 1}, conf, Options{}, nil)
	ctx := context.Background()

	for i := 1; i <= 49; i++ {
		require.False(t, d.Process(ctx, rec(i, 1.0)).Confirmed)
	}
	assert.Equal(t, 49, d.WindowLen())
	assert.Empty(t, conf.Calls())

	out := d.Process(ctx, rec(50, 1.0))
	assert.False(t, out.Confirmed)
	require.NotNil(t, out.Confirmation)
	require.Len(t, conf.Calls(), 1)
	assert.Len(t, conf.Calls()[0], 50)

	out = d.Process(ctx, rec(51, 900))
	assert.True(t, out.Candidate)
	assert.True(t, out.Confirmed)
	calls := conf.Calls()
	require.Len(t, calls, 2)
	window := calls[1]
	require.Len(t, window, 50)
	assert.Equal(t, 900.0, window[49])
	for _, v := range window[:49] {
		assert.Equal(t, 1.0, v)
	}
}

func TestWindowOrderOldestFirst(t *testing.T) {
	conf := &spikeConfirmer{}
	d := New(&fixedScorer{score: 1}, conf, Options{WindowSize: 3}, nil)
	for i := 1; i <= 5; i++ {
		d.Process(context.Background(), rec(i, float64(i)))
	}
	calls := conf.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []float64{3, 4, 5}, calls[2])
	assert.Equal(t, []float64{3, 4, 5}, d.Window())
}

func TestSoftFailures(t *testing.T) {
	ctx := context.Background()

	d := New(&fixedScorer{err: errors.New("model offline")}, &spikeConfirmer{}, Options{WindowSize: 1}, nil)
	out := d.Process(ctx, rec(1, 900))
	assert.Error(t, out.Err)
	assert.False(t, out.Confirmed)

	d = New(panicScorer{}, &spikeConfirmer{}, Options{WindowSize: 1}, nil)
	out = d.Process(ctx, rec(1, 900))
	assert.ErrorContains(t, out.Err, "panic")
	assert.Equal(t, 1, d.WindowLen())

	d = New(&fixedScorer{score: 1}, &spikeConfirmer{err: errors.New("bad")}, Options{WindowSize: 1}, nil)
	out = d.Process(ctx, rec(1, 900))
	assert.Error(t, out.Err)
	assert.True(t, out.Candidate)
	assert.False(t, out.Confirmed)
}

func TestConfirmTimeoutIsSoft(t *testing.T) {
	conf := &spikeConfirmer{delay: time.Second}
	d := New(&fixedScorer{score: 1}, conf, Options{WindowSize: 1, ConfirmTimeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	out := d.Process(context.Background(), rec(1, 900))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.False(t, out.Confirmed)
}

func TestInvalidWindowSizeSurfaced(t *testing.T) {
	conf := ml.NewReconstructor(ml.DefaultProfile(10))
	d := New(&fixedScorer{score: 1}, conf, Options{WindowSize: 3}, nil)

	var out Outcome
	for i := 1; i <= 3; i++ {
		out = d.Process(context.Background(), rec(i, 1))
	}
	var wErr *ml.InvalidWindowSizeError
	require.ErrorAs(t, out.Err, &wErr)
	assert.Equal(t, 3, wErr.Got)
	assert.False(t, out.Confirmed)
}

func TestCandidateHookAndReset(t *testing.T) {
	var got []model.Candidate
	sc := &fixedScorer{score: 0.9}
	d := New(sc, &spikeConfirmer{}, Options{WindowSize: 2, CandidateHook: func(c model.Candidate) {
		got = append(got, c)
	}}, nil)

	d.Process(context.Background(), rec(7, 42))
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].LineNumber)
	assert.Equal(t, 0.9, got[0].Score)

	d.Reset()
	assert.Zero(t, d.WindowLen())
	assert.Equal(t, 1, sc.reset)
}
