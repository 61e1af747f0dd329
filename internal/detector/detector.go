// Package detector runs the two-stage pipeline over parsed records: a cheap
// online scorer flags candidates and a window confirmer validates them.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/tracing"
	"github.com/viniciushammett/go-log-stream-detector/internal/util"
)

const (
	DefaultWindowSize         = 50
	DefaultCandidateThreshold = 0.6
	DefaultConfirmTimeout     = 2 * time.Second
)

type Options struct {
	WindowSize int
	// CandidateThreshold is in (0,1]; zero means unset and becomes 0.6.
	CandidateThreshold float64
	// ConfirmTimeout bounds one confirmer call; negative disables the bound.
	ConfirmTimeout time.Duration
	// ConfirmEveryFullWindow runs the confirmer on every full window instead of
	// only on candidates. The record is still only alerted if the confirmer says so.
	ConfirmEveryFullWindow bool
	CandidateHook          func(model.Candidate)
}

// Outcome describes what happened to one record.
type Outcome struct {
	Score        float64
	Candidate    bool
	Confirmed    bool
	Confirmation *ml.Confirmation
	Err          error
}

type Detector struct {
	scorer    ml.Scorer
	confirmer ml.Confirmer
	win       *util.Window
	opts      Options
	log       *logger.Logger
	tracer    trace.Tracer
}

func New(scorer ml.Scorer, confirmer ml.Confirmer, opts Options, log *logger.Logger) *Detector {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.CandidateThreshold == 0 {
		opts.CandidateThreshold = DefaultCandidateThreshold
	}
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Detector{
		scorer:    scorer,
		confirmer: confirmer,
		win:       util.NewWindow(opts.WindowSize),
		opts:      opts,
		log:       log,
		tracer:    tracing.Tracer(),
	}
}

type resetter interface{ Reset() }

// Reset empties the window and, when supported, the scorer state.
func (d *Detector) Reset() {
	d.win.Reset()
	metrics.WindowFill.Set(0)
	if r, ok := d.scorer.(resetter); ok {
		r.Reset()
	}
}

func (d *Detector) WindowLen() int { return d.win.Len() }

// Window returns a copy of the current window, oldest first.
func (d *Detector) Window() []float64 { return d.win.Values() }

// Process pushes rec into the window, scores it and, when gating allows,
// confirms the window ending at rec. Failures never escape as panics; they
// are logged and reported in Outcome.Err with Confirmed false.
func (d *Detector) Process(ctx context.Context, rec model.LogRecord) (out Outcome) {
	d.win.Push(rec.FeatureValue)
	metrics.WindowFill.Set(float64(d.win.Len()))

	score, err := d.score(ctx, rec)
	metrics.RecordsScored.Inc()
	if err != nil {
		d.log.Warn().Err(err).Str("file", rec.SourceFile).Uint64("line", rec.LineNumber).Msg("scorer failed")
		out.Err = err
		return out
	}
	out.Score = score
	out.Candidate = score > d.opts.CandidateThreshold

	if out.Candidate {
		metrics.Candidates.Inc()
		d.log.Debug().Str("file", rec.SourceFile).Uint64("line", rec.LineNumber).Float64("score", score).Msg("candidate")
		if d.opts.CandidateHook != nil {
			d.opts.CandidateHook(model.Candidate{
				SourceFile: rec.SourceFile, LineNumber: rec.LineNumber,
				FeatureValue: rec.FeatureValue, Score: score,
			})
		}
	}

	if !d.win.Full() || !(out.Candidate || d.opts.ConfirmEveryFullWindow) {
		return out
	}

	conf, err := d.confirm(ctx, rec, d.win.Values())
	if err != nil {
		metrics.Confirmations.WithLabelValues("error").Inc()
		var wErr *ml.InvalidWindowSizeError
		if errors.As(err, &wErr) {
			d.log.Error().Err(err).Str("file", rec.SourceFile).Uint64("line", rec.LineNumber).Msg("window size mismatch")
		} else {
			d.log.Warn().Err(err).Str("file", rec.SourceFile).Uint64("line", rec.LineNumber).Msg("confirmer failed")
		}
		out.Err = err
		return out
	}
	out.Confirmation = &conf
	out.Confirmed = conf.IsAnomaly
	if conf.IsAnomaly {
		metrics.Confirmations.WithLabelValues("anomaly").Inc()
	} else {
		metrics.Confirmations.WithLabelValues("normal").Inc()
	}
	return out
}

func (d *Detector) score(ctx context.Context, rec model.LogRecord) (s float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panic: %v", r)
		}
	}()
	return d.scorer.Score(ctx, rec.Features())
}

type confirmResult struct {
	c   ml.Confirmation
	err error
}

func (d *Detector) confirm(ctx context.Context, rec model.LogRecord, values []float64) (ml.Confirmation, error) {
	ctx, span := d.tracer.Start(ctx, "detector.confirm", trace.WithAttributes(
		attribute.String("log.file", rec.SourceFile),
		attribute.Int64("log.line", int64(rec.LineNumber)),
		attribute.Float64("log.resp", rec.FeatureValue),
		attribute.Int("window.size", len(values)),
	))
	defer span.End()

	start := time.Now()
	defer func() { metrics.ConfirmLatency.Observe(time.Since(start).Seconds()) }()

	if d.opts.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.ConfirmTimeout)
		defer cancel()
	}

	done := make(chan confirmResult, 1)
	go func() {
		var res confirmResult
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("confirmer panic: %v", r)
			}
			done <- res
		}()
		res.c, res.err = d.confirmer.Confirm(ctx, values)
	}()

	var res confirmResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("confirm: %w", ctx.Err())
	}
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return ml.Confirmation{}, res.err
	}
	span.SetAttributes(
		attribute.Float64("confirm.mse", res.c.ReconstructionError),
		attribute.Bool("confirm.anomaly", res.c.IsAnomaly),
	)
	return res.c, nil
}
