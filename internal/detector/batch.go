package detector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/parser"
	"github.com/viniciushammett/go-log-stream-detector/internal/report"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

// Batch analyses a finished file offline: every full window ending at a
// record is confirmed, with no online scorer gating.
type Batch struct {
	Parser     parser.Parser
	Confirmer  ml.Confirmer
	Rules      *rules.Set
	WindowSize int
	Now        func() time.Time
}

// Run reads r line by line and returns the alerts in line order. source
// fills SourceFile and line numbers for records that carry none.
func (b Batch) Run(ctx context.Context, r io.Reader, source string) ([]model.AlertRecord, error) {
	if b.WindowSize <= 0 {
		b.WindowSize = DefaultWindowSize
	}
	if b.Parser == nil {
		b.Parser = parser.NewResp()
	}
	if b.Rules == nil {
		b.Rules = rules.Default()
	}
	if b.Now == nil {
		b.Now = time.Now
	}

	var (
		out    []model.AlertRecord
		values []float64
		n      uint64
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		n++
		rec, ok := b.Parser.Parse(sc.Text())
		if !ok {
			continue
		}
		if rec.SourceFile == "" {
			rec.SourceFile = source
		}
		if rec.LineNumber == 0 {
			rec.LineNumber = n
		}
		values = append(values, rec.FeatureValue)
		if len(values) > b.WindowSize {
			values = values[1:]
		}
		if len(values) < b.WindowSize {
			continue
		}
		conf, err := b.Confirmer.Confirm(ctx, append([]float64(nil), values...))
		if err != nil {
			return out, fmt.Errorf("confirm line %d: %w", n, err)
		}
		if !conf.IsAnomaly {
			continue
		}
		cls := b.Rules.Classify(rec.FeatureValue, rec.RawText)
		out = append(out, report.NewAlert(rec, conf, cls, b.Now()))
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", source, err)
	}
	return out, nil
}
