package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

var Header = []string{"timestamp", "file", "line", "resp", "mse", "anomaly_type", "suggested_fix", "reason"}

func Row(a model.AlertRecord) []string {
	return []string{
		a.Timestamp, a.SourceFile, strconv.FormatUint(a.LineNumber, 10),
		floatStr(a.FeatureValue), floatStr(a.ReconstructionError),
		a.Category, a.SuggestedFix, a.Reason,
	}
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func WriteCSV(w io.Writer, alerts []model.AlertRecord) error {
	cw := csv.NewWriter(w)
	_ = cw.Write(Header)
	for _, a := range alerts {
		_ = cw.Write(Row(a))
	}
	cw.Flush()
	return cw.Error()
}

// File appends one row per alert to a CSV report, writing the header only
// when the file is new or empty. Every row is flushed before Accept returns.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
	cw   *csv.Writer
}

func OpenFile(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat report %s: %w", path, err)
	}
	out := &File{path: path, f: f, cw: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := out.write(Header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return out, nil
}

func (c *File) Path() string { return c.path }

func (c *File) Accept(a model.AlertRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(Row(a))
}

func (c *File) write(rec []string) error {
	if err := c.cw.Write(rec); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	c.cw.Flush()
	if err := c.cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

func (c *File) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cw.Flush()
	return c.f.Close()
}
