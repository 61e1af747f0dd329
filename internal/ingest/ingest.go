// Package ingest polls a directory of growing log files and yields every
// complete line appended since the previous poll.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viniciushammett/go-log-stream-detector/internal/cursor"
	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
)

var DefaultExtensions = []string{".log", ".txt", ".csv"}

// Line is one physical line: Number is 1-based within Path.
type Line struct {
	Path   string
	Number uint64
	Text   string
}

type Engine struct {
	cursors *cursor.Store
	exts    map[string]struct{}
	log     *logger.Logger
	// paths already reported as truncated, cleared once they grow back
	truncated map[string]bool
}

func New(cursors *cursor.Store, extensions []string, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[NormalizeExt(e)] = struct{}{}
	}
	return &Engine{cursors: cursors, exts: exts, log: log, truncated: map[string]bool{}}
}

// NormalizeExt lower-cases e and adds the leading dot.
func NormalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e != "" && !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}

// Match reports whether name has one of the watched extensions.
func (e *Engine) Match(name string) bool {
	_, ok := e.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Files lists matching regular files directly under root, sorted by name.
func (e *Engine) Files(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	var out []string
	for _, ent := range entries {
		if !ent.Type().IsRegular() || !e.Match(ent.Name()) {
			continue
		}
		out = append(out, filepath.Join(root, ent.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Poll returns the new complete lines of every watched file, file by file in
// name order and in line order within a file, and advances the cursors.
func (e *Engine) Poll(ctx context.Context, root string) ([]Line, error) {
	files, err := e.Files(root)
	if err != nil {
		return nil, err
	}
	var out []Line
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		lines, err := e.readFile(path)
		if err != nil {
			metrics.ReadErrors.WithLabelValues(path).Inc()
			e.log.Warn().Err(err).Str("file", path).Msg("read failed, skipping this cycle")
			continue
		}
		out = append(out, lines...)
	}
	return out, nil
}

func (e *Engine) readFile(path string) ([]Line, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	all := completeLines(b)
	total := uint64(len(all))
	cur := e.cursors.Get(path)

	if total < cur {
		if !e.truncated[path] {
			e.truncated[path] = true
			e.log.Warn().Str("file", path).Uint64("cursor", cur).Uint64("lines", total).
				Msg("file shrank below cursor, waiting for it to grow back")
		}
		return nil, nil
	}
	delete(e.truncated, path)
	if total == cur {
		e.cursors.Track(path)
		return nil, nil
	}

	out := make([]Line, 0, total-cur)
	for i := cur; i < total; i++ {
		out = append(out, Line{Path: path, Number: i + 1, Text: all[i]})
	}
	if err := e.cursors.Advance(path, total); err != nil {
		return nil, err
	}
	metrics.LinesRead.WithLabelValues(path).Add(float64(len(out)))
	return out, nil
}

// completeLines splits b on '\n' and drops a trailing unterminated fragment.
func completeLines(b []byte) []string {
	n := bytes.Count(b, []byte{'\n'})
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		j := bytes.IndexByte(b, '\n')
		out = append(out, strings.TrimSuffix(string(b[:j]), "\r"))
		b = b[j+1:]
	}
	return out
}
