package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-log-stream-detector/internal/cursor"
)

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestPollResumesFromCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "a\nb\nc\n")

	cur := cursor.New()
	e := New(cur, nil, nil)
	ctx := context.Background()

	lines, err := e.Poll(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, texts(lines))
	assert.Equal(t, uint64(3), lines[2].Number)
	assert.Equal(t, uint64(3), cur.Get(path))

	appendFile(t, path, "d\ne\n")
	lines, err = e.Poll(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "e"}, texts(lines))
	assert.Equal(t, uint64(4), lines[0].Number)

	lines, err = e.Poll(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestPollDefersPartialLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "one\ntw")

	cur := cursor.New()
	e := New(cur, nil, nil)
	lines, err := e.Poll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, texts(lines))

	appendFile(t, path, "o\r\n")
	lines, err = e.Poll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, texts(lines))
	assert.Equal(t, uint64(2), cur.Get(path))
}

func TestPollTruncationKeepsCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "1\n2\n3\n")

	cur := cursor.New()
	e := New(cur, nil, nil)
	_, err := e.Poll(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	lines, err := e.Poll(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, uint64(3), cur.Get(path))

	appendFile(t, path, "y\nz\nw\n")
	lines, err = e.Poll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"w"}, texts(lines))
}

func TestPollFiltersAndOrdersFiles(t *testing.T) {
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "b.TXT"), "b1\n")
	appendFile(t, filepath.Join(dir, "a.log"), "a1\n")
	appendFile(t, filepath.Join(dir, "c.json"), "c1\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.log"), 0o755))
	appendFile(t, filepath.Join(dir, "sub.log", "nested.log"), "n1\n")

	e := New(cursor.New(), []string{"log", ".txt"}, nil)
	lines, err := e.Poll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1"}, texts(lines))
}

func TestPollMissingRoot(t *testing.T) {
	e := New(cursor.New(), nil, nil)
	_, err := e.Poll(context.Background(), filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestPollStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "a.log"), "a\n")
	cur := cursor.New()
	e := New(cur, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lines, err := e.Poll(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Zero(t, cur.Get(filepath.Join(dir, "a.log")))
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, ".log", NormalizeExt("LOG"))
	assert.Equal(t, ".csv", NormalizeExt(" .CSV "))
	assert.Equal(t, "", NormalizeExt(""))
}
