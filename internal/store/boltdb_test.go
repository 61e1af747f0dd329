package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

func TestStoreOrdering(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "data", "lsd.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Accept(model.AlertRecord{
			ID: id, LineNumber: uint64(i + 1), DetectedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	var seen []uint64
	require.NoError(t, s.Iterate(func(a model.AlertRecord) bool {
		seen = append(seen, a.LineNumber)
		return len(seen) < 2
	}))
	assert.Equal(t, []uint64{1, 2}, seen)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsd.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Accept(model.AlertRecord{ID: "x", Category: "ERROR", DetectedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ERROR", all[0].Category)
}
