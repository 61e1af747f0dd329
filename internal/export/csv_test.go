package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

func alert(line uint64, cat string) model.AlertRecord {
	return model.AlertRecord{
		Timestamp: "2024-05-01T10:00:00", SourceFile: "app.log", LineNumber: line,
		FeatureValue: 900, ReconstructionError: 12.5, Category: cat,
		SuggestedFix: "Investigate, then fix", Reason: "Timeout in log",
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestFileWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "realtime_report.csv")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Accept(alert(1, "CRITICAL SPIKE")))

	// rows are visible before Close
	rows := readAll(t, path)
	require.Len(t, rows, 2)
	require.NoError(t, f.Close())

	f, err = OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Accept(alert(2, "ERROR")))
	require.NoError(t, f.Close())

	rows = readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"2024-05-01T10:00:00", "app.log", "1", "900", "12.5", "CRITICAL SPIKE", "Investigate, then fix", "Timeout in log"}, rows[1])
	assert.Equal(t, "ERROR", rows[2][5])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.AlertRecord{alert(3, "DB ISSUE")}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "3", rows[1][2])
}
