package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendOnlyAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cephauto.log")

	// First run.
	l, err := Open(path)
	require.NoError(t, err)
	l.Printf("run started")
	l.Printf("run finished")
	require.NoError(t, l.Close())

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// Second run must leave prior entries byte-for-byte intact.
	l, err = Open(path)
	require.NoError(t, err)
	l.Printf("second run")
	require.NoError(t, l.Close())

	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(second), string(first)),
		"prior log entries changed after a subsequent run")
	assert.Contains(t, string(second), "second run")
}

func TestLinesAreTimestamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cephauto.log")
	l, err := Open(path)
	require.NoError(t, err)
	l.Printf("patient %s archived", "홍길동")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	// "2006-01-02 15:04:05 message"
	parts := strings.SplitN(line, " ", 3)
	require.Len(t, parts, 3)
	assert.Contains(t, parts[2], "홍길동")
}
