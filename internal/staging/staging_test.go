package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweon/cephauto/internal/ctxlog"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStageCopiesFiles(t *testing.T) {
	srcDir := t.TempDir()
	a, err := Open(t.TempDir(), "홍길동")
	require.NoError(t, err)

	ceph := writeSource(t, srcDir, "ceph.jpg", "ceph-bytes")
	pano := writeSource(t, srcDir, "pano.jpg", "pano-bytes")

	staged, err := a.Stage(testContext(), ceph, pano)
	require.NoError(t, err)
	require.Len(t, staged, 2)

	got, err := os.ReadFile(staged[0])
	require.NoError(t, err)
	assert.Equal(t, "ceph-bytes", string(got))

	listed, err := a.List()
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestStageMissingSource(t *testing.T) {
	a, err := Open(t.TempDir(), "홍길동")
	require.NoError(t, err)

	_, err = a.Stage(testContext(), filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}

func TestClearRemovesDirectory(t *testing.T) {
	a, err := Open(t.TempDir(), "홍길동")
	require.NoError(t, err)
	writeSource(t, a.Dir(), "ceph.jpg", "x")

	require.NoError(t, a.Clear())

	_, statErr := os.Stat(a.Dir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenSanitizesName(t *testing.T) {
	root := t.TempDir()
	a, err := Open(root, "홍/길동")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "홍_길동"), a.Dir())
}
