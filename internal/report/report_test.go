package report

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/patient"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestWaitForDownloadFindsNewPDF(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Second)

	go func() {
		time.Sleep(200 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "analysis.pdf"), []byte("%PDF-1.4"), 0o644)
	}()

	path, err := WaitForDownload(testContext(), dir, since, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "analysis.pdf"), path)
}

func TestWaitForDownloadTimeout(t *testing.T) {
	_, err := WaitForDownload(testContext(), t.TempDir(), time.Now(), 1200*time.Millisecond)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
}

func TestWaitForDownloadIgnoresOldFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.pdf"), []byte("%PDF-1.4"), 0o644))

	since := time.Now().Add(time.Second)
	_, err := WaitForDownload(testContext(), dir, since, 1200*time.Millisecond)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
}

func TestArchiveRenamesToPatientName(t *testing.T) {
	src := filepath.Join(t.TempDir(), "webceph-export.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o644))

	p := &patient.Patient{ChartNo: "10482", FamilyName: "홍", GivenName: "길동"}
	archiveDir := t.TempDir()
	day := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	dst, err := Archive(src, archiveDir, p, day)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archiveDir, "홍길동_10482_20260829.pdf"), dst)

	_, statErr := os.Stat(src)
	assert.True(t, os.IsNotExist(statErr))
}

func TestArchiveDoesNotOverwrite(t *testing.T) {
	p := &patient.Patient{ChartNo: "10482", FamilyName: "홍", GivenName: "길동"}
	archiveDir := t.TempDir()
	day := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	existing := filepath.Join(archiveDir, p.ReportName(day))
	require.NoError(t, os.WriteFile(existing, []byte("first"), 0o644))

	src := filepath.Join(t.TempDir(), "export.pdf")
	require.NoError(t, os.WriteFile(src, []byte("second"), 0o644))

	dst, err := Archive(src, archiveDir, p, day)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archiveDir, "홍길동_10482_20260829_1.pdf"), dst)

	first, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))
}

func TestValidateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	assert.Error(t, Validate(path))
}
