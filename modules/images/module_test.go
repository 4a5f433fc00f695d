package images

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweon/cephauto/internal/coords"
	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/flow"
	"github.com/mkweon/cephauto/internal/patient"
	"github.com/mkweon/cephauto/internal/session"
	"github.com/mkweon/cephauto/internal/settings"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New(testContext(), &flow.Flow{}, settings.Default(t.TempDir()), &coords.Cache{}, nil)
	sess.MergePatient(&patient.Patient{ChartNo: "10482", FamilyName: "홍", GivenName: "길동", BirthDate: "1999-02-14"})
	return sess
}

func TestStageScansSourceDirectory(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "ceph.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pano.png"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("z"), 0o644))

	sess := newSession(t)
	out, err := OnRunStage(testContext(), sess, &Input{Source: src})
	require.NoError(t, err)

	staged := out.(*Output).StagedFiles
	require.Len(t, staged, 2)
	assert.Equal(t, staged, sess.StagedFiles())
	for _, f := range staged {
		assert.Contains(t, f, "홍길동")
	}
}

func TestStageExplicitFiles(t *testing.T) {
	src := t.TempDir()
	ceph := filepath.Join(src, "ceph.jpg")
	require.NoError(t, os.WriteFile(ceph, []byte("x"), 0o644))

	sess := newSession(t)
	out, err := OnRunStage(testContext(), sess, &Input{Files: []string{ceph}})
	require.NoError(t, err)
	assert.Len(t, out.(*Output).StagedFiles, 1)
}

func TestStageRequiresSourceOrFiles(t *testing.T) {
	_, err := OnRunStage(testContext(), newSession(t), &Input{})
	assert.Error(t, err)
}

func TestStageEmptySourceDir(t *testing.T) {
	_, err := OnRunStage(testContext(), newSession(t), &Input{Source: t.TempDir()})
	assert.Error(t, err)
}
