package flow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/patient"
	"github.com/mkweon/cephauto/internal/settings"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func writeFlow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadKeepsStepOrder(t *testing.T) {
	path := writeFlow(t, `
flow "morning" {
  step "dentweb_capture" "main" {}
  step "ocr_extract" "main" {}
  step "webceph_process" "main" {}
}
`)

	flows, err := Load(testContext(), path)
	require.NoError(t, err)
	require.Len(t, flows, 1)

	f := flows[0]
	assert.Equal(t, "morning", f.Name)
	require.Len(t, f.Steps, 3)
	assert.Equal(t, "dentweb_capture.main", f.Steps[0].ID())
	assert.Equal(t, "ocr_extract.main", f.Steps[1].ID())
	assert.Equal(t, "webceph_process.main", f.Steps[2].ID())
}

func TestLoadRejectsDuplicateSteps(t *testing.T) {
	path := writeFlow(t, `
flow "dup" {
  step "ocr_extract" "main" {}
  step "ocr_extract" "main" {}
}
`)

	_, err := Load(testContext(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}

func TestLoadRejectsEmptyFlow(t *testing.T) {
	path := writeFlow(t, `flow "empty" {}`)

	_, err := Load(testContext(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestManualPatient(t *testing.T) {
	path := writeFlow(t, `
flow "manual" {
  patient {
    chart_no   = "10482"
    name       = "홍길동"
    birth_date = "1999-02-14"
  }
  step "webceph_process" "main" {}
}
`)

	flows, err := Load(testContext(), path)
	require.NoError(t, err)

	p := flows[0].ManualPatient()
	require.NotNil(t, p)
	assert.Equal(t, "10482", p.ChartNo)
	assert.Equal(t, "홍", p.FamilyName)
	assert.Equal(t, "길동", p.GivenName)
	assert.Equal(t, "1999-02-14", p.BirthDate)
}

func TestManualPatientSplitNameForm(t *testing.T) {
	path := writeFlow(t, `
flow "manual" {
  patient {
    chart_no   = "10482"
    first_name = "길동"
    last_name  = "홍"
    birth_date = "1990-01-01"
    sex        = "M"
  }
  step "webceph_process" "main" {
    timeout = "10m"
  }
}
`)

	flows, err := Load(testContext(), path)
	require.NoError(t, err)

	p := flows[0].ManualPatient()
	require.NotNil(t, p)
	assert.Equal(t, "홍", p.FamilyName)
	assert.Equal(t, "길동", p.GivenName)
	assert.Equal(t, "M", p.Sex)

	var input struct {
		Timeout string `hcl:"timeout,optional"`
	}
	require.NoError(t, DecodeStep(flows[0].Steps[0], nil, &input))
	assert.Equal(t, "10m", input.Timeout)
}

func TestSelect(t *testing.T) {
	path := writeFlow(t, `
flow "a" {
  step "ocr_extract" "main" {}
}
flow "b" {
  step "ocr_extract" "main" {}
}
`)

	flows, err := Load(testContext(), path)
	require.NoError(t, err)

	f, err := Select(flows, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", f.Name)

	_, err = Select(flows, "")
	assert.Error(t, err)

	_, err = Select(flows, "missing")
	assert.Error(t, err)
}

func TestDecodeStepWithEvalContext(t *testing.T) {
	path := writeFlow(t, `
flow "ctx" {
  step "stage_images" "main" {
    dest = "${paths.staging}/${patient.name}"
  }
}
`)

	flows, err := Load(testContext(), path)
	require.NoError(t, err)

	p := &patient.Patient{FamilyName: "홍", GivenName: "길동"}
	evalCtx := NewEvalContext(p, settings.Paths{Staging: "/data/staging"})

	var input struct {
		Dest string `hcl:"dest,optional"`
	}
	require.NoError(t, DecodeStep(flows[0].Steps[0], evalCtx, &input))
	assert.Equal(t, "/data/staging/홍길동", input.Dest)
}
