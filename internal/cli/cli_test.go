package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionalFlowPath(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, exit, err := Parse([]string{"flows/morning.hcl"}, out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "flows/morning.hcl", cfg.FlowPath)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParseFlagWinsOverPositional(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, _, err := Parse([]string{"-flow", "a.hcl", "b.hcl"}, out)
	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.FlowPath)
}

func TestParseNoPathPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, exit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseInvalidLogFormat(t *testing.T) {
	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"-log-format", "yaml", "flow.hcl"}, out)
	require.Error(t, err)

	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseInvalidLogLevel(t *testing.T) {
	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"-log-level", "verbose", "flow.hcl"}, out)
	require.Error(t, err)
}

func TestParseHelpFlag(t *testing.T) {
	out := &bytes.Buffer{}

	_, exit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "Usage:")
}
