package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)

	s, err := st.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.webceph.com", s.WebCeph.URL)
	assert.Equal(t, filepath.Join(dir, "reports"), s.Paths.Reports)
	assert.FileExists(t, filepath.Join(dir, "settings.json"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)

	s := Default(dir)
	s.WebCeph.Email = "clinic@example.com"
	s.WebCeph.Password = "hunter2"
	s.OCR.APIKey = "up_abc123"
	s.Airtable.APIKey = "pat_xyz"
	s.Airtable.BaseID = "appFOO"
	s.WebhookURL = "https://hooks.example.com/ceph"

	require.NoError(t, st.Save(s))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSaveSealsSecretsOnDisk(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)

	s := Default(dir)
	s.WebCeph.Password = "hunter2"
	s.OCR.APIKey = "up_abc123"
	require.NoError(t, st.Save(s))

	raw, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.NotContains(t, string(raw), "up_abc123")

	var onDisk Settings
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.True(t, strings.HasPrefix(onDisk.WebCeph.Password, "sealed:"))

	// The caller's document must keep its plaintext.
	assert.Equal(t, "hunter2", s.WebCeph.Password)
}

func TestLoadAcceptsPlaintextSecrets(t *testing.T) {
	// A hand-edited document with plaintext secrets loads unchanged and
	// gets sealed on the next save.
	dir := t.TempDir()
	st := NewStore(dir)

	s := Default(dir)
	s.WebCeph.Password = "plain"
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), raw, 0o600))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "plain", got.WebCeph.Password)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	s := Default(dir)
	err := s.Validate()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "webceph.email")
	assert.Contains(t, err.Error(), "ocr.api_key")
	assert.Contains(t, err.Error(), "webhook_url")

	s.WebCeph.Email = "clinic@example.com"
	s.WebCeph.Password = "hunter2"
	s.OCR.APIKey = "up_abc123"
	s.WebhookURL = "https://hooks.example.com/ceph"
	require.NoError(t, s.Validate())
}
