package ocr

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/settings"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"top-level text", `{"text":"홍길동 Chart No. 10482"}`, "홍길동 Chart No. 10482"},
		{"pages", `{"pages":[{"text":"line one"},{"text":"line two"}]}`, "line one\nline two"},
		{"elements with text", `{"elements":[{"text":"a"},{"text":"b"}]}`, "a\nb"},
		{"elements with content", `{"elements":[{"content":"a"},{"content":"b"}]}`, "a\nb"},
		{"content fallback", `{"content":"fallback"}`, "fallback"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractText([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractTextEmptyResponse(t *testing.T) {
	_, err := extractText([]byte(`{}`))
	assert.Error(t, err)

	_, err = extractText([]byte(`not json`))
	assert.Error(t, err)
}

func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func TestClientExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ocr", r.FormValue("model"))

		_, header, err := r.FormFile("document")
		require.NoError(t, err)
		assert.Equal(t, "capture.png", header.Filename)

		w.Write([]byte(`{"text":"홍길동(남 25Y 0M)"}`))
	}))
	defer srv.Close()

	c := NewClient(settings.OCR{URL: srv.URL, APIKey: "test-key", Timeout: settings.Duration(5 * time.Second)})
	defer c.Close()

	text, err := c.Extract(testContext(), testImage(t))
	require.NoError(t, err)
	assert.Equal(t, "홍길동(남 25Y 0M)", text)
}

func TestClientExtractAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(settings.OCR{URL: srv.URL, APIKey: "bad", Timeout: settings.Duration(5 * time.Second)})
	defer c.Close()

	_, err := c.Extract(testContext(), testImage(t))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
