// Package report handles the analysis PDF once the browser finishes
// downloading it: find the fresh file, check it is a readable PDF, and
// file it away under the patient's canonical name.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/patient"
)

// ErrDownloadTimeout is returned when no new PDF shows up in the
// download directory before the deadline.
var ErrDownloadTimeout = errors.New("report download timed out")

// WaitForDownload polls dir until a PDF newer than since appears and has
// stopped growing. Browsers write partial files with a temporary suffix,
// so those are skipped until renamed.
func WaitForDownload(ctx context.Context, dir string, since time.Time, timeout time.Duration) (string, error) {
	log := ctxlog.FromContext(ctx)
	deadline := time.Now().Add(timeout)

	var lastPath string
	var lastSize int64 = -1
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w after %s", ErrDownloadTimeout, timeout)
		}

		path, size := newestPDF(dir, since)
		if path != "" {
			if path == lastPath && size == lastSize {
				log.Debug("📥 Download complete", "path", path, "bytes", size)
				return path, nil
			}
			lastPath, lastSize = path, size
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func newestPDF(dir string, since time.Time) (string, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0
	}
	var best string
	var bestSize int64
	var bestMod time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}
		if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".part") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().After(since) {
			continue
		}
		if info.ModTime().After(bestMod) {
			best = filepath.Join(dir, name)
			bestSize = info.Size()
			bestMod = info.ModTime()
		}
	}
	return best, bestSize
}

// Validate checks that the downloaded file is a structurally sound PDF.
func Validate(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return fmt.Errorf("report %s is not a valid PDF: %w", filepath.Base(path), err)
	}
	return nil
}

// Archive moves the downloaded report into the archive directory under
// the patient's canonical name. An existing file with the same name gets
// a numeric suffix rather than being overwritten.
func Archive(src string, archiveDir string, p *patient.Patient, now time.Time) (string, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive dir: %w", err)
	}

	dst := filepath.Join(archiveDir, p.ReportName(now))
	for i := 1; ; i++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			break
		}
		base := strings.TrimSuffix(p.ReportName(now), ".pdf")
		dst = filepath.Join(archiveDir, fmt.Sprintf("%s_%d.pdf", base, i))
	}

	if err := os.Rename(src, dst); err != nil {
		// Cross-device rename fails on some setups; fall back to copy.
		data, readErr := os.ReadFile(src)
		if readErr != nil {
			return "", fmt.Errorf("archiving report: %w", err)
		}
		if writeErr := os.WriteFile(dst, data, 0o644); writeErr != nil {
			return "", fmt.Errorf("archiving report: %w", writeErr)
		}
		os.Remove(src)
	}
	return dst, nil
}
