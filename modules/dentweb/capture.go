package dentweb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/mkweon/cephauto/internal/coords"
	"github.com/mkweon/cephauto/internal/ctxlog"
)

// The patient banner occupies the top-left corner of the maximized
// practice-management window.
const (
	defaultRegionWidth  = 670
	defaultRegionHeight = 470
)

// Region is the screen rectangle to capture.
type Region struct {
	X, Y, Width, Height int
}

// DefaultRegion returns the banner region for a maximized window.
func DefaultRegion() Region {
	return Region{X: 0, Y: 0, Width: defaultRegionWidth, Height: defaultRegionHeight}
}

// focusWindow finds the practice-management process by name, brings its
// window to the foreground and gives it a moment to repaint.
func focusWindow(ctx context.Context, processName string, settle time.Duration) error {
	logger := ctxlog.FromContext(ctx)

	pids, err := robotgo.FindIds(processName)
	if err != nil {
		return fmt.Errorf("looking up process %q: %w", processName, err)
	}
	if len(pids) == 0 {
		return fmt.Errorf("process %q is not running", processName)
	}

	pid := pids[0]
	logger.Debug("Activating window", "process", processName, "pid", pid)
	if err := robotgo.ActivePid(pid); err != nil {
		return fmt.Errorf("activating window of %q: %w", processName, err)
	}
	robotgo.MaxWindow(pid)

	if settle > 0 {
		robotgo.MilliSleep(int(settle.Milliseconds()))
	}
	return nil
}

// captureRegion grabs the given screen rectangle and writes it as a PNG.
func captureRegion(ctx context.Context, region Region, dir string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot dir: %w", err)
	}

	img, err := robotgo.CaptureImg(region.X, region.Y, region.Width, region.Height)
	if err != nil {
		return "", fmt.Errorf("capturing screen region: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("patient_%s.png", time.Now().Format("20060102_150405")))
	if err := robotgo.Save(img, path); err != nil {
		return "", fmt.Errorf("saving screenshot: %w", err)
	}

	logger.Debug("Screen region captured", "path", path,
		"w", region.Width, "h", region.Height)
	return path, nil
}

// clickNamed moves to a cached coordinate and clicks it.
func clickNamed(ctx context.Context, cache *coords.Cache, name string) error {
	pt, err := cache.Get(name)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Clicking cached coordinate", "name", name, "x", pt.X, "y", pt.Y)
	robotgo.MoveClick(pt.X, pt.Y)
	return nil
}
