// Package dentweb captures the patient banner from the desktop
// practice-management window. It brings the window to the foreground,
// optionally clicks a cached coordinate to open the patient view, and
// saves the banner region as a PNG for OCR.
package dentweb

import (
	"context"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the 'dentweb_capture' step block.
type Input struct {
	// Process is the window's process name.
	Process string `hcl:"process,optional"`
	// ClickTarget names a cached coordinate to click before capturing,
	// for example the patient banner that opens the detail view.
	ClickTarget string `hcl:"click_target,optional"`
	// Region overrides the default banner rectangle.
	X      *int `hcl:"x,optional"`
	Y      *int `hcl:"y,optional"`
	Width  *int `hcl:"width,optional"`
	Height *int `hcl:"height,optional"`
}

// Output is what the step records in the run state.
type Output struct {
	ScreenshotPath string
}

// OnRunCapture focuses the window and captures the patient banner.
func OnRunCapture(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*Input)

	process := in.Process
	if process == "" {
		process = "dentweb"
	}

	if err := focusWindow(ctx, process, sess.Settings.Automation.WaitTime.Std()); err != nil {
		return nil, err
	}

	if in.ClickTarget != "" {
		if err := clickNamed(ctx, sess.Coords, in.ClickTarget); err != nil {
			return nil, err
		}
	}

	region := DefaultRegion()
	if in.X != nil {
		region.X = *in.X
	}
	if in.Y != nil {
		region.Y = *in.Y
	}
	if in.Width != nil {
		region.Width = *in.Width
	}
	if in.Height != nil {
		region.Height = *in.Height
	}

	path, err := captureRegion(ctx, region, sess.Settings.Paths.Screenshots)
	if err != nil {
		return nil, err
	}

	sess.SetScreenshot(path)
	logger.Info("📸 Patient screen captured", "path", path)
	return &Output{ScreenshotPath: path}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("dentweb_capture", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunCapture,
	})
}
