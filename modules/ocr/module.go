// Package ocr turns the captured patient screen into a structured
// patient record by sending it to a document OCR service and parsing the
// Korean text that comes back.
package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/patient"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the 'ocr_extract' step block.
type Input struct {
	// Image overrides the screenshot captured earlier in the run.
	Image string `hcl:"image,optional"`
}

// Output is what the step records in the run state.
type Output struct {
	Text    string
	Patient *patient.Patient
}

// OnRunExtract runs OCR on the captured screen and merges the parsed
// fields into the session's patient record.
func OnRunExtract(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*Input)

	image := in.Image
	if image == "" {
		image = sess.Screenshot()
	}
	if image == "" {
		return nil, fmt.Errorf("no screenshot to extract from, run dentweb_capture first or set image")
	}
	if _, err := os.Stat(image); err != nil {
		return nil, fmt.Errorf("screenshot %s not readable: %w", image, err)
	}

	client := NewClient(sess.Settings.OCR)
	defer client.Close()

	text, err := client.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	extracted := patient.ParseOCRText(text)
	merged := sess.MergePatient(extracted)
	logger.Info("🔍 Patient extracted", "name", merged.FullName(), "chart_no", merged.ChartNo)

	if !merged.Complete() {
		logger.Warn("Patient record still incomplete after OCR",
			"chart_no", merged.ChartNo, "name", merged.FullName(), "birth_date", merged.BirthDate)
	}

	return &Output{Text: text, Patient: merged}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("ocr_extract", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunExtract,
	})
}
