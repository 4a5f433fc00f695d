// Package session carries the mutable state of a single automation run:
// the patient being processed, staged images, browser handle and the
// downloaded report. Runners read and write it as the pipeline advances.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"

	"github.com/mkweon/cephauto/internal/coords"
	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/flow"
	"github.com/mkweon/cephauto/internal/patient"
	"github.com/mkweon/cephauto/internal/runlog"
	"github.com/mkweon/cephauto/internal/settings"
	"github.com/mkweon/cephauto/internal/state"
)

// Browser is the handle runners use to drive the analysis site. It is
// opened by the first runner that needs it and closed when the session
// closes.
type Browser interface {
	Close(ctx context.Context) error
}

// Session is the shared state of one run.
type Session struct {
	RunID     string
	StartedAt time.Time

	Settings *settings.Settings
	Coords   *coords.Cache
	State    *state.Store
	Log      *runlog.Log

	mu             sync.Mutex
	patient        *patient.Patient
	screenshotPath string
	stagedFiles    []string
	reportPath     string
	browser        Browser
}

// New creates a session for one run. The flow's manual patient block, if
// any, seeds the patient record; OCR results merge into it later.
func New(ctx context.Context, f *flow.Flow, s *settings.Settings, c *coords.Cache, rl *runlog.Log) *Session {
	sess := &Session{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Settings:  s,
		Coords:    c,
		State:     state.New(),
		Log:       rl,
		patient:   f.ManualPatient(),
	}
	ctxlog.FromContext(ctx).Debug("Session created", "run_id", sess.RunID)
	return sess
}

// Patient returns the current patient record, or nil when nothing has
// been captured or entered yet.
func (s *Session) Patient() *patient.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patient
}

// MergePatient folds extracted fields into the session's record. Fields
// already present (manual entry) are kept.
func (s *Session) MergePatient(extracted *patient.Patient) *patient.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patient == nil {
		s.patient = extracted
	} else {
		s.patient.Merge(extracted)
	}
	return s.patient
}

// RequirePatient returns the patient record or an error when it is
// missing or incomplete. Runners that need a full record call this.
func (s *Session) RequirePatient() (*patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patient == nil {
		return nil, fmt.Errorf("no patient record in session, run a capture or add a patient block")
	}
	if !s.patient.Complete() {
		return nil, fmt.Errorf("patient record incomplete (chart no, name and birth date are required)")
	}
	return s.patient, nil
}

// SetScreenshot records the path of the captured patient screen.
func (s *Session) SetScreenshot(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshotPath = path
}

// Screenshot returns the captured screen path, empty before capture.
func (s *Session) Screenshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshotPath
}

// SetStagedFiles records the images staged for upload.
func (s *Session) SetStagedFiles(files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedFiles = files
}

// StagedFiles returns the staged image paths.
func (s *Session) StagedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stagedFiles
}

// SetReportPath records where the archived report landed.
func (s *Session) SetReportPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportPath = path
}

// ReportPath returns the archived report path, empty until archived.
func (s *Session) ReportPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportPath
}

// SetBrowser hands the session ownership of the browser handle. A
// handle left over from an earlier step is closed first so repeated
// browser steps in one flow cannot leak an instance.
func (s *Session) SetBrowser(ctx context.Context, b Browser) {
	s.mu.Lock()
	prev := s.browser
	s.browser = b
	s.mu.Unlock()

	if prev == nil || prev == b {
		return
	}
	if err := prev.Close(ctx); err != nil {
		ctxlog.FromContext(ctx).Warn("Could not close replaced browser", "error", err)
	}
}

// BrowserHandle returns the current browser, or nil when none is open.
func (s *Session) BrowserHandle() Browser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browser
}

// EvalContext builds the HCL evaluation context reflecting the session's
// current patient and configured paths.
func (s *Session) EvalContext() *hcl.EvalContext {
	s.mu.Lock()
	p := s.patient
	paths := s.Settings.Paths
	s.mu.Unlock()
	return flow.NewEvalContext(p, paths)
}

// Close releases any resources held by the session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	b := s.browser
	s.browser = nil
	s.mu.Unlock()

	if b == nil {
		return nil
	}
	if err := b.Close(ctx); err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
