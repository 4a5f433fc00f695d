// Package webceph drives the cephalometric analysis web app: it signs
// in, registers the patient, uploads the staged X-rays, waits for the
// automatic analysis and downloads the PDF report. The package also
// registers the archive step that files the downloaded report away.
package webceph

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/report"
	"github.com/mkweon/cephauto/internal/session"
	"github.com/mkweon/cephauto/internal/staging"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// downloadWait bounds how long the report export may take. Report PDFs
// run a few megabytes; clinic uplinks are slow.
const downloadWait = 2 * time.Minute

// ProcessInput defines the arguments of the 'webceph_process' step block.
type ProcessInput struct {
	// SkipAnalysis uploads the images but leaves the analysis to be
	// started by hand, for accounts without auto-analysis credits.
	SkipAnalysis bool `hcl:"skip_analysis,optional"`
	// Timeout overrides the configured analysis deadline for this step,
	// as a duration string ("10m").
	Timeout string `hcl:"timeout,optional"`
}

// ProcessOutput is what the step records in the run state.
type ProcessOutput struct {
	DownloadedReport string
}

// OnRunProcess performs the whole browser session for one patient.
func OnRunProcess(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*ProcessInput)

	var analysisOverride time.Duration
	if in.Timeout != "" {
		d, err := time.ParseDuration(in.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", in.Timeout, err)
		}
		analysisOverride = d
	}

	p, err := sess.RequirePatient()
	if err != nil {
		return nil, err
	}
	staged := sess.StagedFiles()
	if len(staged) == 0 {
		return nil, fmt.Errorf("no staged images, run stage_images first")
	}

	downloadRoot := filepath.Join(sess.Settings.Paths.Reports, "downloads")
	b, err := OpenBrowser(ctx, downloadRoot)
	if err != nil {
		return nil, err
	}
	sess.SetBrowser(ctx, b)

	site := NewSite(b, sess.Settings.WebCeph, sess.Settings.Automation, sess.Coords)
	if analysisOverride > 0 {
		site.analysisTimeout = analysisOverride
	}

	if err := site.Login(ctx); err != nil {
		return nil, err
	}

	if err := site.RegisterPatient(ctx, p); err != nil {
		// Already-registered patients make the form fail; fall back to
		// opening the existing entry.
		logger.Warn("Registration failed, opening existing patient", "error", err)
		if openErr := site.OpenPatient(ctx, p); openErr != nil {
			return nil, fmt.Errorf("patient %s not registered and not found: %w", p.ChartNo, openErr)
		}
	}

	if err := site.NewRecord(ctx, time.Now()); err != nil {
		return nil, err
	}
	if err := site.UploadImages(ctx, staged); err != nil {
		return nil, err
	}

	if in.SkipAnalysis {
		logger.Info("⏭️ Analysis skipped by flow")
		return &ProcessOutput{}, nil
	}

	if err := site.StartAnalysis(ctx); err != nil {
		return nil, err
	}

	downloadStart := time.Now()
	if err := site.DownloadReport(ctx); err != nil {
		return nil, err
	}

	downloaded, err := report.WaitForDownload(ctx, b.DownloadDir, downloadStart, downloadWait)
	if err != nil {
		return nil, err
	}

	sess.SetReportPath(downloaded)
	logger.Info("📄 Report downloaded", "path", downloaded)
	return &ProcessOutput{DownloadedReport: downloaded}, nil
}

// ArchiveInput defines the arguments of the 'archive_report' step block.
type ArchiveInput struct {
	// Source overrides the report downloaded earlier in the run.
	Source string `hcl:"source,optional"`
	// KeepStaging leaves the staged images in place after archiving.
	KeepStaging bool `hcl:"keep_staging,optional"`
}

// ArchiveOutput is what the step records in the run state.
type ArchiveOutput struct {
	ArchivedReport string
}

// OnRunArchive validates the downloaded PDF, files it under the
// patient's canonical name and clears the staging area.
func OnRunArchive(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*ArchiveInput)

	p, err := sess.RequirePatient()
	if err != nil {
		return nil, err
	}

	src := in.Source
	if src == "" {
		src = sess.ReportPath()
	}
	if src == "" {
		return nil, fmt.Errorf("no downloaded report to archive, run webceph_process first or set source")
	}

	if err := report.Validate(src); err != nil {
		return nil, err
	}

	archived, err := report.Archive(src, sess.Settings.Paths.Reports, p, time.Now())
	if err != nil {
		return nil, err
	}
	sess.SetReportPath(archived)
	logger.Info("🗄️ Report archived", "path", archived)

	if !in.KeepStaging {
		if staged := sess.StagedFiles(); len(staged) > 0 {
			area, err := staging.Open(sess.Settings.Paths.Staging, p.FullName())
			if err == nil {
				if err := area.Clear(); err != nil {
					logger.Warn("Could not clear staging dir", "error", err)
				}
			}
			sess.SetStagedFiles(nil)
		}
	}

	return &ArchiveOutput{ArchivedReport: archived}, nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("webceph_process", &registry.RegisteredRunner{
		NewInput: func() any { return new(ProcessInput) },
		Fn:       OnRunProcess,
	})
	r.RegisterRunner("archive_report", &registry.RegisteredRunner{
		NewInput: func() any { return new(ArchiveInput) },
		Fn:       OnRunArchive,
	})
}
