// Package airtable syncs finished runs into an Airtable base. Failed
// deliveries are queued on disk and retried on the next run, so a flaky
// clinic network does not lose records. A backup runner dumps the whole
// table to a dated JSON file.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// SyncInput defines the arguments of the 'airtable_sync' step block.
type SyncInput struct {
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string `hcl:"base_url,optional"`
}

// SyncOutput is what the step records in the run state.
type SyncOutput struct {
	RecordID  string
	Delivered int
	Queued    bool
	RunsToday int
}

// OnRunSync pushes the run's row, flushing any queue left over from
// earlier offline runs first. The row is created with the patient's
// identity and then updated with the analysis result, matching the
// table's two-phase history of each run.
func OnRunSync(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*SyncInput)

	client, err := NewClient(sess.Settings.Airtable, in.BaseURL)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			logger.Warn("Airtable not configured, skipping sync")
			return &SyncOutput{}, nil
		}
		return nil, err
	}
	defer client.Close()

	queue := NewQueue(sess.Settings.Paths.Backup)
	delivered, err := queue.Flush(ctx, client)
	if err != nil {
		logger.Warn("Could not flush sync queue", "error", err)
	}

	identity, result := buildFields(sess)
	recordID, err := client.CreateRecord(ctx, identity)
	if err != nil {
		logger.Warn("Sync failed, queueing record", "error", err)
		merged := identity
		for k, v := range result {
			merged[k] = v
		}
		if qErr := queue.Enqueue(ctx, merged); qErr != nil {
			return nil, fmt.Errorf("sync failed and could not queue record: %w", qErr)
		}
		return &SyncOutput{Delivered: delivered, Queued: true}, nil
	}

	if err := client.UpdateRecord(ctx, recordID, result); err != nil {
		logger.Warn("Could not attach analysis result to synced row", "record_id", recordID, "error", err)
	}

	out := &SyncOutput{RecordID: recordID, Delivered: delivered}
	formula := fmt.Sprintf("{run_date} = '%s'", sess.StartedAt.Format("2006-01-02"))
	if n, statErr := client.CountWhere(ctx, formula); statErr == nil {
		out.RunsToday = n
		logger.Info("📤 Run synced", "record_id", recordID, "flushed", delivered, "runs_today", n)
	} else {
		logger.Info("📤 Run synced", "record_id", recordID, "flushed", delivered)
	}
	return out, nil
}

// buildFields assembles the Airtable row for the current run, split into
// the identity written at creation and the result patched in afterwards.
func buildFields(sess *session.Session) (identity, result map[string]any) {
	identity = map[string]any{
		"run_id":     sess.RunID,
		"run_key":    "SES_" + sess.StartedAt.Format("20060102_150405"),
		"run_date":   sess.StartedAt.Format("2006-01-02"),
		"started_at": sess.StartedAt.Format(time.RFC3339),
	}
	if p := sess.Patient(); p != nil {
		identity["patient_key"] = "PAT_" + p.ChartNo
		identity["chart_no"] = p.ChartNo
		identity["patient_name"] = p.FullName()
		identity["birth_date"] = p.BirthDate
	}

	result = map[string]any{
		"duration_s": int(time.Since(sess.StartedAt).Seconds()),
	}
	if rp := sess.ReportPath(); rp != "" {
		result["report_file"] = filepath.Base(rp)
		result["status"] = "completed"
	} else {
		result["status"] = "partial"
	}
	return identity, result
}

// BackupInput defines the arguments of the 'airtable_backup' step block.
type BackupInput struct {
	BaseURL string `hcl:"base_url,optional"`
}

// BackupOutput is what the step records in the run state.
type BackupOutput struct {
	File    string
	Records int
}

// OnRunBackup dumps the whole table to a dated JSON file.
func OnRunBackup(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*BackupInput)

	client, err := NewClient(sess.Settings.Airtable, in.BaseURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	rows, err := client.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(sess.Settings.Paths.Backup, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}
	file := filepath.Join(sess.Settings.Paths.Backup,
		fmt.Sprintf("airtable_backup_%s.json", time.Now().Format("20060102")))

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing backup file: %w", err)
	}

	logger.Info("💾 Table backed up", "file", file, "records", len(rows))
	return &BackupOutput{File: file, Records: len(rows)}, nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("airtable_sync", &registry.RegisteredRunner{
		NewInput: func() any { return new(SyncInput) },
		Fn:       OnRunSync,
	})
	r.RegisterRunner("airtable_backup", &registry.RegisteredRunner{
		NewInput: func() any { return new(BackupInput) },
		Fn:       OnRunBackup,
	})
}
