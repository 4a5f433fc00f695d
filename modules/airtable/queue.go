package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mkweon/cephauto/internal/ctxlog"
)

// maxQueueAttempts is how many times a queued record is retried before
// it is dropped.
const maxQueueAttempts = 3

// queuedRecord is one sync payload waiting for connectivity.
type queuedRecord struct {
	Fields   map[string]any `json:"fields"`
	Attempts int            `json:"attempts"`
	QueuedAt time.Time      `json:"queued_at"`
}

// Queue persists sync payloads that could not be delivered, so a later
// run can push them when the network is back.
type Queue struct {
	path string
}

// NewQueue stores the queue file under dir.
func NewQueue(dir string) *Queue {
	return &Queue{path: filepath.Join(dir, "airtable_queue.json")}
}

func (q *Queue) load() ([]queuedRecord, error) {
	data, err := os.ReadFile(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync queue: %w", err)
	}
	var records []queuedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("sync queue corrupted: %w", err)
	}
	return records, nil
}

func (q *Queue) save(records []queuedRecord) error {
	if len(records) == 0 {
		err := os.Remove(q.path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing sync queue: %w", err)
	}
	return os.Rename(tmp, q.path)
}

// Enqueue appends a payload for later delivery.
func (q *Queue) Enqueue(ctx context.Context, fields map[string]any) error {
	records, err := q.load()
	if err != nil {
		return err
	}
	records = append(records, queuedRecord{Fields: fields, QueuedAt: time.Now()})
	if err := q.save(records); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Warn("Sync payload queued for retry", "pending", len(records))
	return nil
}

// Len returns the number of pending payloads.
func (q *Queue) Len() (int, error) {
	records, err := q.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Flush tries to deliver every queued payload. Payloads that keep
// failing past maxQueueAttempts are dropped with a warning; the rest
// stay queued with their attempt count bumped.
func (q *Queue) Flush(ctx context.Context, c *Client) (delivered int, err error) {
	logger := ctxlog.FromContext(ctx)

	records, err := q.load()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	logger.Info("Flushing queued sync payloads", "pending", len(records))

	var remaining []queuedRecord
	for _, rec := range records {
		if _, createErr := c.CreateRecord(ctx, rec.Fields); createErr != nil {
			rec.Attempts++
			if rec.Attempts >= maxQueueAttempts {
				logger.Error("Dropping sync payload after repeated failures",
					"attempts", rec.Attempts, "queued_at", rec.QueuedAt, "error", createErr)
				continue
			}
			remaining = append(remaining, rec)
			continue
		}
		delivered++
	}

	if err := q.save(remaining); err != nil {
		return delivered, err
	}
	return delivered, nil
}
