// Package settings owns the on-disk settings document: a single JSON file
// holding credentials, API keys, endpoints and directory roots. Secret
// fields are sealed with a locally generated key file before they touch
// disk, so the document itself stays safe to copy around.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Duration is a time.Duration that reads and writes as "15s" style
// strings, keeping the settings document hand-editable.
type Duration time.Duration

// Std returns the value as a plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Tolerate a raw nanosecond count.
		var n int64
		if numErr := json.Unmarshal(b, &n); numErr == nil {
			*d = Duration(n)
			return nil
		}
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Settings is the full configuration document. Every execution reads it
// once at startup; the settings UI (or a hand edit) overwrites it whole.
type Settings struct {
	WebCeph    WebCeph    `json:"webceph"`
	OCR        OCR        `json:"ocr"`
	Airtable   Airtable   `json:"airtable"`
	WebhookURL string     `json:"webhook_url"`
	Paths      Paths      `json:"paths"`
	Automation Automation `json:"automation"`
}

// WebCeph holds the analysis-platform account and connection tuning.
type WebCeph struct {
	URL        string   `json:"url"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Timeout    Duration `json:"timeout"`
	RetryCount int      `json:"retry_count"`
}

// OCR holds the document-OCR API endpoint and key.
type OCR struct {
	URL     string   `json:"api_url"`
	APIKey  string   `json:"api_key"`
	Timeout Duration `json:"timeout"`
}

// Airtable holds the records-backend connection fields.
type Airtable struct {
	APIKey string `json:"api_key"`
	BaseID string `json:"base_id"`
	Table  string `json:"table_name"`
}

// Paths are the directory roots of the fixed file layout. Only the roots are
// configurable; everything below them is laid out by convention.
type Paths struct {
	Staging     string `json:"staging_folder"`
	Reports     string `json:"report_folder"`
	Backup      string `json:"backup_folder"`
	Screenshots string `json:"screenshot_folder"`
}

// Automation holds pacing values for the browser and input drivers.
type Automation struct {
	WaitTime        Duration `json:"wait_time"`
	AnalysisTimeout Duration `json:"analysis_timeout"`
	PollInterval    Duration `json:"poll_interval"`
}

// Default returns the first-run settings document rooted at dataDir.
// Credentials and keys start empty and must be filled in before a run.
func Default(dataDir string) *Settings {
	return &Settings{
		WebCeph: WebCeph{
			URL:        "https://www.webceph.com",
			Timeout:    Duration(15 * time.Second),
			RetryCount: 3,
		},
		OCR: OCR{
			URL:     "https://api.upstage.ai/v1/document-digitization",
			Timeout: Duration(30 * time.Second),
		},
		Airtable: Airtable{
			Table: "Patients",
		},
		Paths: Paths{
			Staging:     filepath.Join(dataDir, "staging"),
			Reports:     filepath.Join(dataDir, "reports"),
			Backup:      filepath.Join(dataDir, "backup"),
			Screenshots: filepath.Join(dataDir, "screenshots"),
		},
		Automation: Automation{
			WaitTime:        Duration(time.Second),
			AnalysisTimeout: Duration(10 * time.Minute),
			PollInterval:    Duration(15 * time.Second),
		},
	}
}

// ErrIncomplete is returned by Validate when required fields are missing.
// The pipeline refuses to open a browser or touch the network until the
// document validates.
var ErrIncomplete = errors.New("settings incomplete")

// Validate enforces the populated-before-automation invariant: the
// credential pair, the OCR API key and the webhook URL must all be present.
func (s *Settings) Validate() error {
	var missing []string
	if s.WebCeph.Email == "" {
		missing = append(missing, "webceph.email")
	}
	if s.WebCeph.Password == "" {
		missing = append(missing, "webceph.password")
	}
	if s.WebCeph.URL == "" {
		missing = append(missing, "webceph.url")
	}
	if s.OCR.APIKey == "" {
		missing = append(missing, "ocr.api_key")
	}
	if s.WebhookURL == "" {
		missing = append(missing, "webhook_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncomplete, missing)
	}
	return nil
}
