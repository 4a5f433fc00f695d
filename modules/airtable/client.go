package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"resty.dev/v3"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/settings"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// ErrNotConfigured means the sync settings are missing, which disables
// the step rather than failing the run.
var ErrNotConfigured = errors.New("airtable sync not configured")

// Client talks to the Airtable REST API for one base and table.
type Client struct {
	http   *resty.Client
	baseID string
	table  string
}

// NewClient builds a client from the configured base and key. The base
// URL can be overridden for tests.
func NewClient(cfg settings.Airtable, baseURL string) (*Client, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" || cfg.Table == "" {
		return nil, ErrNotConfigured
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second)
	return &Client{http: c, baseID: cfg.BaseID, table: cfg.Table}, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) tablePath() string {
	return fmt.Sprintf("/%s/%s", c.baseID, url.PathEscape(c.table))
}

type recordEnvelope struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type listEnvelope struct {
	Records []recordEnvelope `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

// CreateRecord inserts one row and returns its record ID.
func (c *Client) CreateRecord(ctx context.Context, fields map[string]any) (string, error) {
	var created recordEnvelope
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(recordEnvelope{Fields: fields}).
		SetResult(&created).
		Post(c.tablePath())
	if err != nil {
		return "", fmt.Errorf("airtable create failed: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("airtable create returned %d: %s", res.StatusCode(), res.String())
	}
	ctxlog.FromContext(ctx).Debug("Airtable record created", "id", created.ID)
	return created.ID, nil
}

// UpdateRecord patches the fields of an existing row.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(recordEnvelope{Fields: fields}).
		Patch(c.tablePath() + "/" + recordID)
	if err != nil {
		return fmt.Errorf("airtable update failed: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("airtable update returned %d: %s", res.StatusCode(), res.String())
	}
	return nil
}

// CountWhere returns how many rows match an Airtable formula, for
// example `{run_date} = '2026-08-29'`.
func (c *Client) CountWhere(ctx context.Context, formula string) (int, error) {
	count := 0
	offset := ""
	for {
		req := c.http.R().SetContext(ctx).SetQueryParam("filterByFormula", formula)
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}
		var page listEnvelope
		res, err := req.SetResult(&page).Get(c.tablePath())
		if err != nil {
			return 0, fmt.Errorf("airtable count failed: %w", err)
		}
		if res.IsError() {
			return 0, fmt.Errorf("airtable count returned %d: %s", res.StatusCode(), res.String())
		}
		count += len(page.Records)
		if page.Offset == "" {
			return count, nil
		}
		offset = page.Offset
	}
}

// ListAll pages through the whole table. Used by the backup step.
func (c *Client) ListAll(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	offset := ""
	for {
		req := c.http.R().SetContext(ctx)
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}
		var page listEnvelope
		res, err := req.SetResult(&page).Get(c.tablePath())
		if err != nil {
			return nil, fmt.Errorf("airtable list failed: %w", err)
		}
		if res.IsError() {
			return nil, fmt.Errorf("airtable list returned %d: %s", res.StatusCode(), res.String())
		}
		for _, rec := range page.Records {
			row := map[string]any{"id": rec.ID}
			for k, v := range rec.Fields {
				row[k] = v
			}
			out = append(out, row)
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}
