package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/settings"
)

var (
	// ErrUnauthorized means the API key was rejected.
	ErrUnauthorized = errors.New("ocr api key rejected")
	// ErrRateLimited means the service asked us to slow down.
	ErrRateLimited = errors.New("ocr service rate limited")
)

// Client talks to the document OCR HTTP API.
type Client struct {
	http *resty.Client
	url  string
}

// NewClient builds an OCR client from the configured endpoint and key.
func NewClient(cfg settings.OCR) *Client {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	return &Client{http: c, url: cfg.URL}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// ocrResponse covers the response shapes the service has been seen to
// return. Whichever field is populated wins, in document order.
type ocrResponse struct {
	Text  string `json:"text"`
	Pages []struct {
		Text string `json:"text"`
	} `json:"pages"`
	Elements []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	} `json:"elements"`
	Content string `json:"content"`
}

// Extract sends the image at path to the OCR service and returns the
// recognized text.
func (c *Client) Extract(ctx context.Context, path string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Sending image to OCR service", "path", path)

	res, err := c.http.R().
		SetContext(ctx).
		SetFile("document", path).
		SetFormData(map[string]string{"model": "ocr"}).
		Post(c.url)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ErrUnauthorized
	case http.StatusTooManyRequests:
		return "", ErrRateLimited
	default:
		return "", fmt.Errorf("ocr service returned %d: %s", res.StatusCode(), res.String())
	}

	text, err := extractText([]byte(res.String()))
	if err != nil {
		return "", err
	}
	logger.Debug("OCR extraction done", "chars", len(text))
	return text, nil
}

// extractText pulls the recognized text out of whichever response shape
// the service used.
func extractText(body []byte) (string, error) {
	var resp ocrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unexpected ocr response: %w", err)
	}

	if resp.Text != "" {
		return resp.Text, nil
	}
	if len(resp.Pages) > 0 {
		var parts []string
		for _, p := range resp.Pages {
			if p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	if len(resp.Elements) > 0 {
		var parts []string
		for _, e := range resp.Elements {
			switch {
			case e.Text != "":
				parts = append(parts, e.Text)
			case e.Content != "":
				parts = append(parts, e.Content)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	if resp.Content != "" {
		return resp.Content, nil
	}
	return "", errors.New("ocr response contained no text")
}
