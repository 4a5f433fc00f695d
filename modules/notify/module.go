// Package notify posts a run summary to the configured webhook so the
// clinic staff see completions and failures in their messenger.
package notify

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the 'notify_webhook' step block.
type Input struct {
	// URL overrides the webhook from the settings file.
	URL string `hcl:"url,optional"`
	// Message replaces the generated summary text.
	Message string `hcl:"message,optional"`
}

// Output is what the step records in the run state.
type Output struct {
	Sent bool
}

// OnRunNotify posts the run summary. A missing webhook URL skips the
// step instead of failing a run that already produced its report.
func OnRunNotify(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*Input)

	url := in.URL
	if url == "" {
		url = sess.Settings.WebhookURL
	}
	if url == "" {
		logger.Warn("No webhook configured, skipping notification")
		return &Output{}, nil
	}

	message := in.Message
	if message == "" {
		message = summaryMessage(sess)
	}

	client := resty.New().SetTimeout(15 * time.Second).SetRetryCount(2)
	defer client.Close()

	res, err := client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": message}).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("webhook post failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("webhook returned %d: %s", res.StatusCode(), res.String())
	}

	logger.Info("🔔 Notification sent")
	return &Output{Sent: true}, nil
}

func summaryMessage(sess *session.Session) string {
	name := "(no patient)"
	if p := sess.Patient(); p != nil {
		name = fmt.Sprintf("%s (%s)", p.FullName(), p.ChartNo)
	}
	status := "finished without a report"
	if sess.ReportPath() != "" {
		status = "report archived"
	}
	return fmt.Sprintf("Ceph analysis for %s: %s (run %s, %s)",
		name, status, sess.RunID, time.Since(sess.StartedAt).Round(time.Second))
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("notify_webhook", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunNotify,
	})
}
