package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/flow"
	"github.com/mkweon/cephauto/internal/pipeline"
	"github.com/mkweon/cephauto/internal/session"
)

// Run executes the selected flow from start to finish.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer a.runLog.Close()

	if err := a.settings.Validate(); err != nil {
		return fmt.Errorf("settings incomplete, edit %s: %w", a.store.Path(), err)
	}

	flows, err := flow.Load(ctx, appConfig.FlowPath)
	if err != nil {
		return err
	}
	selected, err := flow.Select(flows, appConfig.FlowName)
	if err != nil {
		return err
	}
	a.logger.Debug("Flow selected.", "flow", selected.Name, "steps", len(selected.Steps))

	if err := a.registry.ValidateFlow(ctx, selected); err != nil {
		return err
	}

	sess := session.New(ctx, selected, a.settings, a.coords, a.runLog)
	defer func() {
		if closeErr := sess.Close(ctx); closeErr != nil {
			a.logger.Warn("Session cleanup failed", "error", closeErr)
		}
	}()

	a.logger.Info("🚀 Starting automation run...", "flow", selected.Name, "run_id", sess.RunID)
	a.runLog.Printf("run %s started (flow %s)", sess.RunID, selected.Name)

	runErr := pipeline.New(a.registry).Run(ctx, selected, sess)

	for _, sum := range pipeline.Summarize(ctx, selected, sess.State) {
		d := sum.Duration.Round(time.Millisecond)
		if sum.Err != nil {
			a.runLog.Printf("step %s: %s (%s): %v", sum.StepID, sum.Status, d, sum.Err)
		} else {
			a.runLog.Printf("step %s: %s (%s)", sum.StepID, sum.Status, d)
		}
	}

	if runErr != nil {
		a.runLog.Printf("run %s failed: %v", sess.RunID, runErr)
		return fmt.Errorf("execution failed: %w", runErr)
	}

	a.runLog.Printf("run %s finished", sess.RunID)
	a.logger.Info("🏁 Execution finished.", "run_id", sess.RunID)
	return nil
}
