// Package pipeline executes a flow's steps strictly in file order.
// Automation against desktop windows and a browser cannot overlap, so
// the executor is sequential and fail-fast: the first error stops the
// run and the remaining steps are never started.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/flow"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/session"
	"github.com/mkweon/cephauto/internal/state"
)

// Pipeline runs one flow against one session.
type Pipeline struct {
	registry *registry.Registry
}

// New creates a pipeline backed by the given runner registry.
func New(r *registry.Registry) *Pipeline {
	return &Pipeline{registry: r}
}

// Run executes every step of the flow in order. Step inputs are decoded
// against the session's evaluation context just before the step runs, so
// later steps see patient fields extracted by earlier ones.
func (p *Pipeline) Run(ctx context.Context, f *flow.Flow, sess *session.Session) error {
	logger := ctxlog.FromContext(ctx)

	if err := p.registry.ValidateFlow(ctx, f); err != nil {
		return err
	}

	for _, step := range f.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := step.ID()
		stepLogger := logger.With("step", id)
		stepCtx := ctxlog.WithLogger(ctx, stepLogger)

		handler, _ := p.registry.Lookup(step.RunnerType)

		input := any(nil)
		if handler.NewInput != nil {
			input = handler.NewInput()
			if err := flow.DecodeStep(step, sess.EvalContext(), input); err != nil {
				sess.State.SetStatus(ctx, id, state.StatusFailed)
				sess.State.SetError(ctx, id, err)
				return err
			}
		}

		stepLogger.Info("▶️ Starting step")
		sess.State.SetStatus(ctx, id, state.StatusRunning)
		start := time.Now()

		output, err := handler.Fn(stepCtx, sess, input)

		elapsed := time.Since(start)
		sess.State.SetDuration(ctx, id, elapsed)
		if err != nil {
			sess.State.SetStatus(ctx, id, state.StatusFailed)
			sess.State.SetError(ctx, id, err)
			stepLogger.Error("❌ Step failed", "error", err, "duration", elapsed)
			return fmt.Errorf("step %q: %w", id, err)
		}

		sess.State.SetStatus(ctx, id, state.StatusCompleted)
		sess.State.SetOutput(ctx, id, output)
		stepLogger.Info("✅ Finished step", "duration", elapsed)
	}

	return nil
}

// Summary describes one finished (or skipped) step for reporting.
type Summary struct {
	StepID   string
	Status   state.Status
	Duration time.Duration
	Err      error
}

// Summarize reads the run state back out in flow order.
func Summarize(ctx context.Context, f *flow.Flow, st *state.Store) []Summary {
	out := make([]Summary, 0, len(f.Steps))
	for _, step := range f.Steps {
		id := step.ID()
		out = append(out, Summary{
			StepID:   id,
			Status:   st.GetStatus(ctx, id),
			Duration: st.GetDuration(ctx, id),
			Err:      st.GetError(ctx, id),
		})
	}
	return out
}
