// Package registry holds the runner handlers available to flow steps.
// Each automation module registers its runners here at startup; the
// pipeline looks them up by the step's runner label.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkweon/cephauto/internal/flow"
	"github.com/mkweon/cephauto/internal/session"
)

// Module is the interface that all automation modules must implement to
// be registered.
type Module interface {
	Register(r *Registry)
}

// HandlerFunc executes one step against the current run session. The
// input is the value produced by the handler's NewInput, decoded from
// the step's HCL arguments.
type HandlerFunc func(ctx context.Context, sess *session.Session, input any) (any, error)

// RegisteredRunner holds the compiled Go parts of a runner.
type RegisteredRunner struct {
	NewInput func() any
	Fn       HandlerFunc
}

// Registry holds all registered runner handlers for a single
// application instance.
type Registry struct {
	HandlerRegistry map[string]*RegisteredRunner
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		HandlerRegistry: make(map[string]*RegisteredRunner),
	}
}

// RegisterRunner registers a Go handler for a runner type.
func (r *Registry) RegisterRunner(name string, handler *RegisteredRunner) {
	if _, exists := r.HandlerRegistry[name]; exists {
		panic(fmt.Sprintf("runner handler with name '%s' already registered", name))
	}
	slog.Debug("Registering runner handler.", "name", name)
	r.HandlerRegistry[name] = handler
}

// Lookup returns the handler for a runner type.
func (r *Registry) Lookup(name string) (*RegisteredRunner, bool) {
	h, ok := r.HandlerRegistry[name]
	return h, ok
}

// ValidateFlow checks that every step in the flow names a registered
// runner, collecting all failures into one error.
func (r *Registry) ValidateFlow(ctx context.Context, f *flow.Flow) error {
	var errs []string
	for _, step := range f.Steps {
		if _, ok := r.HandlerRegistry[step.RunnerType]; !ok {
			errs = append(errs, fmt.Sprintf("step %q: unknown runner type '%s'", step.ID(), step.RunnerType))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("flow validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
