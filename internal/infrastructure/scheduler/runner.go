package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Component is a background worker with a start/stop lifecycle
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type namedComponent struct {
	name string
	c    Component
}

// Runner starts components in order and stops them in reverse
type Runner struct {
	components []namedComponent
	started    int
	logger     *zap.Logger
}

// NewRunner creates an empty runner
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Add registers a component; nil components are ignored
func (r *Runner) Add(name string, c Component) {
	if c == nil {
		return
	}
	r.components = append(r.components, namedComponent{name: name, c: c})
}

// Names returns the registered component names in start order
func (r *Runner) Names() []string {
	names := make([]string, len(r.components))
	for i, nc := range r.components {
		names[i] = nc.name
	}
	return names
}

// Start starts every component. If one fails, those already started are stopped.
func (r *Runner) Start(ctx context.Context) error {
	for i, nc := range r.components {
		if err := nc.c.Start(ctx); err != nil {
			r.started = i
			stopErr := r.Stop(context.WithoutCancel(ctx))
			return errors.Join(fmt.Errorf("start %s: %w", nc.name, err), stopErr)
		}
		r.logger.Debug("Background component started", zap.String("component", nc.name))
	}
	r.started = len(r.components)
	return nil
}

// Stop stops started components in reverse order and joins their errors
func (r *Runner) Stop(ctx context.Context) error {
	var errs []error
	for i := r.started - 1; i >= 0; i-- {
		nc := r.components[i]
		if err := nc.c.Stop(ctx); err != nil {
			r.logger.Warn("Background component stop failed", zap.String("component", nc.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", nc.name, err))
		}
	}
	r.started = 0
	return errors.Join(errs...)
}
