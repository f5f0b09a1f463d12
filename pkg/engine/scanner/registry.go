package scanner

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage is one step of the inference pipeline.
type Stage interface {
	Name() string
	// Run enriches fn.Tree. An error aborts the function's scan.
	Run(ctx context.Context, fn *Function) error
}

// Registry runs stages in registration order.
type Registry struct {
	stages []Stage
}

// NewRegistry creates a new stage registry.
func NewRegistry(stages ...Stage) *Registry {
	return &Registry{stages: stages}
}

// Register appends stages to the pipeline.
func (r *Registry) Register(stages ...Stage) {
	r.stages = append(r.stages, stages...)
}

// Stages returns the registered stage names in order.
func (r *Registry) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every stage against fn, stopping at the first error.
func (r *Registry) Run(ctx context.Context, fn *Function) error {
	for _, s := range r.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runWithTelemetry(ctx, s, fn); err != nil {
			return err
		}
	}
	return nil
}

func runWithTelemetry(ctx context.Context, s Stage, fn *Function) error {
	name := s.Name()
	tr := otel.Tracer("rolesmith/scanner")
	ctx, span := tr.Start(ctx, name, trace.WithAttributes(
		attribute.String("function", fn.Name),
		attribute.String("stage", name),
		attribute.String("runtime", fn.Runtime),
	))
	defer span.End()

	fn.Log().Debug("starting stage", "function", fn.Name, "stage", name)
	if err := s.Run(ctx, fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	fn.Log().Debug("stage completed", "function", fn.Name, "stage", name)
	return nil
}
