// Package engine runs the inference pipeline over every function of a
// project and assembles the resulting role document.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
	"github.com/DrSkyle/rolesmith/pkg/engine/inference"
	"github.com/DrSkyle/rolesmith/pkg/engine/permissions"
	"github.com/DrSkyle/rolesmith/pkg/engine/policy"
	"github.com/DrSkyle/rolesmith/pkg/engine/runtimes"
	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
	"github.com/DrSkyle/rolesmith/pkg/engine/walker"
	"github.com/DrSkyle/rolesmith/pkg/manifest"
	"github.com/DrSkyle/rolesmith/pkg/telemetry"
	"github.com/DrSkyle/rolesmith/pkg/version"
)

// ErrStrict is returned when strict mode saw a wildcard fallback.
var ErrStrict = errors.New("strict mode: refusing to fall back to '*'")

// Config holds engine settings.
type Config struct {
	// Region and Account are the defaults of the provider session.
	Region  string
	Account string

	Strict         bool
	NoDeps         bool
	MaxConcurrency int
	Verify         bool
	Tools          runtimes.Tools
	Rules          []policy.Rule

	// Telemetry config.
	OtelEndpoint  string // "http://localhost:4318" or via env
	SkipTelemetry bool   // Set true if embedding in an app that already has OTEL

	Logger *slog.Logger
}

// Provider is the live account view shared by every function scan.
type Provider interface {
	inference.Lister
	inference.RegionSet
}

// Verifier simulates a generated policy.
type Verifier interface {
	Simulate(ctx context.Context, policy string, actions, resources []string) ([]aws.Denial, error)
}

// Target is one function to scan, with its source root resolved.
type Target struct {
	manifest.Function
	Root string
}

// Engine is the runtime core.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	Provider Provider
	Declared inference.Declared
	Verifier Verifier
	// Runner executes dependency tools. Nil uses walker.ExecRunner.
	Runner walker.Runner

	config   Config
	rules    *policy.CELEngine
	shutdown func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		ReplaceAttr: RedactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("rolesmith/engine"),
		config: Config{MaxConcurrency: 1},
	}

	for _, opt := range opts {
		opt(e)
	}

	slog.SetDefault(e.Logger)

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}

	rules, err := policy.NewCELEngine()
	if err != nil {
		return nil, err
	}
	if err := rules.Compile(e.config.Rules); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	e.rules = rules

	if e.Provider == nil {
		return nil, errors.New("engine: no provider configured")
	}
	return e, nil
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithConcurrency sets how many functions are scanned in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.config.MaxConcurrency = n
		}
	}
}

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.MaxConcurrency <= 0 {
			cfg.MaxConcurrency = e.config.MaxConcurrency
		}
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// WithProvider sets the live account view.
func WithProvider(p Provider) Option {
	return func(e *Engine) { e.Provider = p }
}

// WithDeclared sets the template resources the resolvers search.
func WithDeclared(d inference.Declared) Option {
	return func(e *Engine) { e.Declared = d }
}

// WithVerifier sets the policy simulator used by Verify.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) { e.Verifier = v }
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

// Run scans every target and renders one role per function, in target
// order. Functions with an unsupported runtime are skipped with a warning.
func (e *Engine) Run(ctx context.Context, targets []Target) (doc *permissions.Document, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run", trace.WithAttributes(
		attribute.Int("functions", len(targets)),
	))
	defer span.End()

	// Crash safety.
	defer e.recoverPanic(ctx, &err)

	registry := scanner.NewRegistry(inference.Stages(inference.Deps{
		Lister:   e.Provider,
		Regions:  e.Provider,
		Declared: e.Declared,
	})...)
	registry.Register(&policy.Stage{Engine: e.rules})

	e.Logger.Debug("Starting scan", "functions", len(targets), "concurrency", e.config.MaxConcurrency,
		"stages", strings.Join(registry.Stages(), ","))

	results := make([]*scanner.Function, len(targets))
	p := pool.New().
		WithErrors().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(e.config.MaxConcurrency)
	for i, t := range targets {
		p.Go(func(ctx context.Context) error {
			fn, err := e.scan(ctx, registry, t)
			results[i] = fn
			return err
		})
	}
	if err := p.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var violations []string
	for _, fn := range results {
		if fn != nil {
			violations = append(violations, fn.Violations()...)
		}
	}
	if len(violations) > 0 {
		span.SetAttributes(attribute.Int("scan.violations", len(violations)))
		return nil, fmt.Errorf("%w:\n  %s", ErrStrict, strings.Join(violations, "\n  "))
	}

	doc = permissions.NewDocument()
	for _, fn := range results {
		if fn != nil {
			doc.Add(fn.Name, fn.Tree)
		}
	}

	if e.config.Verify {
		e.verify(ctx, doc)
	}
	return doc, nil
}

// scan runs the pipeline over one function. A nil function means the
// runtime is not supported.
func (e *Engine) scan(ctx context.Context, registry *scanner.Registry, t Target) (*scanner.Function, error) {
	ctx, span := e.Tracer.Start(ctx, "Function.Scan", trace.WithAttributes(
		attribute.String("function", t.Name),
		attribute.String("runtime", t.Runtime),
	))
	defer span.End()

	analyzer, err := runtimes.Lookup(t.Runtime, e.config.Tools)
	if errors.Is(err, runtimes.ErrUnsupported) {
		e.Logger.Warn(fmt.Sprintf("lambda runtime not yet supported: `%s` (for `%s`)", t.Runtime, t.Name))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resolved := t.Function.Resolve(e.config.Region, e.config.Account)
	w, err := e.walker(t.Root, resolved.Handler, analyzer)
	if err != nil {
		return nil, err
	}

	fn := &scanner.Function{
		Name:         resolved.Name,
		LogicalID:    resolved.LogicalID,
		Runtime:      resolved.Runtime,
		Root:         t.Root,
		Handler:      resolved.Handler,
		Environment:  resolved.Environment,
		VPC:          resolved.VPC,
		EventSources: resolved.EventSources,
		Region:       e.config.Region,
		Account:      e.config.Account,
		Analyzer:     analyzer,
		Walker:       w,
		Tree:         tree.Tree{},
		Logger:       e.Logger,
		Strict:       e.config.Strict,
	}
	if err := registry.Run(ctx, fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan %s: %w", t.Name, err)
	}
	span.SetAttributes(attribute.Int("leaves", len(fn.Tree.Leaves())))
	return fn, nil
}

func (e *Engine) walker(root, handler string, analyzer runtimes.Analyzer) (walker.Walker, error) {
	if e.config.NoDeps || handler == "" {
		return &walker.Naive{Root: root}, nil
	}
	d, err := walker.NewDependencies(root, handler, analyzer)
	if err != nil {
		return nil, err
	}
	if e.Runner != nil {
		d.Run = e.Runner
	}
	return d, nil
}

// verify simulates every generated inline policy. Findings are warnings.
func (e *Engine) verify(ctx context.Context, doc *permissions.Document) {
	if e.Verifier == nil {
		e.Logger.Warn("policy verification requested without a simulator")
		return
	}
	for _, id := range doc.Order {
		role := doc.Resources[id]
		if len(role.Properties.Policies) == 0 {
			continue
		}
		policyDoc := role.Properties.Policies[0].PolicyDocument
		body, err := json.Marshal(policyDoc)
		if err != nil {
			e.Logger.Warn("could not encode policy for simulation", "role", id, "error", err)
			continue
		}

		actions := tree.Actions{}
		var resources []string
		for _, st := range policyDoc.Statement {
			actions.Add(st.Action...)
			resources = append(resources, st.Resource)
		}
		slices.Sort(resources)
		resources = slices.Compact(resources)

		denials, err := e.Verifier.Simulate(ctx, string(body), actions.Sorted(), resources)
		if err != nil {
			e.Logger.Warn("policy verification failed", "role", id, "error", err)
			continue
		}
		for _, d := range denials {
			e.Logger.Warn(fmt.Sprintf("simulation of %s on %s: %s", d.Action, d.Resource, d.Decision), "role", id)
		}
		if len(denials) == 0 {
			e.Logger.Info("policy verified", "role", id, "actions", len(actions))
		}
	}
}

// recoverPanic handles failures.
func (e *Engine) recoverPanic(ctx context.Context, err *error) {
	if r := recover(); r != nil {
		tr := otel.Tracer("rolesmith/engine")
		// Use independent context.
		_, span := tr.Start(ctx, "CriticalPanic")

		stack := debug.Stack()

		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "CRITICAL FAILURE")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()

		e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))
		*err = fmt.Errorf("internal error: %v", r)
	}
}

var sensitiveKeys = map[string]bool{
	"password": true, "access_key": true, "token": true, "session_token": true,
	"secret": true, "secret_key": true, "api_key": true, "private_key": true,
	"auth_token": true, "refresh_token": true, "credential": true, "credentials": true,
}

// RedactSensitiveData scrubs sensitive keys from logs.
func RedactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}
