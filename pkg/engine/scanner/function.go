// Package scanner runs the inference stages over one function.
package scanner

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/DrSkyle/rolesmith/pkg/engine/runtimes"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
	"github.com/DrSkyle/rolesmith/pkg/engine/walker"
)

// Function is the scan context of one deployable function. It is built
// once per function and owns its permission tree.
type Function struct {
	Name        string
	LogicalID   string
	Runtime     string
	Root        string
	Handler     string
	Environment map[string]string
	// VPC is set when the function declares a VPC attachment.
	VPC bool
	// EventSources are the stream ARNs mapped to the function in the template.
	EventSources []string

	Region  string
	Account string

	Analyzer runtimes.Analyzer
	Walker   walker.Walker
	Tree     tree.Tree
	Logger   *slog.Logger
	Strict   bool

	mu         sync.Mutex
	violations []string
}

// Warn reports a wildcard fallback. In strict mode it also records a
// violation.
func (f *Function) Warn(msg string, args ...any) {
	f.Log().Warn(msg, append([]any{"function", f.Name}, args...)...)
	f.Violate(msg)
}

// Violate records a wildcard fallback in strict mode without logging it,
// for warnings already logged once for the run.
func (f *Function) Violate(msg string) {
	if !f.Strict {
		return
	}
	f.mu.Lock()
	f.violations = append(f.violations, fmt.Sprintf("%s: %s", f.Name, msg))
	f.mu.Unlock()
}

// Violations returns what strict mode recorded.
func (f *Function) Violations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

// Log returns the function's logger, or the default one.
func (f *Function) Log() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// EnvironmentValues returns the declared environment values.
func (f *Function) EnvironmentValues() []string {
	values := make([]string, 0, len(f.Environment))
	for _, v := range f.Environment {
		values = append(values, v)
	}
	return values
}
