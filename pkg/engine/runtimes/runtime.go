// Package runtimes holds the per-language pattern tables used to find SDK
// client constructions and method calls in function source.
package runtimes

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var ErrUnsupported = errors.New("lambda runtime not yet supported")

// ClientCall is one SDK client construction found in a source file.
type ClientCall struct {
	Service string
	// Arguments is the raw text between the constructor's parentheses.
	Arguments string
	// Region is empty when the call leaves it to the function default and
	// "*" when the call sets it to something that can't be resolved.
	Region string
	// RegionArgument is the raw region expression behind a "*" Region.
	RegionArgument string
	// Account is empty for the default account and "*" when the call passes
	// its own credentials.
	Account string
}

// Analyzer is what the inference stages need from a language.
type Analyzer interface {
	Name() string
	// IsSource reports whether a file is code in this language.
	IsSource(path string) bool
	DetectServices(content string, env map[string]string, isRegion func(string) bool) []ClientCall
	// MatchActions returns the qualified actions whose calls appear in
	// content. known is false when the service has no action table.
	MatchActions(service, content string) (actions []string, known bool)

	// EntryPoint returns the entry file for a handler such as "src/index.handler".
	EntryPoint(root, handler string) string
	// DependencyCommand is the argv printing the entry's dependency closure.
	DependencyCommand(entry, root string) []string
	// KeepDependency filters lines of the dependency tool's output.
	KeepDependency(path string) bool
	// SkipDir reports directories the dependency-aware walk never enters.
	SkipDir(path string) bool
}

// Tools overrides the external programs used for dependency resolution.
type Tools struct {
	// Python interpreter; defaults to the runtime identifier, e.g. python3.12.
	Python string
	Node   string
	// DependencyTreeCLI is the path of dependency-tree's bin/cli.js. When
	// empty the globally installed dependency-tree binary is used.
	DependencyTreeCLI string
}

var versionSuffix = regexp.MustCompile(`[\d.]+$`)

// Family strips the version from a runtime identifier: python3.12 → python.
func Family(runtime string) string {
	return versionSuffix.ReplaceAllString(runtime, "")
}

// Lookup returns the analyzer for a runtime identifier such as nodejs20.x.
func Lookup(runtime string, tools Tools) (Analyzer, error) {
	family := Family(strings.TrimSuffix(runtime, ".x"))
	switch family {
	case "python":
		interpreter := tools.Python
		if interpreter == "" {
			interpreter = runtime
		}
		return &analyzer{table: pythonTable, tool: pythonTool(interpreter)}, nil
	case "nodejs":
		node := tools.Node
		if node == "" {
			node = "node"
		}
		return &analyzer{table: nodeTable, tool: nodeTool(node, tools.DependencyTreeCLI)}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, runtime)
}

type serviceRule struct {
	service string
	pattern *regexp.Regexp // group 1 spans the opening parenthesis
}

type actionRule struct {
	action  string
	pattern *regexp.Regexp
}

// table is the data one language is made of.
type table struct {
	name      string
	extension string
	services  []serviceRule
	// window is how far past the call the argument scan reaches.
	window  int
	region  *regexp.Regexp
	literal *regexp.Regexp
	env     *regexp.Regexp
	auth    *regexp.Regexp
	actions map[string][]actionRule
}

type dependencyTool struct {
	entry   func(root, module string) string
	command func(entry, root string) []string
	keep    func(path string) bool
	skipDir func(path string) bool
}

type analyzer struct {
	*table
	tool dependencyTool
}

func (a *analyzer) Name() string { return a.name }

func (a *analyzer) IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), a.extension)
}

func (a *analyzer) DetectServices(content string, env map[string]string, isRegion func(string) bool) []ClientCall {
	var calls []ClientCall
	for _, rule := range a.services {
		for _, m := range rule.pattern.FindAllStringSubmatchIndex(content, -1) {
			end := min(m[1]+a.window, len(content))
			call := ClientCall{Service: rule.service}
			args, ok := innerParentheses(content[m[2]:end])
			if ok && args != "" {
				call.Arguments = args
				call.Region, call.RegionArgument = a.resolveRegion(args, env, isRegion)
				if a.auth.MatchString(args) {
					call.Account = "*"
				}
			}
			calls = append(calls, call)
		}
	}
	return calls
}

func (a *analyzer) resolveRegion(args string, env map[string]string, isRegion func(string) bool) (region, raw string) {
	value, raw, present := a.argument(args, env)
	switch {
	case !present:
		return "", ""
	case value == "", !isRegion(value):
		return "*", raw
	}
	return value, ""
}

// argument extracts the region keyword's value. present is false when the
// keyword is absent; an unresolvable value comes back as "".
func (a *analyzer) argument(args string, env map[string]string) (value, raw string, present bool) {
	m := a.region.FindStringSubmatch(args)
	if m == nil {
		return "", "", false
	}
	raw = strings.TrimSpace(m[1])
	if s := a.literal.FindStringSubmatch(raw); s != nil {
		return s[1], raw, true
	}
	if e := a.env.FindStringSubmatch(raw); e != nil {
		for _, name := range e[1:] {
			if name != "" {
				return env[name], raw, true
			}
		}
	}
	return "", raw, true
}

func (a *analyzer) MatchActions(service, content string) ([]string, bool) {
	rules, ok := a.actions[service]
	if !ok {
		return nil, false
	}
	var found []string
	for _, r := range rules {
		if r.pattern.MatchString(content) {
			found = append(found, r.action)
		}
	}
	return found, true
}

func (a *analyzer) EntryPoint(root, handler string) string {
	parts := strings.Split(handler, ".")
	module := strings.Join(parts[:len(parts)-1], ".")
	return a.tool.entry(root, module)
}

func (a *analyzer) DependencyCommand(entry, root string) []string {
	return a.tool.command(entry, root)
}

func (a *analyzer) KeepDependency(path string) bool { return a.tool.keep(path) }

func (a *analyzer) SkipDir(path string) bool { return a.tool.skipDir(path) }

// innerParentheses returns the text inside the first balanced pair of
// parentheses in s.
func innerParentheses(s string) (string, bool) {
	start, depth := -1, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			if start < 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start:i], true
			}
			if depth < 0 {
				return "", false
			}
		}
	}
	return "", false
}

func qualify(service string, rules []actionRule) []actionRule {
	for i := range rules {
		rules[i].action = service + ":" + rules[i].action
	}
	return rules
}
