package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
)

type program struct {
	rule Rule
	prg  cel.Program
}

// CELEngine manages the compilation and execution of rules.
type CELEngine struct {
	env      *cel.Env
	programs []program
}

// NewCELEngine initializes the CEL environment with the subject variables.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("function", cel.StringType),
		cel.Variable("service", cel.StringType),
		cel.Variable("region", cel.StringType),
		cel.Variable("account", cel.StringType),
		cel.Variable("resource", cel.StringType),
		cel.Variable("action", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &CELEngine{env: env}, nil
}

// Compile compiles rules into executable programs, in order.
func (e *CELEngine) Compile(rules []Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return fmt.Errorf("rule %s must evaluate to a bool, got %s", r.ID, ast.OutputType())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}
		e.programs = append(e.programs, program{rule: r, prg: prg})
	}
	return nil
}

// Len reports how many rules are compiled.
func (e *CELEngine) Len() int { return len(e.programs) }

// Evaluate returns the rules matching s, in compilation order.
func (e *CELEngine) Evaluate(s Subject) []Rule {
	var matches []Rule
	vars := s.vars()
	for _, p := range e.programs {
		out, _, err := p.prg.Eval(vars)
		if err != nil {
			slog.Error("Rule evaluation failed", "rule_id", p.rule.ID, "error", err)
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			matches = append(matches, p.rule)
		}
	}
	return matches
}
