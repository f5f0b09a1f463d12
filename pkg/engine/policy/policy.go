// Package policy evaluates project rules over the final permission tree.
package policy

import (
	"fmt"
	"strings"
)

// Rule actions.
const (
	ActionDeny = "deny"
	ActionWarn = "warn"
)

// Rule is a user-defined check on one granted action, loaded from the
// project config.
type Rule struct {
	ID        string `json:"id" yaml:"id" mapstructure:"id"`
	Condition string `json:"condition" yaml:"condition" mapstructure:"condition"` // CEL: "service == 's3' && action.endsWith('Delete')"
	Action    string `json:"action" yaml:"action" mapstructure:"action"`          // "deny" or "warn"
}

// Validate checks the rule before compilation.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule without id")
	}
	if strings.TrimSpace(r.Condition) == "" {
		return fmt.Errorf("rule %s has no condition", r.ID)
	}
	switch r.Action {
	case ActionDeny, ActionWarn:
		return nil
	default:
		return fmt.Errorf("rule %s: unknown action %q (want %q or %q)", r.ID, r.Action, ActionDeny, ActionWarn)
	}
}

// Subject is one granted action as seen by rules.
type Subject struct {
	Function string
	Service  string
	Region   string
	Account  string
	Resource string
	Action   string
}

func (s Subject) vars() map[string]any {
	return map[string]any{
		"function": s.Function,
		"service":  s.Service,
		"region":   s.Region,
		"account":  s.Account,
		"resource": s.Resource,
		"action":   s.Action,
	}
}
