package policy

import (
	"context"
	"fmt"

	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
)

// Stage applies the compiled rules to every granted action of a function.
// A deny removes the action; resources left without actions are dropped
// rather than widened to a wildcard.
type Stage struct {
	Engine *CELEngine
}

func (s *Stage) Name() string { return "rules" }

func (s *Stage) Run(_ context.Context, fn *scanner.Function) error {
	if s.Engine == nil || s.Engine.Len() == 0 {
		return nil
	}

	denied := false
	for _, leaf := range fn.Tree.Leaves() {
		for _, action := range leaf.Actions {
			subject := Subject{
				Function: fn.Name,
				Service:  leaf.Service,
				Region:   leaf.Region,
				Account:  leaf.Account,
				Resource: leaf.Resource,
				Action:   action,
			}
			for _, r := range s.Engine.Evaluate(subject) {
				switch r.Action {
				case ActionDeny:
					if fn.Tree.RemoveAction(leaf.Service, leaf.Region, leaf.Account, leaf.Resource, action) {
						denied = true
						fn.Log().Warn(fmt.Sprintf("rule %s denied %s on %s", r.ID, action, leaf.ARN()),
							"function", fn.Name, "rule", r.ID)
					}
				case ActionWarn:
					fn.Log().Warn(fmt.Sprintf("rule %s matched %s on %s", r.ID, action, leaf.ARN()),
						"function", fn.Name, "rule", r.ID)
				}
			}
		}
	}
	if denied {
		fn.Tree.Prune()
	}
	return nil
}
