package inference

import (
	"context"
	"fmt"

	"github.com/DrSkyle/rolesmith/pkg/engine/permissions"
	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

// ActionStage matches SDK method calls to actions and distributes them over
// the resolved resources.
type ActionStage struct{}

func (s *ActionStage) Name() string { return "actions" }

func (s *ActionStage) Run(ctx context.Context, fn *scanner.Function) error {
	files, err := sources(ctx, fn)
	if err != nil {
		return err
	}

	for _, service := range fn.Tree.Services() {
		actions := tree.Actions{}
		if _, known := fn.Analyzer.MatchActions(service, ""); !known {
			actions.Add(tree.Wildcard)
		} else {
			for _, f := range files {
				found, _ := fn.Analyzer.MatchActions(service, f.Content)
				actions.Add(found...)
			}
		}

		regions := fn.Tree[service]
		for _, region := range regions.Keys() {
			accounts := regions[region]
			for _, account := range accounts.Keys() {
				resources := accounts[account]
				permissions.Distribute(service, resources, actions)
				for _, resource := range tree.NormalizeActions(resources) {
					fn.Warn(fmt.Sprintf("unknown actions for '%s:%s:%s:%s', couldn't find any relevant SDK methods in your code, falling back to '*'",
						service, region, account, resource), "service", service, "region", region, "account", account)
				}
			}
		}
	}
	return nil
}

// CleanupStage folds regionless services and lifts resourceless actions.
type CleanupStage struct{}

func (s *CleanupStage) Name() string { return "cleanup" }

func (s *CleanupStage) Run(_ context.Context, fn *scanner.Function) error {
	tree.Cleanup(fn.Tree, permissions.Regionless, permissions.Resourceless)
	return nil
}
