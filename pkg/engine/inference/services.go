package inference

import (
	"context"
	"fmt"

	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

// ServiceStage finds SDK client constructions and seeds the tree with one
// (service, region, account) node per client.
type ServiceStage struct {
	Regions RegionSet
}

func (s *ServiceStage) Name() string { return "services" }

func (s *ServiceStage) Run(ctx context.Context, fn *scanner.Function) error {
	isRegion := func(name string) bool { return s.Regions.IsRegion(ctx, name) }

	files, err := sources(ctx, fn)
	if err != nil {
		return err
	}
	for _, f := range files {
		for _, call := range fn.Analyzer.DetectServices(f.Content, fn.Environment, isRegion) {
			region := call.Region
			switch region {
			case "":
				region = fn.Region
			case tree.Wildcard:
				fn.Warn(fmt.Sprintf("incomprehensive region: %s (in %s), falling back to '*'", call.RegionArgument, f.Path),
					"service", call.Service)
			}

			account := call.Account
			switch account {
			case "":
				account = fn.Account
			case tree.Wildcard:
				fn.Warn(fmt.Sprintf("unknown account: %s (in %s), falling back to '*'", call.Arguments, f.Path),
					"service", call.Service)
			}

			fn.Tree.Ensure(call.Service, region, account)
		}
	}

	tree.NormalizePermissions(fn.Tree)
	return nil
}
