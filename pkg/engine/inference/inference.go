// Package inference holds the stages that turn a function's source into its
// permission tree: services, regions, resources, actions, then the
// configuration processors that add what the deployment itself needs.
package inference

import (
	"context"

	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/walker"
)

// Lister returns the names of the live resources of one kind.
type Lister interface {
	List(ctx context.Context, kind aws.Kind, region, account, arg string) ([]string, error)
}

// RegionSet is the provider's list of valid regions.
type RegionSet interface {
	IsRegion(ctx context.Context, name string) bool
	Regions(ctx context.Context) []string
}

// Declared gives the names of resources declared in the deployment template.
type Declared interface {
	ResourceNames(resourceType string) []string
}

// Deps are the collaborators shared by every function of a run.
type Deps struct {
	Lister   Lister
	Regions  RegionSet
	Declared Declared
}

// Stages returns the inference pipeline in execution order.
func Stages(d Deps) []scanner.Stage {
	return []scanner.Stage{
		&ServiceStage{Regions: d.Regions},
		&RegionStage{Regions: d.Regions},
		&ResourceStage{Lister: d.Lister, Declared: d.Declared},
		&ActionStage{},
		&CleanupStage{},
		&LogsStage{},
		&VPCStage{},
		&StreamStage{Lister: d.Lister},
	}
}

// corpus is the text the resolvers search: every file of the function
// and its environment values.
func corpus(ctx context.Context, fn *scanner.Function) ([]string, error) {
	files, err := walker.Collect(ctx, fn.Walker)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(files)+len(fn.Environment))
	for _, f := range files {
		texts = append(texts, f.Content)
	}
	return append(texts, fn.EnvironmentValues()...), nil
}

// sources returns the files the analyzer treats as code.
func sources(ctx context.Context, fn *scanner.Function) ([]walker.File, error) {
	var out []walker.File
	for f, err := range fn.Walker.Walk(ctx) {
		if err != nil {
			return nil, err
		}
		if fn.Analyzer.IsSource(f.Path) {
			out = append(out, f)
		}
	}
	return out, nil
}
