package inference

import (
	"context"
	"regexp"
	"slices"
	"sync"

	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

type regionPattern struct {
	name    string
	pattern *regexp.Regexp
}

// RegionStage expands wildcard regions into every region named anywhere in
// the function's files or environment. A wildcard with no mention left
// stays a wildcard.
type RegionStage struct {
	Regions RegionSet

	once     sync.Once
	patterns []regionPattern
}

func (s *RegionStage) Name() string { return "regions" }

func (s *RegionStage) compile(ctx context.Context) []regionPattern {
	s.once.Do(func() {
		for _, r := range s.Regions.Regions(ctx) {
			s.patterns = append(s.patterns, regionPattern{
				name:    r,
				pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(r) + `\b`),
			})
		}
	})
	return s.patterns
}

func (s *RegionStage) Run(ctx context.Context, fn *scanner.Function) error {
	var mentioned []string
	loaded := false

	for _, service := range fn.Tree.Services() {
		regions := fn.Tree[service]
		accounts, ok := regions[tree.Wildcard]
		if !ok {
			continue
		}
		if !loaded {
			texts, err := corpus(ctx, fn)
			if err != nil {
				return err
			}
			mentioned = s.mentioned(ctx, texts)
			loaded = true
		}
		if len(mentioned) == 0 {
			continue
		}

		for _, account := range accounts.Keys() {
			for _, region := range mentioned {
				if regions[region] == nil {
					regions[region] = tree.Accounts{}
				}
				regions[region][account] = accounts[account].Clone()
			}
			delete(accounts, account)
		}
		if len(accounts) == 0 {
			delete(regions, tree.Wildcard)
		}
	}
	return nil
}

// mentioned returns the sorted regions found in any text.
func (s *RegionStage) mentioned(ctx context.Context, texts []string) []string {
	var found []string
	for _, p := range s.compile(ctx) {
		if slices.ContainsFunc(texts, p.pattern.MatchString) {
			found = append(found, p.name)
		}
	}
	slices.Sort(found)
	return found
}
