package inference

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

// ResourceStage resolves the concrete resources each (service, region,
// account) can reach: the template and live resources of the service's
// kinds whose names appear in the function's files or environment.
type ResourceStage struct {
	Lister   Lister
	Declared Declared

	patterns sync.Map // name -> *regexp.Regexp
	warned   sync.Map // warning key -> struct{}
}

func (s *ResourceStage) Name() string { return "resources" }

// resolver fills the resources of one service.
type resolver func(r *resolution) error

var resolvers = map[string]resolver{
	"dynamodb": resolveDynamoDB,
	"kinesis":  generic(kind{aws.Streams, "AWS::Kinesis::Stream", "stream/"}),
	"kms":      resolveKMS,
	"lambda":   generic(kind{aws.Functions, "AWS::Lambda::Function", ""}),
	"s3":       resolveS3,
	"sns":      generic(kind{aws.Topics, "AWS::SNS::Topic", ""}),
	"states":   resolveStates,
}

// kind describes one resource type of a service.
type kind struct {
	list     aws.Kind
	template string
	// prefix turns a name into the resource part of its ARN.
	prefix string
}

func (s *ResourceStage) Run(ctx context.Context, fn *scanner.Function) error {
	var texts []string
	loaded := false

	for _, service := range fn.Tree.Services() {
		regions := fn.Tree[service]
		for _, region := range regions.Keys() {
			accounts := regions[region]
			for _, account := range accounts.Keys() {
				resources := accounts[account]
				if resolve, ok := resolvers[service]; ok {
					if !loaded {
						var err error
						if texts, err = corpus(ctx, fn); err != nil {
							return err
						}
						loaded = true
					}
					r := &resolution{
						ctx:       ctx,
						stage:     s,
						fn:        fn,
						texts:     texts,
						service:   service,
						region:    region,
						account:   account,
						resources: resources,
					}
					if err := resolve(r); err != nil {
						return err
					}
				} else {
					resources.Add(tree.Wildcard)
				}

				if tree.NormalizeResources(resources) {
					fn.Warn(fmt.Sprintf("unknown resources for '%s:%s:%s', couldn't find anything relevant in your AWS account or CloudFormation, falling back to '*'",
						service, region, account), "service", service, "region", region, "account", account)
				}
			}
		}
	}
	return nil
}

// resolution is the state of resolving one (service, region, account).
type resolution struct {
	ctx       context.Context
	stage     *ResourceStage
	fn        *scanner.Function
	texts     []string
	service   string
	region    string
	account   string
	resources tree.Resources
}

// grep adds prefix+name for every known resource of k whose name appears
// in the function, and returns those names. With no known resources at all
// it adds prefix+"*" and returns "*".
func (r *resolution) grep(k kind, arg string, warn bool) ([]string, error) {
	universe, err := r.universe(k, arg)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		if warn {
			r.warnEmpty(k)
		}
		r.resources.Add(k.prefix + tree.Wildcard)
		return []string{tree.Wildcard}, nil
	}

	var found []string
	for _, name := range universe {
		p := r.stage.pattern(name)
		if slices.ContainsFunc(r.texts, p.MatchString) {
			r.resources.Add(k.prefix + name)
			found = append(found, name)
		}
	}
	return found, nil
}

// universe merges the template and live names of a kind, sorted and unique.
func (r *resolution) universe(k kind, arg string) ([]string, error) {
	var names []string
	if k.template != "" && r.stage.Declared != nil {
		names = append(names, r.stage.Declared.ResourceNames(k.template)...)
	}
	live, err := r.stage.Lister.List(r.ctx, k.list, r.region, r.account, arg)
	if err != nil {
		return nil, err
	}
	names = append(names, live...)
	slices.Sort(names)
	return slices.Compact(names), nil
}

// warnEmpty logs the empty universe once per run; every function that
// falls back still records its own strict violation.
func (r *resolution) warnEmpty(k kind) {
	msg := fmt.Sprintf("no %s resources (%s) on '%s:%s', you're using this service but your AWS account and template are empty",
		r.service, k.template, r.region, r.account)
	key := strings.Join([]string{string(k.list), k.template, r.region, r.account}, "|")
	if _, seen := r.stage.warned.LoadOrStore(key, struct{}{}); seen {
		r.fn.Violate(msg)
		return
	}
	r.fn.Warn(msg, "service", r.service, "region", r.region, "account", r.account)
}

func (s *ResourceStage) pattern(name string) *regexp.Regexp {
	if p, ok := s.patterns.Load(name); ok {
		return p.(*regexp.Regexp)
	}
	p, _ := s.patterns.LoadOrStore(name, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\b`))
	return p.(*regexp.Regexp)
}

func generic(k kind) resolver {
	return func(r *resolution) error {
		_, err := r.grep(k, "", true)
		return err
	}
}

func resolveS3(r *resolution) error {
	buckets, err := r.grep(kind{aws.Buckets, "AWS::S3::Bucket", ""}, "", true)
	if err != nil {
		return err
	}
	for _, b := range buckets {
		r.resources.Add(b + "/*")
	}
	return nil
}

func resolveDynamoDB(r *resolution) error {
	tables, err := r.grep(kind{aws.Tables, "AWS::DynamoDB::Table", "table/"}, "", true)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if strings.HasSuffix(t, tree.Wildcard) {
			r.resources.Add("table/*/stream/*")
			continue
		}
		if _, err := r.grep(kind{aws.TableStreams, "", "table/" + t + "/stream/"}, t, false); err != nil {
			return err
		}
	}
	return nil
}

func resolveKMS(r *resolution) error {
	if _, err := r.grep(kind{aws.Keys, "AWS::KMS::Key", "key/"}, "", true); err != nil {
		return err
	}
	_, err := r.grep(kind{aws.Aliases, "AWS::KMS::Alias", "alias/"}, "", true)
	return err
}

func resolveStates(r *resolution) error {
	machines, err := r.grep(kind{aws.StateMachines, "AWS::StepFunctions::StateMachine", "stateMachine:"}, "", true)
	if err != nil {
		return err
	}
	if _, err := r.grep(kind{aws.Activities, "AWS::StepFunctions::Activity", "activity:"}, "", true); err != nil {
		return err
	}
	for _, m := range machines {
		if strings.HasSuffix(m, tree.Wildcard) {
			r.resources.Add("execution:*:*")
			continue
		}
		if _, err := r.grep(kind{aws.Executions, "", "execution:" + m + ":"}, m, true); err != nil {
			return err
		}
	}
	return nil
}
