package inference

import (
	"context"
	"regexp"
	"slices"

	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
	"github.com/DrSkyle/rolesmith/pkg/engine/permissions"
	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

// LogsStage grants the function its own CloudWatch log group.
type LogsStage struct{}

func (s *LogsStage) Name() string { return "logs" }

func (s *LogsStage) Run(_ context.Context, fn *scanner.Function) error {
	group := "log-group:/aws/lambda/" + fn.Name
	fn.Tree.Add("logs", fn.Region, fn.Account, group, permissions.LogGroupActions...)
	fn.Tree.Add("logs", fn.Region, fn.Account, group+":*", permissions.LogStreamActions...)
	fn.Tree.Add("logs", fn.Region, fn.Account, group+":*/*", permissions.LogEventActions...)
	return nil
}

// VPCStage grants network interface management to VPC-attached functions.
type VPCStage struct{}

func (s *VPCStage) Name() string { return "vpc" }

func (s *VPCStage) Run(_ context.Context, fn *scanner.Function) error {
	if fn.VPC {
		fn.Tree.Add("ec2", tree.Wildcard, tree.Wildcard, tree.Wildcard, permissions.VPCActions...)
	}
	return nil
}

// DynamoDB stream ARNs nest the stream under its table.
var streamARN = regexp.MustCompile(`^arn:aws:([^:]*):[^:]*:[^:]*:(?:table/[^/]+/)?stream/.*`)

// StreamStage grants read access to the streams mapped to the function,
// from the template and from the live event source mappings.
type StreamStage struct {
	Lister Lister
}

func (s *StreamStage) Name() string { return "streams" }

func (s *StreamStage) Run(ctx context.Context, fn *scanner.Function) error {
	sources := slices.Clone(fn.EventSources)
	if s.Lister != nil {
		live, err := s.Lister.List(ctx, aws.EventSourceMappings, fn.Region, fn.Account, fn.Name)
		if err != nil {
			return err
		}
		sources = append(sources, live...)
	}

	for _, arn := range sources {
		if !streamARN.MatchString(arn) {
			fn.Log().Debug("ignoring non-stream event source", "function", fn.Name, "arn", arn)
			continue
		}
		service, region, account, resource, ok := tree.ParseARN(arn)
		if !ok {
			continue
		}
		fn.Tree.Add(service, region, account, resource, permissions.StreamReadActions(service)...)
	}
	tree.NormalizePermissions(fn.Tree)
	return nil
}
