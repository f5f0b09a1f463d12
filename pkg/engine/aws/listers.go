package aws

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Kind names one listing call. The part before the dot is the service.
type Kind string

const (
	Tables              Kind = "dynamodb.tables"
	TableStreams        Kind = "dynamodbstreams.streams"
	Streams             Kind = "kinesis.streams"
	Keys                Kind = "kms.keys"
	Aliases             Kind = "kms.aliases"
	Functions           Kind = "lambda.functions"
	EventSourceMappings Kind = "lambda.event-source-mappings"
	Buckets             Kind = "s3.buckets"
	Topics              Kind = "sns.topics"
	StateMachines       Kind = "states.state-machines"
	Activities          Kind = "states.activities"
	Executions          Kind = "states.executions"
)

func (k Kind) Service() string {
	service, _, _ := strings.Cut(string(k), ".")
	return service
}

// API client surfaces, one per service, limited to read-only calls.
type (
	DynamoDBAPI interface {
		dynamodb.ListTablesAPIClient
	}
	DynamoDBStreamsAPI interface {
		ListStreams(ctx context.Context, params *dynamodbstreams.ListStreamsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.ListStreamsOutput, error)
	}
	KinesisAPI interface {
		ListStreams(ctx context.Context, params *kinesis.ListStreamsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListStreamsOutput, error)
	}
	KMSAPI interface {
		kms.ListKeysAPIClient
		kms.ListAliasesAPIClient
	}
	LambdaAPI interface {
		lambda.ListFunctionsAPIClient
		lambda.ListEventSourceMappingsAPIClient
	}
	S3API interface {
		s3.ListBucketsAPIClient
	}
	SNSAPI interface {
		sns.ListTopicsAPIClient
	}
	SFNAPI interface {
		sfn.ListStateMachinesAPIClient
		sfn.ListActivitiesAPIClient
		sfn.ListExecutionsAPIClient
	}
	EC2API interface {
		DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	}
	IAMAPI interface {
		iam.SimulateCustomPolicyAPIClient
	}
)

// Factory builds API clients from a config.
type Factory struct {
	DynamoDB        func(aws.Config) DynamoDBAPI
	DynamoDBStreams func(aws.Config) DynamoDBStreamsAPI
	Kinesis         func(aws.Config) KinesisAPI
	KMS             func(aws.Config) KMSAPI
	Lambda          func(aws.Config) LambdaAPI
	S3              func(aws.Config) S3API
	SNS             func(aws.Config) SNSAPI
	SFN             func(aws.Config) SFNAPI
	EC2             func(aws.Config) EC2API
	IAM             func(aws.Config) IAMAPI
}

func DefaultFactory() Factory {
	return Factory{
		DynamoDB:        func(c aws.Config) DynamoDBAPI { return dynamodb.NewFromConfig(c) },
		DynamoDBStreams: func(c aws.Config) DynamoDBStreamsAPI { return dynamodbstreams.NewFromConfig(c) },
		Kinesis:         func(c aws.Config) KinesisAPI { return kinesis.NewFromConfig(c) },
		KMS:             func(c aws.Config) KMSAPI { return kms.NewFromConfig(c) },
		Lambda:          func(c aws.Config) LambdaAPI { return lambda.NewFromConfig(c) },
		S3:              func(c aws.Config) S3API { return s3.NewFromConfig(c) },
		SNS:             func(c aws.Config) SNSAPI { return sns.NewFromConfig(c) },
		SFN:             func(c aws.Config) SFNAPI { return sfn.NewFromConfig(c) },
		EC2:             func(c aws.Config) EC2API { return ec2.NewFromConfig(c) },
		IAM:             func(c aws.Config) IAMAPI { return iam.NewFromConfig(c) },
	}
}

type lister func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, arg string) ([]string, error)

var listers = map[Kind]lister{
	Tables: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listTables(ctx, clientFor(&s.clients, key, func() DynamoDBAPI { return s.API.DynamoDB(cfg) }))
	},
	TableStreams: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, table string) ([]string, error) {
		return listTableStreams(ctx, clientFor(&s.clients, key, func() DynamoDBStreamsAPI { return s.API.DynamoDBStreams(cfg) }), table)
	},
	Streams: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listStreams(ctx, clientFor(&s.clients, key, func() KinesisAPI { return s.API.Kinesis(cfg) }))
	},
	Keys: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listKeys(ctx, clientFor(&s.clients, key, func() KMSAPI { return s.API.KMS(cfg) }))
	},
	Aliases: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listAliases(ctx, clientFor(&s.clients, key, func() KMSAPI { return s.API.KMS(cfg) }))
	},
	Functions: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listFunctions(ctx, clientFor(&s.clients, key, func() LambdaAPI { return s.API.Lambda(cfg) }))
	},
	EventSourceMappings: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, function string) ([]string, error) {
		return listEventSources(ctx, clientFor(&s.clients, key, func() LambdaAPI { return s.API.Lambda(cfg) }), function)
	},
	Buckets: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listBuckets(ctx, clientFor(&s.clients, key, func() S3API { return s.API.S3(cfg) }))
	},
	Topics: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listTopics(ctx, clientFor(&s.clients, key, func() SNSAPI { return s.API.SNS(cfg) }))
	},
	StateMachines: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		machines, err := s.stateMachines(ctx, cfg, key)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(machines))
		for i, m := range machines {
			names[i] = m.name
		}
		return names, nil
	},
	Activities: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, _ string) ([]string, error) {
		return listActivities(ctx, clientFor(&s.clients, key, func() SFNAPI { return s.API.SFN(cfg) }))
	},
	Executions: func(ctx context.Context, s *Session, cfg aws.Config, key clientKey, machine string) ([]string, error) {
		machines, err := s.stateMachines(ctx, cfg, key)
		if err != nil {
			return nil, err
		}
		for _, m := range machines {
			if m.name == machine {
				return listExecutions(ctx, clientFor(&s.clients, key, func() SFNAPI { return s.API.SFN(cfg) }), m.arn)
			}
		}
		return nil, nil
	},
}

// List returns the names of one resource kind in region and account. A
// wildcard region or account falls back to the session default. Results
// are cached for the run; an API error is returned wrapped and is meant
// to end the run.
func (s *Session) List(ctx context.Context, kind Kind, region, account, arg string) ([]string, error) {
	l, ok := listers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	region, account = s.target(region, account)
	return s.cache.Do(ctx, cacheKey{kind: kind, region: region, account: account, arg: arg}, func() ([]string, error) {
		cfg, err := s.Config(ctx, region, account)
		if err != nil {
			return nil, err
		}
		key := clientKey{service: kind.Service(), region: region, account: account}
		names, err := l(ctx, s, cfg, key, arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources on %s: %w", kind.Service(), err)
		}
		return names, nil
	})
}

func listTables(ctx context.Context, c DynamoDBAPI) ([]string, error) {
	var names []string
	p := dynamodb.NewListTablesPaginator(c, &dynamodb.ListTablesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, page.TableNames...)
	}
	return names, nil
}

// listTableStreams returns the stream labels of one table.
func listTableStreams(ctx context.Context, c DynamoDBStreamsAPI, table string) ([]string, error) {
	var labels []string
	in := &dynamodbstreams.ListStreamsInput{TableName: aws.String(table)}
	for {
		out, err := c.ListStreams(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, st := range out.Streams {
			labels = append(labels, aws.ToString(st.StreamLabel))
		}
		if out.LastEvaluatedStreamArn == nil {
			return labels, nil
		}
		in.ExclusiveStartStreamArn = out.LastEvaluatedStreamArn
	}
}

func listStreams(ctx context.Context, c KinesisAPI) ([]string, error) {
	var names []string
	in := &kinesis.ListStreamsInput{}
	for {
		out, err := c.ListStreams(ctx, in)
		if err != nil {
			return nil, err
		}
		names = append(names, out.StreamNames...)
		if !aws.ToBool(out.HasMoreStreams) || len(out.StreamNames) == 0 {
			return names, nil
		}
		in = &kinesis.ListStreamsInput{ExclusiveStartStreamName: aws.String(out.StreamNames[len(out.StreamNames)-1])}
	}
}

func listKeys(ctx context.Context, c KMSAPI) ([]string, error) {
	var ids []string
	p := kms.NewListKeysPaginator(c, &kms.ListKeysInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range page.Keys {
			ids = append(ids, aws.ToString(k.KeyId))
		}
	}
	return ids, nil
}

// listAliases returns alias names without their "alias/" prefix.
func listAliases(ctx context.Context, c KMSAPI) ([]string, error) {
	var names []string
	p := kms.NewListAliasesPaginator(c, &kms.ListAliasesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range page.Aliases {
			names = append(names, strings.TrimPrefix(aws.ToString(a.AliasName), "alias/"))
		}
	}
	return names, nil
}

func listFunctions(ctx context.Context, c LambdaAPI) ([]string, error) {
	var names []string
	p := lambda.NewListFunctionsPaginator(c, &lambda.ListFunctionsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range page.Functions {
			names = append(names, aws.ToString(f.FunctionName))
		}
	}
	return names, nil
}

// listEventSources returns the event source ARNs mapped to a function.
func listEventSources(ctx context.Context, c LambdaAPI, function string) ([]string, error) {
	var arns []string
	p := lambda.NewListEventSourceMappingsPaginator(c, &lambda.ListEventSourceMappingsInput{FunctionName: aws.String(function)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range page.EventSourceMappings {
			if arn := aws.ToString(m.EventSourceArn); arn != "" {
				arns = append(arns, arn)
			}
		}
	}
	return arns, nil
}

func listBuckets(ctx context.Context, c S3API) ([]string, error) {
	var names []string
	p := s3.NewListBucketsPaginator(c, &s3.ListBucketsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range page.Buckets {
			names = append(names, aws.ToString(b.Name))
		}
	}
	return names, nil
}

var arnLastSegment = regexp.MustCompile(`^arn:.*:(.+?)$`)

// listTopics returns topic names, taken from the last ARN segment.
func listTopics(ctx context.Context, c SNSAPI) ([]string, error) {
	var names []string
	p := sns.NewListTopicsPaginator(c, &sns.ListTopicsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range page.Topics {
			if m := arnLastSegment.FindStringSubmatch(aws.ToString(t.TopicArn)); m != nil {
				names = append(names, m[1])
			}
		}
	}
	return names, nil
}

type stateMachine struct {
	name string
	arn  string
}

// stateMachines is listed once per client and shared by the machine and
// execution kinds, since executions are listed by machine ARN.
func (s *Session) stateMachines(ctx context.Context, cfg aws.Config, key clientKey) ([]stateMachine, error) {
	s.mu.Lock()
	if s.machines == nil {
		s.machines = map[clientKey][]stateMachine{}
	}
	machines, ok := s.machines[key]
	s.mu.Unlock()
	if ok {
		return machines, nil
	}

	c := clientFor(&s.clients, key, func() SFNAPI { return s.API.SFN(cfg) })
	p := sfn.NewListStateMachinesPaginator(c, &sfn.ListStateMachinesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range page.StateMachines {
			machines = append(machines, stateMachine{name: aws.ToString(m.Name), arn: aws.ToString(m.StateMachineArn)})
		}
	}

	s.mu.Lock()
	s.machines[key] = machines
	s.mu.Unlock()
	return machines, nil
}

func listActivities(ctx context.Context, c SFNAPI) ([]string, error) {
	var names []string
	p := sfn.NewListActivitiesPaginator(c, &sfn.ListActivitiesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range page.Activities {
			names = append(names, aws.ToString(a.Name))
		}
	}
	return names, nil
}

func listExecutions(ctx context.Context, c SFNAPI, machineARN string) ([]string, error) {
	var names []string
	p := sfn.NewListExecutionsPaginator(c, &sfn.ListExecutionsInput{StateMachineArn: aws.String(machineARN)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Executions {
			names = append(names, aws.ToString(e.Name))
		}
	}
	return names, nil
}
