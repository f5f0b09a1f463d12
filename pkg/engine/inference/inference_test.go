package inference

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
	"github.com/DrSkyle/rolesmith/pkg/engine/permissions"
	"github.com/DrSkyle/rolesmith/pkg/engine/runtimes"
	"github.com/DrSkyle/rolesmith/pkg/engine/scanner"
	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
	"github.com/DrSkyle/rolesmith/pkg/engine/walker"
)

type fakeLister struct {
	names map[string][]string // kind|arg -> names
	err   error
	calls []string
}

func (f *fakeLister) List(_ context.Context, kind aws.Kind, region, account, arg string) ([]string, error) {
	f.calls = append(f.calls, string(kind)+"|"+arg+"@"+region+":"+account)
	if f.err != nil {
		return nil, f.err
	}
	return f.names[string(kind)+"|"+arg], nil
}

type fakeRegions []string

func (f fakeRegions) IsRegion(_ context.Context, name string) bool { return slices.Contains(f, name) }
func (f fakeRegions) Regions(context.Context) []string           { return f }

type fakeDeclared map[string][]string

func (f fakeDeclared) ResourceNames(resourceType string) []string { return f[resourceType] }

var regions = fakeRegions{"eu-west-1", "us-east-1", "us-west-2"}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newFunction(t *testing.T, files map[string]string) (*scanner.Function, *bytes.Buffer) {
	t.Helper()
	py, err := runtimes.Lookup("python3.12", runtimes.Tools{})
	require.NoError(t, err)
	var logs bytes.Buffer
	return &scanner.Function{
		Name:     "orders",
		Runtime:  "python3.12",
		Region:   "us-east-1",
		Account:  "111",
		Analyzer: py,
		Walker:   &walker.Naive{Root: writeFiles(t, files)},
		Tree:     tree.New(),
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
	}, &logs
}

func TestServiceStage(t *testing.T) {
	fn, logs := newFunction(t, map[string]string{
		"app.py": `
ddb = boto3.resource('dynamodb')
s3 = boto3.client('s3', region_name=get_region())
sns = boto3.client('sns', aws_access_key_id=key)
`,
		"README.txt": `boto3.client('kms')`,
	})
	fn.Strict = true

	require.NoError(t, (&ServiceStage{Regions: regions}).Run(context.Background(), fn))

	assert.Equal(t, tree.Tree{
		"dynamodb": {"us-east-1": {"111": {}}},
		"s3":       {"*": {"111": {}}},
		"sns":      {"us-east-1": {"*": {}}},
	}, fn.Tree)
	assert.Contains(t, logs.String(), "incomprehensive region: get_region() (in ")
	assert.Contains(t, logs.String(), "unknown account: 'sns', aws_access_key_id=key (in ")
	assert.Len(t, fn.Violations(), 2)
}

func TestServiceStageNormalizesWildcards(t *testing.T) {
	fn, _ := newFunction(t, map[string]string{
		"app.py": `
a = boto3.client('s3')
b = boto3.client('s3', region_name=get_region())
`,
	})
	require.NoError(t, (&ServiceStage{Regions: regions}).Run(context.Background(), fn))
	assert.Equal(t, tree.Tree{"s3": {"*": {"111": {}}}}, fn.Tree)
}

func TestRegionStage(t *testing.T) {
	t.Run("expands mentioned regions", func(t *testing.T) {
		fn, _ := newFunction(t, map[string]string{
			"app.py":      `REPLICA = "eu-west-1"`,
			"config.json": `{"region": "us-east-1x"}`,
		})
		fn.Environment = map[string]string{"BACKUP": "us-west-2"}
		fn.Tree = tree.Tree{
			"ses": {"*": {"111": {"*": {}}, "222": {}}},
			"s3":  {"us-east-1": {"111": {}}},
		}

		require.NoError(t, (&RegionStage{Regions: regions}).Run(context.Background(), fn))
		assert.Equal(t, tree.Tree{
			"ses": {
				"eu-west-1": {"111": {"*": {}}, "222": {}},
				"us-west-2": {"111": {"*": {}}, "222": {}},
			},
			"s3": {"us-east-1": {"111": {}}},
		}, fn.Tree)
	})

	t.Run("keeps the wildcard without mentions", func(t *testing.T) {
		fn, _ := newFunction(t, map[string]string{"app.py": `print("hello")`})
		fn.Tree = tree.Tree{"ses": {"*": {"111": {}}}}
		require.NoError(t, (&RegionStage{Regions: regions}).Run(context.Background(), fn))
		assert.Equal(t, tree.Tree{"ses": {"*": {"111": {}}}}, fn.Tree)
	})

	t.Run("copies are independent", func(t *testing.T) {
		fn, _ := newFunction(t, map[string]string{"app.py": `eu-west-1 us-west-2`})
		fn.Tree = tree.Tree{"ses": {"*": {"111": {"*": {}}}}}
		require.NoError(t, (&RegionStage{Regions: regions}).Run(context.Background(), fn))
		fn.Tree["ses"]["eu-west-1"]["111"]["*"].Add("ses:SendEmail")
		assert.Empty(t, fn.Tree["ses"]["us-west-2"]["111"]["*"])
	})
}

func TestResourceStage(t *testing.T) {
	source := map[string]string{
		"app.py": `
TABLE = "orders"
BUCKET = 'assets'
FLOW = "flow"
`,
	}

	tests := []struct {
		name     string
		service  string
		names    map[string][]string
		declared fakeDeclared
		env      map[string]string
		want     tree.Resources
		warning  string
	}{
		{
			name:    "dynamodb tables and template names",
			service: "dynamodb",
			names: map[string][]string{
				"dynamodb.tables|":                 {"orders", "users"},
				"dynamodbstreams.streams|orders":   {"2024-06-01T00:00:00.000"},
				"dynamodbstreams.streams|Payments": nil,
			},
			declared: fakeDeclared{"AWS::DynamoDB::Table": {"Payments"}},
			env:      map[string]string{"PAYMENTS_TABLE": "payments"},
			want: tree.Resources{
				"table/orders":            {},
				"table/Payments":          {},
				"table/Payments/stream/*": {},
			},
		},
		{
			name:    "dynamodb without tables",
			service: "dynamodb",
			want:    tree.Resources{"table/*": {}},
			warning: "no dynamodb resources (AWS::DynamoDB::Table) on 'us-east-1:111'",
		},
		{
			name:    "s3 buckets and objects",
			service: "s3",
			names:   map[string][]string{"s3.buckets|": {"assets", "logs"}},
			want:    tree.Resources{"assets": {}, "assets/*": {}},
		},
		{
			name:    "kinesis with unmatched streams falls back",
			service: "kinesis",
			names:   map[string][]string{"kinesis.streams|": {"clicks"}},
			want:    tree.Resources{"*": {}},
			warning: "unknown resources for 'kinesis:us-east-1:111'",
		},
		{
			name:    "kms keys and aliases",
			service: "kms",
			names: map[string][]string{
				"kms.keys|":    {"1234abcd"},
				"kms.aliases|": {"Orders"},
			},
			want: tree.Resources{"alias/Orders": {}},
		},
		{
			name:    "step functions",
			service: "states",
			names: map[string][]string{
				"states.state-machines|": {"flow"},
				"states.activities|":     {"approve"},
				"states.executions|flow": nil,
			},
			want: tree.Resources{
				"stateMachine:flow": {},
				"execution:flow:*":  {},
			},
		},
		{
			name:    "service without listers",
			service: "ses",
			want:    tree.Resources{"*": {}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, logs := newFunction(t, source)
			fn.Environment = tt.env
			fn.Tree.Ensure(tt.service, "us-east-1", "111")

			stage := &ResourceStage{Lister: &fakeLister{names: tt.names}}
			if tt.declared != nil {
				stage.Declared = tt.declared
			}
			require.NoError(t, stage.Run(context.Background(), fn))

			got, ok := fn.Tree.Lookup(tt.service, "us-east-1", "111")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			if tt.warning != "" {
				assert.Contains(t, logs.String(), tt.warning)
			}
		})
	}
}

func TestResourceStageWarnsEmptyOncePerRun(t *testing.T) {
	stage := &ResourceStage{Lister: &fakeLister{}}
	var count int
	for range 2 {
		fn, logs := newFunction(t, map[string]string{"app.py": ""})
		fn.Tree.Ensure("sns", "us-east-1", "111")
		require.NoError(t, stage.Run(context.Background(), fn))
		count += bytes.Count(logs.Bytes(), []byte("no sns resources"))
	}
	assert.Equal(t, 1, count)
}

func TestResourceStageStrictEmptyUniverse(t *testing.T) {
	stage := &ResourceStage{Lister: &fakeLister{}}
	var warnings int
	for _, name := range []string{"orders", "billing"} {
		fn, logs := newFunction(t, map[string]string{"app.py": ""})
		fn.Name = name
		fn.Strict = true
		fn.Tree.Ensure("dynamodb", "us-east-1", "111")

		require.NoError(t, stage.Run(context.Background(), fn))

		assert.Contains(t, fn.Tree["dynamodb"]["us-east-1"]["111"], "table/*")
		violations := fn.Violations()
		require.Len(t, violations, 1, name)
		assert.Contains(t, violations[0], name+": no dynamodb resources")
		warnings += bytes.Count(logs.Bytes(), []byte("no dynamodb resources"))
	}
	assert.Equal(t, 1, warnings)
}

func TestResourceStageListingError(t *testing.T) {
	fn, _ := newFunction(t, map[string]string{"app.py": ""})
	fn.Tree.Ensure("sns", "us-east-1", "111")
	boom := errors.New("throttled")
	err := (&ResourceStage{Lister: &fakeLister{err: boom}}).Run(context.Background(), fn)
	assert.ErrorIs(t, err, boom)
}

func TestActionStage(t *testing.T) {
	fn, logs := newFunction(t, map[string]string{
		"app.py": `
table.put_item(Item=item)
client.list_tables()
`,
		"notes.txt": `table.delete_item(Key=k)`,
	})
	fn.Tree = tree.Tree{
		"dynamodb": {"us-east-1": {"111": {"table/orders": {}, "table/orders/stream/*": {}}}},
		"sns":      {"us-east-1": {"111": {"*": {}}}},
	}
	fn.Strict = true

	require.NoError(t, (&ActionStage{}).Run(context.Background(), fn))

	assert.Equal(t, tree.Resources{
		"table/orders": tree.NewActions("dynamodb:PutItem"),
		"*":            tree.NewActions("dynamodb:ListTables"),
	}, fn.Tree["dynamodb"]["us-east-1"]["111"])
	assert.Equal(t, tree.Resources{"*": tree.NewActions("*")}, fn.Tree["sns"]["us-east-1"]["111"])
	assert.Contains(t, logs.String(), "unknown actions for 'sns:us-east-1:111:*'")
	assert.Len(t, fn.Violations(), 1)
}

type unknownAnalyzer struct{ runtimes.Analyzer }

func (unknownAnalyzer) MatchActions(string, string) ([]string, bool) { return nil, false }

func TestActionStageUnknownServiceGetsWildcard(t *testing.T) {
	fn, _ := newFunction(t, map[string]string{"app.py": `x.put_item()`})
	fn.Analyzer = unknownAnalyzer{fn.Analyzer}
	fn.Tree = tree.Tree{"dynamodb": {"us-east-1": {"111": {"table/orders": {}}}}}

	require.NoError(t, (&ActionStage{}).Run(context.Background(), fn))
	assert.Equal(t, tree.Resources{"table/orders": tree.NewActions("*")}, fn.Tree["dynamodb"]["us-east-1"]["111"])
}

func TestCleanupStage(t *testing.T) {
	fn := &scanner.Function{Tree: tree.Tree{
		"s3": {
			"us-east-1": {"111": {"assets": tree.NewActions("s3:CreateBucket")}},
			"eu-west-1": {"111": {"logs": tree.NewActions("s3:GetObject")}},
		},
	}}
	require.NoError(t, (&CleanupStage{}).Run(context.Background(), fn))
	assert.Equal(t, tree.Tree{"s3": {"": {"111": {
		"logs": tree.NewActions("s3:GetObject"),
		"*":    tree.NewActions("s3:CreateBucket"),
	}}}}, fn.Tree)
}

func TestLogsAndVPCStages(t *testing.T) {
	fn := &scanner.Function{Name: "orders", Region: "us-east-1", Account: "111", VPC: true, Tree: tree.New()}
	require.NoError(t, (&LogsStage{}).Run(context.Background(), fn))
	require.NoError(t, (&VPCStage{}).Run(context.Background(), fn))

	assert.Equal(t, tree.Resources{
		"log-group:/aws/lambda/orders":     tree.NewActions("logs:CreateLogGroup"),
		"log-group:/aws/lambda/orders:*":   tree.NewActions("logs:CreateLogStream"),
		"log-group:/aws/lambda/orders:*/*": tree.NewActions("logs:PutLogEvents"),
	}, fn.Tree["logs"]["us-east-1"]["111"])

	leaves := fn.Tree.Leaves()
	assert.Equal(t, "*", leaves[0].ARN())
	assert.Equal(t, []string{"ec2:CreateNetworkInterface", "ec2:DeleteNetworkInterface", "ec2:DescribeNetworkInterfaces"}, leaves[0].Actions)
}

func TestVPCStageSkipsPlainFunctions(t *testing.T) {
	fn := &scanner.Function{Tree: tree.New()}
	require.NoError(t, (&VPCStage{}).Run(context.Background(), fn))
	assert.Empty(t, fn.Tree)
}

func TestStreamStage(t *testing.T) {
	lister := &fakeLister{names: map[string][]string{
		"lambda.event-source-mappings|orders": {"arn:aws:dynamodb:us-east-1:111:table/orders/stream/2024-06-01T00:00:00.000"},
	}}
	fn := &scanner.Function{
		Name:    "orders",
		Region:  "us-east-1",
		Account: "111",
		Tree:    tree.New(),
		EventSources: []string{
			"arn:aws:kinesis:us-east-1:111:stream/clicks",
			"arn:aws:sqs:us-east-1:111:jobs",
		},
	}

	require.NoError(t, (&StreamStage{Lister: lister}).Run(context.Background(), fn))

	assert.Equal(t, []string{"lambda.event-source-mappings|orders@us-east-1:111"}, lister.calls)
	assert.Equal(t, tree.Tree{
		"kinesis": {"us-east-1": {"111": {
			"stream/clicks": tree.NewActions(permissions.StreamReadActions("kinesis")...),
		}}},
		"dynamodb": {"us-east-1": {"111": {
			"table/orders/stream/2024-06-01T00:00:00.000": tree.NewActions(permissions.StreamReadActions("dynamodb")...),
		}}},
	}, fn.Tree)
}

func TestStreamStageKeepsWildcardRegion(t *testing.T) {
	fn := &scanner.Function{
		Name:         "orders",
		Region:       "us-east-1",
		Account:      "111",
		Tree:         tree.New(),
		EventSources: []string{"arn:aws:kinesis:us-east-1:111:stream/clicks"},
	}
	fn.Tree.Add("kinesis", tree.Wildcard, "111", tree.Wildcard, "kinesis:PutRecord")

	require.NoError(t, (&StreamStage{}).Run(context.Background(), fn))

	want := append([]string{"kinesis:PutRecord"}, permissions.StreamReadActions("kinesis")...)
	assert.Equal(t, tree.Tree{
		"kinesis": {tree.Wildcard: {"111": {tree.Wildcard: tree.NewActions(want...)}}},
	}, fn.Tree)
}

func TestPipeline(t *testing.T) {
	lister := &fakeLister{names: map[string][]string{
		"dynamodb.tables|": {"orders", "users"},
		"s3.buckets|":      {"assets"},
	}}
	fn, _ := newFunction(t, map[string]string{
		"handler.py": `
import boto3

table = boto3.resource('dynamodb').Table('orders')
s3 = boto3.client('s3')

def handle(event, context):
    table.put_item(Item=event)
    s3.upload_file('/tmp/out', 'assets', 'out')
`,
	})

	r := scanner.NewRegistry(Stages(Deps{Lister: lister, Regions: regions})...)
	assert.Equal(t, []string{"services", "regions", "resources", "actions", "cleanup", "logs", "vpc", "streams"}, r.Stages())
	require.NoError(t, r.Run(context.Background(), fn))

	arns := map[string][]string{}
	for _, l := range fn.Tree.Leaves() {
		arns[l.ARN()] = l.Actions
	}
	assert.Equal(t, []string{"dynamodb:PutItem"}, arns["arn:aws:dynamodb:us-east-1:111:table/orders"])
	assert.Equal(t, []string{"s3:PutObject"}, arns["arn:aws:s3::111:assets/*"])
	assert.Equal(t, []string{"logs:CreateLogGroup"}, arns["arn:aws:logs:us-east-1:111:log-group:/aws/lambda/orders"])
	assert.NotContains(t, arns, "arn:aws:dynamodb:us-east-1:111:table/users")
}
