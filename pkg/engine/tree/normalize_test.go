package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePermissions(t *testing.T) {
	tr := New()
	tr.Add("dynamodb", "*", "111", "table/a", "dynamodb:GetItem")
	tr.Add("dynamodb", "us-east-1", "111", "table/b", "dynamodb:PutItem")
	tr.Add("dynamodb", "us-east-1", "*", "table/c", "dynamodb:Query")
	tr.Add("s3", "us-east-1", "111", "bucket", "s3:GetObject")

	NormalizePermissions(tr)

	assert.Equal(t, []Leaf{
		{Service: "dynamodb", Region: "*", Account: "*", Resource: "table/a", Actions: []string{"dynamodb:GetItem"}},
		{Service: "dynamodb", Region: "*", Account: "*", Resource: "table/b", Actions: []string{"dynamodb:PutItem"}},
		{Service: "dynamodb", Region: "*", Account: "*", Resource: "table/c", Actions: []string{"dynamodb:Query"}},
		{Service: "s3", Region: "us-east-1", Account: "111", Resource: "bucket", Actions: []string{"s3:GetObject"}},
	}, tr.Leaves())
}

func TestNormalizePermissionsWildcardResource(t *testing.T) {
	tr := New()
	tr.Add("sns", "us-east-1", "111", "*", "sns:Publish")
	tr.Add("sns", "us-east-1", "111", "topic", "sns:Subscribe")

	NormalizePermissions(tr)

	res, _ := tr.Lookup("sns", "us-east-1", "111")
	assert.Len(t, res, 1)
	assert.Equal(t, []string{"sns:Publish", "sns:Subscribe"}, res["*"].Sorted())
}

func TestNormalizePermissionsIdempotent(t *testing.T) {
	tr := New()
	tr.Add("kinesis", "*", "*", "stream/a", "kinesis:PutRecord")
	tr.Add("kinesis", "eu-west-1", "111", "stream/b", "kinesis:GetRecords")
	tr.Add("kinesis", "eu-west-1", "*", "*", "kinesis:ListStreams")

	NormalizePermissions(tr)
	once := tr.Clone()
	NormalizePermissions(tr)

	assert.Equal(t, once, tr)
}

func TestNormalizeResources(t *testing.T) {
	tests := []struct {
		name     string
		in       Resources
		want     Resources
		fellBack bool
	}{
		{
			name:     "empty falls back",
			in:       Resources{},
			want:     Resources{"*": Actions{}},
			fellBack: true,
		},
		{
			name: "no globs untouched",
			in:   Resources{"a": NewActions("x"), "b": NewActions("y")},
			want: Resources{"a": NewActions("x"), "b": NewActions("y")},
		},
		{
			name: "wildcard absorbs everything",
			in:   Resources{"a": NewActions("x"), "b": NewActions("y"), "*": NewActions("z")},
			want: Resources{"*": NewActions("x", "y", "z")},
		},
		{
			name: "glob absorbs matching siblings only",
			in: Resources{
				"stateMachine/*": NewActions("x"),
				"stateMachine/a": NewActions("y"),
				"activity/b":     NewActions("z"),
				"execution/*":    NewActions("*"),
			},
			want: Resources{
				"stateMachine/*": NewActions("x", "y"),
				"activity/b":     NewActions("z"),
				"execution/*":    NewActions("*"),
			},
		},
		{
			name: "star crosses slashes",
			in: Resources{
				"table/*":          Actions{},
				"table/t/stream/s": NewActions("dynamodb:GetRecords"),
				"table/t":          NewActions("dynamodb:GetItem"),
			},
			want: Resources{"table/*": NewActions("dynamodb:GetItem", "dynamodb:GetRecords")},
		},
		{
			name: "question mark matches one char",
			in:   Resources{"key/?": Actions{}, "key/a": NewActions("x"), "key/ab": NewActions("y")},
			want: Resources{"key/?": NewActions("x"), "key/ab": NewActions("y")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeResources(tt.in)
			assert.Equal(t, tt.fellBack, got)
			assert.Equal(t, tt.want, tt.in)
		})
	}
}

func TestNormalizeActions(t *testing.T) {
	tests := []struct {
		name     string
		in       Resources
		want     Resources
		fellBack []string
	}{
		{
			name: "non-empty untouched",
			in:   Resources{"table/t": NewActions("a", "b")},
			want: Resources{"table/t": NewActions("a", "b")},
		},
		{
			name: "wildcard collapses set",
			in:   Resources{"table/t": NewActions("a", "*", "c")},
			want: Resources{"table/t": NewActions("*")},
		},
		{
			name: "empty table dropped when stream has actions",
			in: Resources{
				"table/t":          Actions{},
				"table/t/stream/s": NewActions("dynamodb:DescribeStream"),
			},
			want: Resources{"table/t/stream/s": NewActions("dynamodb:DescribeStream")},
		},
		{
			name: "empty stream dropped when table has actions",
			in: Resources{
				"table/t/stream/s": Actions{},
				"table/t":          NewActions("dynamodb:GetItem"),
			},
			want: Resources{"table/t": NewActions("dynamodb:GetItem")},
		},
		{
			name: "all empty fall back",
			in: Resources{
				"table/t":          Actions{},
				"table/t/stream/s": Actions{},
			},
			want: Resources{
				"table/t":          NewActions("*"),
				"table/t/stream/s": NewActions("*"),
			},
			fellBack: []string{"table/t", "table/t/stream/s"},
		},
		{
			name:     "sibling with only wildcard does not cover",
			in:       Resources{"bucket": Actions{}, "bucket/*": NewActions("*")},
			want:     Resources{"bucket": NewActions("*"), "bucket/*": NewActions("*")},
			fellBack: []string{"bucket"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeActions(tt.in)
			assert.Equal(t, tt.fellBack, got)
			assert.Equal(t, tt.want, tt.in)
		})
	}
}

func TestNoEmptyLeavesAfterNormalization(t *testing.T) {
	res := Resources{}
	NormalizeResources(res)
	NormalizeActions(res)
	for k, v := range res {
		assert.NotEmpty(t, v, k)
	}
	assert.NotEmpty(t, res)
}

func TestCleanup(t *testing.T) {
	tr := New()
	tr.Add("s3", "us-east-1", "some-account", "bucket", "s3:CreateBucket")
	tr.Add("s3", "eu-west-1", "another-account", "otherbucket", "s3:ListBucket")
	tr.Add("dynamodb", "us-west-1", "111", "table/a", "dynamodb:GetItem", "dynamodb:ListTables")
	tr.Add("dynamodb", "us-west-1", "111", "table/b", "dynamodb:ListTables")

	Cleanup(tr,
		map[string]bool{"s3": true},
		map[string][]string{
			"s3":       {"s3:CreateBucket", "s3:ListAllMyBuckets"},
			"dynamodb": {"dynamodb:ListTables"},
		})

	assert.Equal(t, []Leaf{
		{Service: "dynamodb", Region: "us-west-1", Account: "111", Resource: "*", Actions: []string{"dynamodb:ListTables"}},
		{Service: "dynamodb", Region: "us-west-1", Account: "111", Resource: "table/a", Actions: []string{"dynamodb:GetItem"}},
		{Service: "s3", Region: "", Account: "another-account", Resource: "otherbucket", Actions: []string{"s3:ListBucket"}},
		{Service: "s3", Region: "", Account: "some-account", Resource: "*", Actions: []string{"s3:CreateBucket"}},
	}, tr.Leaves())
}

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		in      string
		want    bool
	}{
		{"table/*", "table/a/stream/b", true},
		{"table/*", "tables", false},
		{"key/?", "key/a", true},
		{"key/?", "key/ab", false},
		{"a.b", "axb", false},
		{"[ab]x", "bx", true},
		{"[!ab]x", "bx", false},
		{"[x", "[x", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.in, func(t *testing.T) {
			g, err := compileGlob(tt.pattern)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, g.MatchString(tt.in))
		})
	}
}
