package permissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

const (
	PolicyVersion    = "2012-10-17"
	InlinePolicyName = "RolesmithGeneratedPolicy"
	RoleNamePrefix   = "rolesmith-"
)

type PolicyDocument struct {
	Version   string      `json:"Version" yaml:"Version"`
	Statement []Statement `json:"Statement" yaml:"Statement"`
}

type Statement struct {
	Sid       string            `json:"Sid,omitempty" yaml:"Sid,omitempty"`
	Effect    string            `json:"Effect" yaml:"Effect"`
	Principal map[string]string `json:"Principal,omitempty" yaml:"Principal,omitempty"`
	Action    []string          `json:"Action" yaml:"Action"`
	Resource  string            `json:"Resource,omitempty" yaml:"Resource,omitempty"`
}

type InlinePolicy struct {
	PolicyName     string         `json:"PolicyName" yaml:"PolicyName"`
	PolicyDocument PolicyDocument `json:"PolicyDocument" yaml:"PolicyDocument"`
}

type RoleProperties struct {
	Path                     string         `json:"Path" yaml:"Path"`
	RoleName                 string         `json:"RoleName" yaml:"RoleName"`
	AssumeRolePolicyDocument PolicyDocument `json:"AssumeRolePolicyDocument" yaml:"AssumeRolePolicyDocument"`
	Policies                 []InlinePolicy `json:"Policies,omitempty" yaml:"Policies,omitempty"`
}

// Role is an AWS::IAM::Role template resource.
type Role struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties RoleProperties `json:"Properties" yaml:"Properties"`
}

// Document is the template fragment holding one role per function. Roles
// render in the order they were added.
type Document struct {
	Resources map[string]Role `json:"Resources" yaml:"Resources"`
	Order     []string        `json:"-" yaml:"-"`
}

func NewDocument() *Document {
	return &Document{Resources: map[string]Role{}}
}

// Add renders a function's permission tree as a role.
func (d *Document) Add(function string, t tree.Tree) {
	id := LogicalID(function)
	if _, ok := d.Resources[id]; !ok {
		d.Order = append(d.Order, id)
	}
	d.Resources[id] = BuildRole(function, t)
}

func (d *Document) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"Resources":{`)
	for i, id := range d.Order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		role, err := json.Marshal(d.Resources[id])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(role)
	}
	b.WriteString(`}}`)
	return b.Bytes(), nil
}

func (d *Document) MarshalYAML() (any, error) {
	resources := &yaml.Node{Kind: yaml.MappingNode}
	for _, id := range d.Order {
		var role yaml.Node
		if err := role.Encode(d.Resources[id]); err != nil {
			return nil, err
		}
		resources.Content = append(resources.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: id}, &role)
	}
	return &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "Resources"}, resources,
	}}, nil
}

// Render serialises the document as "json" or "yaml".
func (d *Document) Render(format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml", "":
		var b bytes.Buffer
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// LogicalID names the role resource: alphanumerics of the function name,
// first letter upper-cased, wrapped as Rolesmith<Name>Role.
func LogicalID(function string) string {
	var b strings.Builder
	for _, r := range function {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return "Rolesmith" + name + "Role"
}

func BuildRole(function string, t tree.Tree) Role {
	role := Role{
		Type: "AWS::IAM::Role",
		Properties: RoleProperties{
			Path:     "/",
			RoleName: RoleNamePrefix + function,
			AssumeRolePolicyDocument: PolicyDocument{
				Version: PolicyVersion,
				Statement: []Statement{{
					Effect:    "Allow",
					Principal: map[string]string{"Service": "lambda.amazonaws.com"},
					Action:    []string{"sts:AssumeRole"},
				}},
			},
		},
	}
	if statements := Statements(t); len(statements) > 0 {
		role.Properties.Policies = []InlinePolicy{{
			PolicyName:     InlinePolicyName,
			PolicyDocument: PolicyDocument{Version: PolicyVersion, Statement: statements},
		}}
	}
	return role
}

// Statements renders one Allow statement per ARN, sorted by ARN.
func Statements(t tree.Tree) []Statement {
	byARN := map[string]tree.Actions{}
	for _, leaf := range t.Leaves() {
		arn := leaf.ARN()
		set, ok := byARN[arn]
		if !ok {
			set = tree.Actions{}
			byARN[arn] = set
		}
		set.Add(leaf.Actions...)
	}

	arns := make([]string, 0, len(byARN))
	for arn := range byARN {
		arns = append(arns, arn)
	}
	sort.Strings(arns)

	out := make([]Statement, 0, len(arns))
	for _, arn := range arns {
		if len(byARN[arn]) == 0 {
			continue
		}
		out = append(out, Statement{Effect: "Allow", Action: byARN[arn].Sorted(), Resource: arn})
	}
	return out
}

// GeneratePolicy returns the read-only policy rolesmith itself needs to
// run its listers. An empty modules list selects every lister.
func GeneratePolicy(modules []string) ([]byte, error) {
	actions := tree.NewActions(CorePermissions()...)
	if len(modules) == 0 {
		for _, perms := range Catalog {
			actions.Add(perms...)
		}
	}
	for _, mod := range modules {
		perms, ok := Catalog[mod]
		if !ok {
			return nil, fmt.Errorf("unknown lister %q", mod)
		}
		actions.Add(perms...)
	}

	policy := PolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{{
			Sid:      "RolesmithReadOnly",
			Effect:   "Allow",
			Action:   actions.Sorted(),
			Resource: "*",
		}},
	}
	return json.MarshalIndent(policy, "", "  ")
}
