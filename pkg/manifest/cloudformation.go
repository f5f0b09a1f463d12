package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxDepth bounds intrinsic resolution through Ref chains.
const maxDepth = 16

// loadCloudFormation parses a JSON or YAML template. JSON is a subset of
// YAML so one decoder covers both; short-form intrinsics (!Ref, !GetAtt,
// !Sub ...) are rewritten to their long form before resolution.
func loadCloudFormation(path string, data []byte) (*Manifest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid CloudFormation template %s: %w", path, err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, fmt.Errorf("invalid CloudFormation template %s: empty document", path)
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid CloudFormation template %s: top level is not a mapping", path)
	}

	r := &resolver{
		resources:  map[string]Resource{},
		parameters: map[string]any{},
	}
	var order []string
	for i := 0; i+1 < len(doc.Content); i += 2 {
		switch doc.Content[i].Value {
		case "Parameters":
			params, _ := decodeNode(doc.Content[i+1]).(map[string]any)
			for name, p := range params {
				if spec, ok := p.(map[string]any); ok {
					if def, ok := spec["Default"]; ok {
						r.parameters[name] = def
					}
				}
			}
		case "Resources":
			body := doc.Content[i+1]
			if body.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("invalid CloudFormation template %s: Resources is not a mapping", path)
			}
			for j := 0; j+1 < len(body.Content); j += 2 {
				id := body.Content[j].Value
				res, _ := decodeNode(body.Content[j+1]).(map[string]any)
				typ, _ := res["Type"].(string)
				props, _ := res["Properties"].(map[string]any)
				if props == nil {
					props = map[string]any{}
				}
				r.resources[id] = Resource{LogicalID: id, Type: typ, Properties: props}
				order = append(order, id)
			}
		}
	}

	m := &Manifest{Path: path}
	for _, id := range order {
		raw := r.resources[id]
		props, _ := r.resolve(raw.Properties, 0).(map[string]any)
		m.Resources = append(m.Resources, Resource{LogicalID: id, Type: raw.Type, Properties: props})
	}
	return m, nil
}

// decodeNode converts a YAML node into plain Go values, mapping custom
// tags to CloudFormation's long-form intrinsic functions.
func decodeNode(n *yaml.Node) any {
	var v any
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return decodeNode(n.Content[0])
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	case yaml.ScalarNode:
		if intrinsic(n.Tag) {
			v = n.Value
			if n.Tag == "!GetAtt" {
				parts := strings.SplitN(n.Value, ".", 2)
				list := make([]any, len(parts))
				for i, p := range parts {
					list[i] = p
				}
				v = list
			}
		} else if err := n.Decode(&v); err != nil {
			v = n.Value
		}
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			list = append(list, decodeNode(c))
		}
		v = list
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = decodeNode(n.Content[i+1])
		}
		v = m
	}

	if !intrinsic(n.Tag) {
		return v
	}
	name := n.Tag[1:]
	if name == "Ref" {
		return map[string]any{"Ref": v}
	}
	return map[string]any{"Fn::" + name: v}
}

func intrinsic(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

type resolver struct {
	resources  map[string]Resource
	parameters map[string]any
}

var subVariable = regexp.MustCompile(`\$\{([^}!][^}]*)\}`)

// resolve evaluates the intrinsic functions it understands. Anything it
// cannot evaluate resolves to nil.
func (r *resolver) resolve(v any, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.resolve(e, depth)
		}
		return out
	case map[string]any:
		if len(t) == 1 {
			for k, arg := range t {
				if k == "Ref" || strings.HasPrefix(k, "Fn::") {
					return r.intrinsic(k, arg, depth+1)
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = r.resolve(e, depth)
		}
		return out
	default:
		return v
	}
}

func (r *resolver) intrinsic(fn string, arg any, depth int) any {
	switch fn {
	case "Ref":
		name, _ := arg.(string)
		return r.ref(name, depth)
	case "Fn::GetAtt":
		parts, _ := arg.([]any)
		if len(parts) != 2 {
			return nil
		}
		id, _ := parts[0].(string)
		attr, _ := r.resolve(parts[1], depth).(string)
		return r.attribute(id, attr, depth)
	case "Fn::Sub":
		return r.sub(arg, depth)
	case "Fn::Join":
		parts, _ := arg.([]any)
		if len(parts) != 2 {
			return nil
		}
		delim, _ := parts[0].(string)
		items, _ := r.resolve(parts[1], depth).([]any)
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := stringValue(it)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return strings.Join(out, delim)
	default:
		return nil
	}
}

func (r *resolver) ref(name string, depth int) any {
	switch name {
	case "AWS::Region":
		return RegionPlaceholder
	case "AWS::AccountId":
		return AccountPlaceholder
	case "AWS::Partition":
		return "aws"
	case "AWS::URLSuffix":
		return "amazonaws.com"
	}
	if def, ok := r.parameters[name]; ok {
		return r.resolve(def, depth)
	}
	res, ok := r.resources[name]
	if !ok {
		return nil
	}
	if res.Type == "AWS::SNS::Topic" {
		return r.arn(res, "Arn", depth)
	}
	return r.name(res, depth)
}

func (r *resolver) attribute(id, attr string, depth int) any {
	res, ok := r.resources[id]
	if !ok {
		return nil
	}
	if attr == "Name" {
		return r.name(res, depth)
	}
	return r.arn(res, attr, depth)
}

// name is the physical name a resource gets: its naming property when
// set, otherwise the logical id.
func (r *resolver) name(res Resource, depth int) string {
	segments := strings.Split(res.Type, "::")
	for _, key := range []string{segments[len(segments)-1] + "Name", "Name"} {
		if raw, ok := res.Properties[key]; ok {
			if s, ok := stringValue(r.resolve(raw, depth)); ok && s != "" {
				return s
			}
		}
	}
	return res.LogicalID
}

func (r *resolver) arn(res Resource, attr string, depth int) any {
	return arnFor(res.Type, attr, r.name(res, depth))
}

// arnFor builds the ARN attribute of the resource types event sources and
// environment values usually point at.
func arnFor(resourceType, attr, name string) any {
	prefix := func(service string) string {
		return "arn:aws:" + service + ":" + RegionPlaceholder + ":" + AccountPlaceholder + ":"
	}
	switch {
	case resourceType == "AWS::Kinesis::Stream" && attr == "Arn":
		return prefix("kinesis") + "stream/" + name
	case resourceType == "AWS::DynamoDB::Table" && attr == "Arn":
		return prefix("dynamodb") + "table/" + name
	case resourceType == "AWS::DynamoDB::Table" && attr == "StreamArn":
		return prefix("dynamodb") + "table/" + name + "/stream/*"
	case resourceType == "AWS::SQS::Queue" && attr == "Arn":
		return prefix("sqs") + name
	case resourceType == "AWS::SNS::Topic" && (attr == "Arn" || attr == "TopicArn"):
		return prefix("sns") + name
	case resourceType == "AWS::Lambda::Function" && attr == "Arn":
		return prefix("lambda") + "function:" + name
	case resourceType == "AWS::StepFunctions::StateMachine" && attr == "Arn":
		return prefix("states") + "stateMachine:" + name
	case resourceType == "AWS::S3::Bucket" && attr == "Arn":
		return "arn:aws:s3:::" + name
	}
	return nil
}

func (r *resolver) sub(arg any, depth int) any {
	var (
		text string
		vars map[string]any
	)
	switch t := arg.(type) {
	case string:
		text = t
	case []any:
		if len(t) == 0 {
			return nil
		}
		text, _ = t[0].(string)
		if len(t) > 1 {
			vars, _ = t[1].(map[string]any)
		}
	default:
		return nil
	}

	failed := false
	out := subVariable.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-1]
		var v any
		if raw, ok := vars[name]; ok {
			v = r.resolve(raw, depth)
		} else if id, attr, ok := strings.Cut(name, "."); ok {
			v = r.attribute(id, attr, depth)
		} else {
			v = r.ref(name, depth)
		}
		s, ok := stringValue(v)
		if !ok {
			failed = true
			return match
		}
		return s
	})
	if failed {
		return nil
	}
	return out
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
