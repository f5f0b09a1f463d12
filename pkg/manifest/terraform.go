package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

type terraformType struct {
	cfn  string
	name string // attribute holding the physical name
}

// terraformTypes maps the Terraform resources the engine reads to their
// CloudFormation equivalents.
var terraformTypes = map[string]terraformType{
	"aws_lambda_function":             {FunctionType, "function_name"},
	"aws_lambda_event_source_mapping": {EventSourceMappingType, ""},
	"aws_dynamodb_table":              {"AWS::DynamoDB::Table", "name"},
	"aws_kinesis_stream":              {"AWS::Kinesis::Stream", "name"},
	"aws_kms_key":                     {"AWS::KMS::Key", ""},
	"aws_kms_alias":                   {kmsAliasType, "name"},
	"aws_s3_bucket":                   {"AWS::S3::Bucket", "bucket"},
	"aws_sns_topic":                   {"AWS::SNS::Topic", "name"},
	"aws_sqs_queue":                   {"AWS::SQS::Queue", "name"},
	"aws_sfn_state_machine":           {"AWS::StepFunctions::StateMachine", "name"},
	"aws_sfn_activity":                {"AWS::StepFunctions::Activity", "name"},
}

type terraformBlock struct {
	kind   string
	labels []string
	body   *hclsyntax.Body
}

// loadTerraform reads a .tf file, or every .tf file of a directory.
func loadTerraform(path string) (*Manifest, error) {
	files := []string{path}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.tf"))
		if err != nil {
			return nil, err
		}
		slices.Sort(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: no .tf files in %s", ErrUnsupportedInput, path)
		}
	}

	parser := hclparse.NewParser()
	var blocks []terraformBlock
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid Terraform file %s: %s", file, diags.Error())
		}
		body, ok := f.Body.(*hclsyntax.Body)
		if !ok {
			continue
		}
		for _, b := range body.Blocks {
			blocks = append(blocks, terraformBlock{kind: b.Type, labels: b.Labels, body: b.Body})
		}
	}

	ctx := evalContext(blocks)
	m := &Manifest{Path: path}
	for _, b := range blocks {
		if b.kind != "resource" || len(b.labels) != 2 {
			continue
		}
		tt, ok := terraformTypes[b.labels[0]]
		if !ok {
			continue
		}
		m.Resources = append(m.Resources, Resource{
			LogicalID:  b.labels[1],
			Type:       tt.cfn,
			Properties: properties(b, tt, ctx),
		})
	}
	return m, nil
}

// evalContext exposes variable defaults, the region and caller identity
// data sources and the name and ARN attributes of known resources.
func evalContext(blocks []terraformBlock) *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, b := range blocks {
		if b.kind != "variable" || len(b.labels) != 1 {
			continue
		}
		if attr, ok := b.body.Attributes["default"]; ok {
			if v, diags := attr.Expr.Value(nil); !diags.HasErrors() && v.IsWhollyKnown() {
				vars[b.labels[0]] = v
			}
		}
	}
	ctx := &hcl.EvalContext{Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)}}

	data := map[string]map[string]cty.Value{}
	resources := map[string]map[string]cty.Value{}
	for _, b := range blocks {
		if len(b.labels) != 2 {
			continue
		}
		typ, label := b.labels[0], b.labels[1]
		switch {
		case b.kind == "data" && typ == "aws_region":
			put(data, typ, label, cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(RegionPlaceholder),
				"id":   cty.StringVal(RegionPlaceholder),
			}))
		case b.kind == "data" && typ == "aws_caller_identity":
			put(data, typ, label, cty.ObjectVal(map[string]cty.Value{
				"account_id": cty.StringVal(AccountPlaceholder),
			}))
		case b.kind == "resource":
			tt, ok := terraformTypes[typ]
			if !ok {
				continue
			}
			name := label
			if attr, ok := b.body.Attributes[tt.name]; ok {
				if v, diags := attr.Expr.Value(ctx); !diags.HasErrors() && v.IsWhollyKnown() && v.Type() == cty.String {
					name = v.AsString()
				}
			}
			attrs := map[string]cty.Value{
				"id":   cty.StringVal(name),
				"name": cty.StringVal(name),
			}
			if tt.name != "" {
				attrs[tt.name] = cty.StringVal(name)
			}
			if arn, ok := arnFor(tt.cfn, "Arn", name).(string); ok {
				attrs["arn"] = cty.StringVal(arn)
			}
			if arn, ok := arnFor(tt.cfn, "StreamArn", name).(string); ok {
				attrs["stream_arn"] = cty.StringVal(arn)
			}
			put(resources, typ, label, cty.ObjectVal(attrs))
		}
	}

	if len(data) > 0 {
		objects := map[string]cty.Value{}
		for typ, labels := range data {
			objects[typ] = cty.ObjectVal(labels)
		}
		ctx.Variables["data"] = cty.ObjectVal(objects)
	}
	for typ, labels := range resources {
		ctx.Variables[typ] = cty.ObjectVal(labels)
	}
	return ctx
}

func put(into map[string]map[string]cty.Value, typ, label string, v cty.Value) {
	if into[typ] == nil {
		into[typ] = map[string]cty.Value{}
	}
	into[typ][label] = v
}

// properties renders a Terraform resource in CloudFormation's property
// shape so both template kinds share one function reader.
func properties(b terraformBlock, tt terraformType, ctx *hcl.EvalContext) map[string]any {
	props := map[string]any{}
	value := func(body *hclsyntax.Body, name string) (any, bool) {
		attr, ok := body.Attributes[name]
		if !ok {
			return nil, false
		}
		v, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() || !v.IsWhollyKnown() {
			return nil, false
		}
		return fromCty(v), true
	}

	switch tt.cfn {
	case FunctionType:
		for attr, prop := range map[string]string{
			"function_name": "FunctionName",
			"runtime":       "Runtime",
			"handler":       "Handler",
		} {
			if v, ok := value(b.body, attr); ok {
				props[prop] = v
			}
		}
		for _, nested := range b.body.Blocks {
			switch nested.Type {
			case "environment":
				if v, ok := value(nested.Body, "variables"); ok {
					props["Environment"] = map[string]any{"Variables": v}
				}
			case "vpc_config":
				props["VpcConfig"] = map[string]any{}
			}
		}
	case EventSourceMappingType:
		if v, ok := value(b.body, "function_name"); ok {
			props["FunctionName"] = v
		}
		if v, ok := value(b.body, "event_source_arn"); ok {
			props["EventSourceArn"] = v
		}
	default:
		if tt.name == "" {
			break
		}
		if v, ok := value(b.body, tt.name); ok {
			props["Name"] = v
		}
	}
	return props
}

func fromCty(v cty.Value) any {
	if v.IsNull() {
		return nil
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString()
	case t == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case t == cty.Bool:
		return v.True()
	case t.IsObjectType() || t.IsMapType():
		out := map[string]any{}
		for it := v.ElementIterator(); it.Next(); {
			k, e := it.Element()
			out[k.AsString()] = fromCty(e)
		}
		return out
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			out = append(out, fromCty(e))
		}
		return out
	}
	return nil
}
