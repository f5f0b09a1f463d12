// Package manifest loads the deployment template that declares a
// project's functions and the resources they may reach.
package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrNoFunctions      = errors.New("no lambda functions found")
	ErrInvalidFunction  = errors.New("invalid function definition")
	ErrUnsupportedInput = errors.New("unsupported resource template")
)

const (
	FunctionType           = "AWS::Lambda::Function"
	EventSourceMappingType = "AWS::Lambda::EventSourceMapping"
	kmsAliasType           = "AWS::KMS::Alias"

	// UnnamedFunction is the synthetic function scanned when no template is given.
	UnnamedFunction = "Unnamed"
)

// Pseudo parameters left in resolved values until the default region and
// account are known.
const (
	RegionPlaceholder  = "${AWS::Region}"
	AccountPlaceholder = "${AWS::AccountId}"
)

// Resource is one template resource with its intrinsic functions resolved
// as far as the template alone allows.
type Resource struct {
	LogicalID  string
	Type       string
	Properties map[string]any
}

// Manifest is a loaded template.
type Manifest struct {
	Path      string
	Resources []Resource
	Logger    *slog.Logger
}

// Function is one deployable function as declared in the template.
type Function struct {
	LogicalID    string
	Name         string
	Runtime      string
	Handler      string
	Environment  map[string]string
	VPC          bool
	EventSources []string
}

// Load reads a CloudFormation (.json, .yml, .yaml) or Terraform (.tf, or a
// directory of them) template.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not find resource template in: %s", path)
	}
	if info.IsDir() {
		return loadTerraform(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yml", ".yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return loadCloudFormation(path, data)
	case ".tf":
		return loadTerraform(path)
	default:
		return nil, fmt.Errorf("%w: %s (want .json, .yml, .yaml or .tf)", ErrUnsupportedInput, path)
	}
}

// DefaultFormat is the output format matching the template: json for a
// JSON template, yaml otherwise.
func (m *Manifest) DefaultFormat() string {
	if m != nil && strings.EqualFold(filepath.Ext(m.Path), ".json") {
		return "json"
	}
	return "yaml"
}

func (m *Manifest) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// ResourceNames returns the names of every resource of a type: the
// <Type>Name property, then Name, then the logical id.
func (m *Manifest) ResourceNames(resourceType string) []string {
	if m == nil {
		return nil
	}
	segments := strings.Split(resourceType, "::")
	property := segments[len(segments)-1] + "Name"

	var names []string
	for _, r := range m.Resources {
		if r.Type != resourceType {
			continue
		}
		name, ok := stringValue(r.Properties[property])
		if !ok || name == "" {
			name, ok = stringValue(r.Properties["Name"])
		}
		if !ok || name == "" {
			name = r.LogicalID
		}
		if resourceType == kmsAliasType {
			name = strings.TrimPrefix(name, "alias/")
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Functions returns the declared functions in template order. A non-empty
// filter keeps only the named functions.
func (m *Manifest) Functions(filter []string) ([]Function, error) {
	var out []Function
	for _, r := range m.Resources {
		if r.Type != FunctionType {
			continue
		}
		name, _ := stringValue(r.Properties["FunctionName"])
		if name == "" {
			return nil, fmt.Errorf("%w: lambda name not specified at `%s`", ErrInvalidFunction, r.LogicalID)
		}
		if len(filter) > 0 && !slices.Contains(filter, name) {
			continue
		}
		runtime, _ := stringValue(r.Properties["Runtime"])
		if runtime == "" {
			return nil, fmt.Errorf("%w: lambda runtime not specified for `%s`", ErrInvalidFunction, name)
		}
		handler, _ := stringValue(r.Properties["Handler"])

		_, vpc := r.Properties["VpcConfig"]
		out = append(out, Function{
			LogicalID:    r.LogicalID,
			Name:         name,
			Runtime:      runtime,
			Handler:      handler,
			Environment:  environment(r.Properties),
			VPC:          vpc,
			EventSources: m.eventSources(name, r.LogicalID),
		})
	}
	if len(out) == 0 {
		if len(filter) > 0 {
			return nil, fmt.Errorf("%w matching %s in %s", ErrNoFunctions, strings.Join(filter, ", "), m.Path)
		}
		return nil, fmt.Errorf("%w in %s", ErrNoFunctions, m.Path)
	}
	return out, nil
}

// Synthetic is the single function scanned when only a runtime is given.
func Synthetic(runtime string) Function {
	return Function{
		LogicalID: UnnamedFunction + "Function",
		Name:      UnnamedFunction,
		Runtime:   runtime,
	}
}

func environment(props map[string]any) map[string]string {
	env, _ := props["Environment"].(map[string]any)
	vars, _ := env["Variables"].(map[string]any)
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if s, ok := stringValue(v); ok {
			out[k] = s
		}
	}
	return out
}

// eventSources returns the source ARNs of the mappings whose FunctionName
// refers to the function by name or logical id.
func (m *Manifest) eventSources(name, logicalID string) []string {
	pattern := regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(name) + `|` + regexp.QuoteMeta(logicalID) + `)\b`)

	var arns []string
	for _, r := range m.Resources {
		if r.Type != EventSourceMappingType {
			continue
		}
		target, ok := stringValue(r.Properties["FunctionName"])
		if !ok || !pattern.MatchString(target) {
			continue
		}
		arn, ok := stringValue(r.Properties["EventSourceArn"])
		if !ok || arn == "" {
			m.logger().Warn(fmt.Sprintf("event source mapping for `%s` missing `EventSourceArn`", name),
				"mapping", r.LogicalID)
			continue
		}
		arns = append(arns, arn)
	}
	return arns
}

// Resolve substitutes the default region and account for the pseudo
// parameters left in the function's values.
func (f Function) Resolve(region, account string) Function {
	r := strings.NewReplacer(RegionPlaceholder, region, AccountPlaceholder, account)
	out := f
	out.Environment = make(map[string]string, len(f.Environment))
	for k, v := range f.Environment {
		out.Environment[k] = r.Replace(v)
	}
	out.EventSources = make([]string, len(f.EventSources))
	for i, arn := range f.EventSources {
		out.EventSources[i] = r.Replace(arn)
	}
	return out
}
