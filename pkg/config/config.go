// Package config is the project configuration kept in rolesmith.yml next
// to the code. Flags and ROLESMITH_* environment variables override it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/DrSkyle/rolesmith/pkg/engine/policy"
	"github.com/DrSkyle/rolesmith/pkg/engine/runtimes"
)

const (
	FileName  = "rolesmith.yml"
	EnvPrefix = "ROLESMITH"
)

// Keys bound to flags by the CLI.
const (
	KeyDefaultRegion = "aws.default_region"
	KeyPythonTool    = "tools.python"
	KeyNodeTool      = "tools.node"
	KeyDependencyCLI = "tools.dependency_tree_cli"
)

type Account struct {
	Profile string `mapstructure:"profile"`
}

type AWS struct {
	DefaultRegion string             `mapstructure:"default_region"`
	Accounts      map[string]Account `mapstructure:"accounts"`
}

type Function struct {
	Root string `mapstructure:"root"`
}

type Tools struct {
	Python            string `mapstructure:"python"`
	Node              string `mapstructure:"node"`
	DependencyTreeCLI string `mapstructure:"dependency_tree_cli"`
}

// Project is the decoded rolesmith.yml.
type Project struct {
	AWS       AWS                 `mapstructure:"aws"`
	Functions map[string]Function `mapstructure:"functions"`
	Rules     []policy.Rule       `mapstructure:"rules"`
	Tools     Tools               `mapstructure:"tools"`
}

// Runtimes converts the tool overrides.
func (t Tools) Runtimes() runtimes.Tools {
	return runtimes.Tools{Python: t.Python, Node: t.Node, DependencyTreeCLI: t.DependencyTreeCLI}
}

// Store reads the merged configuration and writes answers back to the file.
// Values from flags and the environment are never written.
type Store struct {
	path string
	v    *viper.Viper // file + env + flags
	file *viper.Viper // file only

	mu sync.Mutex
}

// Load reads <dir>/rolesmith.yml. A missing file is an empty config.
func Load(dir string) (*Store, error) {
	path := filepath.Join(dir, FileName)
	s := &Store{path: path, v: viper.New(), file: viper.New()}

	for _, v := range []*viper.Viper{s.v, s.file} {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("invalid %s: %w", path, err)
		}
	}
	s.v.SetEnvPrefix(EnvPrefix)
	s.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	s.v.AutomaticEnv()
	for _, key := range []string{KeyDefaultRegion, KeyPythonTool, KeyNodeTool, KeyDependencyCLI} {
		if err := s.v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path is the config file location.
func (s *Store) Path() string { return s.path }

// Viper exposes the merged view for flag binding.
func (s *Store) Viper() *viper.Viper { return s.v }

// Project decodes the merged configuration.
func (s *Store) Project() (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Project
	if err := s.v.Unmarshal(&p); err != nil {
		return Project{}, fmt.Errorf("invalid %s: %w", s.path, err)
	}
	p.AWS.DefaultRegion = s.v.GetString(KeyDefaultRegion)
	p.Tools = Tools{
		Python:            s.v.GetString(KeyPythonTool),
		Node:              s.v.GetString(KeyNodeTool),
		DependencyTreeCLI: s.v.GetString(KeyDependencyCLI),
	}
	for i, r := range p.Rules {
		if err := r.Validate(); err != nil {
			return Project{}, fmt.Errorf("invalid rule #%d in %s: %w", i+1, s.path, err)
		}
	}
	return p, nil
}

// Profile is the credentials profile configured for an account.
func (s *Store) Profile(account string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString("aws.accounts." + account + ".profile")
}

// SetProfile records the profile of an account and saves the file.
func (s *Store) SetProfile(account, profile string) error {
	return s.set("aws.accounts."+account+".profile", profile)
}

// FunctionRoot is the configured source root of a function.
func (s *Store) FunctionRoot(function string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString("functions." + function + ".root")
}

// SetFunctionRoot records a function's source root and saves the file.
func (s *Store) SetFunctionRoot(function, root string) error {
	return s.set("functions."+function+".root", root)
}

func (s *Store) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	s.file.Set(key, value)
	if err := s.file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("could not save %s: %w", s.path, err)
	}
	return nil
}
