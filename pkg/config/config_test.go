package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/rolesmith/pkg/engine/policy"
)

const projectYAML = `aws:
  default_region: eu-west-1
  accounts:
    "222":
      profile: staging
functions:
  orders:
    root: services/orders
rules:
  - id: no_deletes
    condition: action.startsWith(service + ':Delete')
    action: deny
tools:
  python: /usr/bin/python3
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	store, err := Load(writeProject(t, projectYAML))
	require.NoError(t, err)

	p, err := store.Project()
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", p.AWS.DefaultRegion)
	assert.Equal(t, "staging", store.Profile("222"))
	assert.Empty(t, store.Profile("333"))
	assert.Equal(t, "services/orders", store.FunctionRoot("orders"))
	assert.Equal(t, []policy.Rule{{
		ID:        "no_deletes",
		Condition: "action.startsWith(service + ':Delete')",
		Action:    policy.ActionDeny,
	}}, p.Rules)
	assert.Equal(t, "/usr/bin/python3", p.Tools.Runtimes().Python)
}

func TestLoadMissingFile(t *testing.T) {
	store, err := Load(t.TempDir())
	require.NoError(t, err)

	p, err := store.Project()
	require.NoError(t, err)
	assert.Empty(t, p.AWS.DefaultRegion)
	assert.Empty(t, p.Rules)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeProject(t, "aws: [unclosed\n"))
	assert.ErrorContains(t, err, "invalid")

	store, err := Load(writeProject(t, "rules:\n  - id: r\n    condition: 'true'\n    action: block\n"))
	require.NoError(t, err)
	_, err = store.Project()
	assert.ErrorContains(t, err, "invalid rule #1")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ROLESMITH_AWS_DEFAULT_REGION", "ap-south-1")
	store, err := Load(writeProject(t, projectYAML))
	require.NoError(t, err)

	p, err := store.Project()
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", p.AWS.DefaultRegion)
}

func TestAnswersAreSaved(t *testing.T) {
	t.Setenv("ROLESMITH_AWS_DEFAULT_REGION", "ap-south-1")
	dir := t.TempDir()

	store, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetProfile("444", "prod"))
	require.NoError(t, store.SetFunctionRoot("billing", "src/billing"))
	assert.Equal(t, "prod", store.Profile("444"))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ap-south-1")

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "prod", reloaded.Profile("444"))
	assert.Equal(t, "src/billing", reloaded.FunctionRoot("billing"))
}
