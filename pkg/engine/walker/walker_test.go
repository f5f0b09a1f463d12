package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestNaiveWalk(t *testing.T) {
	root := t.TempDir()
	a := write(t, root, "a", "a content")
	c := write(t, root, "b/c", "c content")
	d := write(t, root, "b/d", "d content")

	big := filepath.Join(root, "large-file")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxFileSize))
	require.NoError(t, f.Close())

	files, err := Collect(context.Background(), &Naive{Root: root})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, c, d}, paths(files))

	for _, f := range files {
		if f.Path == c {
			assert.Equal(t, "c content", f.Content)
		}
	}
}

func TestNaiveWalkStopsEarly(t *testing.T) {
	root := t.TempDir()
	for i := range 5 {
		write(t, root, fmt.Sprintf("f%d", i), "x")
	}
	n := 0
	for _, err := range (&Naive{Root: root}).Walk(context.Background()) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestNaiveWalkMissingRoot(t *testing.T) {
	_, err := Collect(context.Background(), &Naive{Root: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

type fakeResolver struct{}

func (fakeResolver) EntryPoint(root, handler string) string {
	return filepath.Join(root, strings.TrimSuffix(handler, ".handler")+".js")
}

func (fakeResolver) DependencyCommand(entry, root string) []string {
	return []string{"deps", entry, root}
}

func (fakeResolver) KeepDependency(path string) bool {
	return !strings.Contains(path, "/node_modules/aws-sdk/")
}

func (fakeResolver) SkipDir(path string) bool { return filepath.Base(path) == "aws-sdk" }

func (fakeResolver) IsSource(path string) bool { return filepath.Ext(path) == ".js" }

func TestDependenciesWalk(t *testing.T) {
	root := t.TempDir()
	index := write(t, root, "src/index.js", "require('./lib'); load('config.json')")
	lib := write(t, root, "src/lib.js", "module.exports = read('templates/mail.txt')")
	sdk := write(t, root, "node_modules/aws-sdk/index.js", "sdk")
	config := write(t, root, "config.json", `{"table": "orders", "mail": "none"}`)
	mail := write(t, root, "templates/mail.txt", "hello")
	write(t, root, "unused.txt", "never referenced")
	write(t, root, "node_modules/aws-sdk/config.json", "sdk config")
	write(t, root, "src/other.js", "not a dependency")

	calls := 0
	d, err := NewDependencies(root, "src/index.handler", fakeResolver{})
	require.NoError(t, err)
	d.Run = func(_ context.Context, argv []string) ([]byte, error) {
		calls++
		assert.Equal(t, []string{"deps", index, root}, argv)
		return []byte(strings.Join([]string{index, lib, sdk, ""}, "\n")), nil
	}

	files, err := Collect(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{index, lib, config, mail}, paths(files))

	again, err := Collect(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, paths(files), paths(again))
	assert.Equal(t, 1, calls)
}

func TestDependenciesWithoutHandlerWalksEverything(t *testing.T) {
	root := t.TempDir()
	a := write(t, root, "a.js", "x")
	b := write(t, root, "b.txt", "y")

	d, err := NewDependencies(root, "", fakeResolver{})
	require.NoError(t, err)
	d.Run = func(context.Context, []string) ([]byte, error) {
		t.Fatal("dependency tool must not run without a handler")
		return nil, nil
	}

	files, err := Collect(context.Background(), d)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, paths(files))
}

func TestDependenciesMissingEntry(t *testing.T) {
	root := t.TempDir()
	write(t, root, "other.js", "x")

	d, err := NewDependencies(root, "index.handler", fakeResolver{})
	require.NoError(t, err)
	d.Run = func(context.Context, []string) ([]byte, error) {
		t.Fatal("dependency tool must not run without an entry file")
		return nil, nil
	}

	files, err := Collect(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDependenciesToolFailure(t *testing.T) {
	root := t.TempDir()
	write(t, root, "index.js", "x")

	d, err := NewDependencies(root, "index.handler", fakeResolver{})
	require.NoError(t, err)
	d.Run = func(context.Context, []string) ([]byte, error) {
		return nil, fmt.Errorf("%w: node must be installed", ErrToolNotFound)
	}

	_, err = Collect(context.Background(), d)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner(context.Background(), []string{"rolesmith-no-such-tool-" + t.Name()})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestDataFilesSkipsSourcesAndExcludedDirs(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.js", "x")
	keep := write(t, root, "data/b.csv", "y")
	write(t, root, "node_modules/aws-sdk/c.json", "z")

	d, err := NewDependencies(root, "a.handler", fakeResolver{})
	require.NoError(t, err)
	got, err := d.dataFiles()
	require.NoError(t, err)
	assert.True(t, slices.Equal([]string{keep}, got), got)
}
