package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Resolver is the language side of a dependency-aware walk.
type Resolver interface {
	EntryPoint(root, handler string) string
	DependencyCommand(entry, root string) []string
	KeepDependency(path string) bool
	SkipDir(path string) bool
	IsSource(path string) bool
}

// Runner executes a dependency tool and returns its combined output.
type Runner func(ctx context.Context, argv []string) ([]byte, error)

// ExecRunner runs argv as a subprocess.
func ExecRunner(ctx context.Context, argv []string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s must be installed", ErrToolNotFound, argv[0])
	case errors.As(err, &exitErr):
		return nil, fmt.Errorf("failed to get dependency tree:\n%s", out)
	}
	return nil, err
}

// Dependencies walks the dependency closure of a function's entry point,
// plus any non-source file under Root whose name appears in an included
// file. The file list is resolved once and reused by later walks.
type Dependencies struct {
	Root     string
	Handler  string
	Resolver Resolver
	Run      Runner

	mu    sync.Mutex
	files []string
	done  bool
}

func NewDependencies(root, handler string, r Resolver) (*Dependencies, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Dependencies{Root: abs, Handler: handler, Resolver: r, Run: ExecRunner}, nil
}

func (d *Dependencies) Walk(ctx context.Context) iter.Seq2[File, error] {
	if d.Handler == "" {
		return (&Naive{Root: d.Root}).Walk(ctx)
	}
	return func(yield func(File, error) bool) {
		files, err := d.resolve(ctx)
		if err != nil {
			yield(File{}, err)
			return
		}
		for _, path := range files {
			f, err := readFile(path)
			if err != nil {
				yield(File{}, err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (d *Dependencies) resolve(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return d.files, nil
	}

	entry := d.Resolver.EntryPoint(d.Root, d.Handler)
	if _, err := os.Stat(entry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.done = true
			return nil, nil
		}
		return nil, err
	}

	out, err := d.Run(ctx, d.Resolver.DependencyCommand(entry, d.Root))
	if err != nil {
		return nil, err
	}
	var queue []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && d.Resolver.KeepDependency(line) {
			queue = append(queue, line)
		}
	}

	candidates, err := d.dataFiles()
	if err != nil {
		return nil, err
	}

	files := append([]string(nil), queue...)
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		f, err := readFile(path)
		if err != nil {
			return nil, err
		}
		remaining := candidates[:0]
		for _, c := range candidates {
			if strings.Contains(f.Content, filepath.Base(c)) {
				queue = append(queue, c)
				files = append(files, c)
				continue
			}
			remaining = append(remaining, c)
		}
		candidates = remaining
	}

	d.files, d.done = files, true
	return files, nil
}

// dataFiles lists the non-source files under Root that may be pulled in by
// name.
func (d *Dependencies) dataFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.Root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if path != d.Root && d.Resolver.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() || d.Resolver.IsSource(path) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		if info.Size() < MaxFileSize {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
