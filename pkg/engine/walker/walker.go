// Package walker enumerates the source files that belong to one function.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize bounds what gets read; files of this size or larger are skipped.
const MaxFileSize = 5 * 1024 * 1024

var ErrToolNotFound = errors.New("dependency tool not found")

// File is one source file with its text.
type File struct {
	Path    string
	Content string
}

// Walker yields a function's files. Every call to Walk starts over.
type Walker interface {
	Walk(ctx context.Context) iter.Seq2[File, error]
}

// Naive yields every regular file under Root smaller than MaxFileSize.
type Naive struct {
	Root string
}

func (n *Naive) Walk(ctx context.Context) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		stop := errors.New("stop")
		err := filepath.WalkDir(n.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() >= MaxFileSize {
				return nil
			}
			f, err := readFile(path)
			if err != nil {
				return err
			}
			if !yield(f, nil) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield(File{}, fmt.Errorf("walk %s: %w", n.Root, err))
		}
	}
}

func readFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Content: strings.ToValidUTF8(string(b), "\uFFFD")}, nil
}

// Collect drains a walk into memory.
func Collect(ctx context.Context, w Walker) ([]File, error) {
	var files []File
	for f, err := range w.Walk(ctx) {
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
