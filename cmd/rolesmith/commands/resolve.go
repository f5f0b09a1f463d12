package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/DrSkyle/rolesmith/pkg/config"
	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
)

// errNonInteractive is returned when an answer is needed under --yes.
var errNonInteractive = errors.New("answer required but running non-interactively")

// asker is the prompt surface; tui.Prompter in production.
type asker interface {
	Ask(question, placeholder string, validate func(string) error) (string, error)
}

// resolver answers the questions the engine cannot: which profile reaches
// a foreign account and where a function's source lives. Answers come from
// rolesmith.yml, then the prompt; prompted answers are saved.
type resolver struct {
	store       *config.Store
	ask         asker
	interactive bool
	project     string
	logger      *slog.Logger

	// profiles lists the local credential profiles for the prompt hint.
	profiles func() ([]string, error)
}

func (r *resolver) credentials(_ context.Context, account string) (aws.Credentials, error) {
	if profile := r.store.Profile(account); profile != "" {
		return aws.Credentials{Profile: profile}, nil
	}
	if !r.interactive {
		return aws.Credentials{}, fmt.Errorf("%w: set aws.accounts.%s.profile in %s", errNonInteractive, account, r.store.Path())
	}

	placeholder := ""
	if r.profiles != nil {
		if names, err := r.profiles(); err == nil && len(names) > 0 {
			placeholder = strings.Join(names, ", ")
		}
	}
	profile, err := r.ask.Ask(
		fmt.Sprintf("AWS profile for account %s?", account),
		placeholder,
		func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("profile is required")
			}
			return nil
		},
	)
	if err != nil {
		return aws.Credentials{}, err
	}
	if err := r.store.SetProfile(account, profile); err != nil {
		r.logger.Warn("could not save profile", "account", account, "error", err)
	}
	return aws.Credentials{Profile: profile}, nil
}

// root finds the source directory of function. Relative answers are
// taken from the project root.
func (r *resolver) root(function string) (string, error) {
	if configured := r.store.FunctionRoot(function); configured != "" {
		return r.abs(configured), nil
	}

	candidate := filepath.Join(r.project, function)
	if isDir(candidate) {
		return candidate, nil
	}

	if !r.interactive {
		r.logger.Debug("using project root as function root", "function", function)
		return r.project, nil
	}

	answer, err := r.ask.Ask(
		fmt.Sprintf("Source directory of function `%s`?", function),
		"leave empty for "+r.project,
		func(s string) error {
			s = strings.TrimSpace(s)
			if s != "" && !isDir(r.abs(s)) {
				return fmt.Errorf("%s is not a directory", s)
			}
			return nil
		},
	)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return r.project, nil
	}
	if err := r.store.SetFunctionRoot(function, answer); err != nil {
		r.logger.Warn("could not save function root", "function", function, "error", err)
	}
	return r.abs(answer), nil
}

func (r *resolver) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.project, p)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
