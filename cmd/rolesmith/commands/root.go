package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/DrSkyle/rolesmith/pkg/clog"
	"github.com/DrSkyle/rolesmith/pkg/engine"
	"github.com/DrSkyle/rolesmith/pkg/manifest"
	"github.com/DrSkyle/rolesmith/pkg/version"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// usageError marks bad arguments or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

type globalOptions struct {
	verbose   bool
	noColor   bool
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   version.AppName,
		Short: "Least-privilege IAM roles for Lambda functions",
		Long: `rolesmith reads your functions' source, finds the AWS SDK calls they make
and the resources they touch, and writes one IAM role per function.`,
		Version:       version.Current,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging, including every AWS API call")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable coloured diagnostics")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Diagnostics format: text or json")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})

	root.AddCommand(newGenerateCmd(opts), newPermissionsCmd(), newVersionCmd())
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(newRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(stderr, color.New(color.FgRed).Sprint("error: ")+err.Error())
	return exitCode(err)
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage),
		errors.Is(err, manifest.ErrInvalidFunction),
		errors.Is(err, manifest.ErrNoFunctions),
		errors.Is(err, manifest.ErrUnsupportedInput):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// newLogger builds the diagnostic logger. Diagnostics go to w so stdout
// only carries the generated document.
func newLogger(w io.Writer, opts *globalOptions) (*slog.Logger, error) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	switch opts.logFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: engine.RedactSensitiveData,
		})), nil
	case "text", "":
		return slog.New(clog.NewTextHandler(w,
			clog.WithColor(!opts.noColor && !color.NoColor),
			clog.WithLevel(level),
			clog.WithReplaceAttr(engine.RedactSensitiveData),
		)), nil
	default:
		return nil, usagef("unknown --log-format %q (want text or json)", opts.logFormat)
	}
}

func renderHelp(w io.Writer, cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginTop(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s %s", version.AppName, version.Current)))
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else {
		fmt.Fprintln(w, cmd.Short)
	}

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-16s %s\n", c.Name(), c.Short)
			}
		}
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		output := fmt.Sprintf("  %-26s %s", name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(output))
	})
	fmt.Fprintln(w)
}
