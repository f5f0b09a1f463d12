package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/rolesmith/pkg/config"
	"github.com/DrSkyle/rolesmith/pkg/engine"
	"github.com/DrSkyle/rolesmith/pkg/engine/aws"
	"github.com/DrSkyle/rolesmith/pkg/manifest"
	"github.com/DrSkyle/rolesmith/pkg/storage"
	"github.com/DrSkyle/rolesmith/pkg/tui"
)

type generateOptions struct {
	global *globalOptions

	template     string
	runtime      string
	functions    []string
	output       string
	format       string
	strict       bool
	noDeps       bool
	concurrency  int
	verify       bool
	yes          bool
	region       string
	profile      string
	otelEndpoint string

	// ask is swapped in tests.
	ask asker
}

func newGenerateCmd(global *globalOptions) *cobra.Command {
	opts := &generateOptions{global: global}
	cmd := &cobra.Command{
		Use:   "generate-roles [path]",
		Short: "Generate one least-privilege IAM role per function",
		Long: `Scan the source of every function in a CloudFormation or Terraform template,
or of a single function given --runtime, and print the IAM roles they need.`,
		Example: `  rolesmith generate-roles -t template.yml
  rolesmith generate-roles ./src -r python3.12 -o s3://artifacts/iam/roles.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return opts.run(cmd, path)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.template, "resource-template", "t", "", "CloudFormation (.json, .yml, .yaml) or Terraform (.tf) template")
	f.StringVarP(&opts.runtime, "runtime", "r", "", "Runtime of the code at path when no template is given")
	f.StringSliceVarP(&opts.functions, "function", "f", nil, "Only generate roles for these functions (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "", "Write to a file or s3://bucket/key instead of stdout")
	f.StringVar(&opts.format, "format", "", "Output format: yaml or json (default from the template extension)")
	f.BoolVar(&opts.strict, "strict", false, "Fail instead of falling back to '*'")
	f.BoolVar(&opts.noDeps, "no-deps", false, "Scan every file under the function root instead of following imports")
	f.IntVar(&opts.concurrency, "concurrency", 1, "Functions scanned in parallel")
	f.BoolVar(&opts.verify, "verify", false, "Check the generated policies with the IAM policy simulator")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Never prompt; missing answers are errors")
	f.StringVar(&opts.region, "region", "", "Default AWS region")
	f.StringVar(&opts.profile, "profile", "", "Default AWS profile")
	f.StringVar(&opts.otelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces")

	return cmd
}

func (o *generateOptions) run(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if o.template == "" && o.runtime == "" {
		return usagef("must supply either --resource-template or --runtime")
	}
	if o.format != "" && o.format != "yaml" && o.format != "json" {
		return usagef("unknown --format %q (want yaml or json)", o.format)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), o.global)
	if err != nil {
		return err
	}
	if o.template != "" && o.runtime != "" {
		logger.Warn("ignoring --runtime when --resource-template supplied")
	}

	project, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	store, err := config.Load(project)
	if err != nil {
		return usageError{err}
	}
	if err := store.Viper().BindPFlag(config.KeyDefaultRegion, cmd.Flags().Lookup("region")); err != nil {
		return err
	}
	settings, err := store.Project()
	if err != nil {
		return usageError{err}
	}

	m, functions, err := o.functionsOf(project, logger)
	if err != nil {
		return err
	}

	r := &resolver{
		store:       store,
		ask:         o.asker(),
		interactive: !o.yes,
		project:     project,
		logger:      logger,
		profiles:    aws.ListProfiles,
	}

	sess, err := aws.NewSession(ctx, aws.Options{
		Region:      settings.AWS.DefaultRegion,
		Credentials: aws.Credentials{Profile: o.profile},
		Verbose:     o.global.verbose,
		Logger:      logger,
	}, r.credentials)
	if err != nil {
		if errors.Is(err, aws.ErrNoRegion) {
			return usageError{err}
		}
		return err
	}

	targets := make([]engine.Target, 0, len(functions))
	for _, fn := range functions {
		root := project
		if m != nil {
			if root, err = r.root(fn.Name); err != nil {
				return err
			}
		}
		targets = append(targets, engine.Target{Function: fn, Root: root})
	}

	options := []engine.Option{
		engine.WithConfig(engine.Config{
			Region:         sess.Region,
			Account:        sess.Account,
			Strict:         o.strict,
			NoDeps:         o.noDeps,
			MaxConcurrency: o.concurrency,
			Verify:         o.verify,
			Tools:          settings.Tools.Runtimes(),
			Rules:          settings.Rules,
			OtelEndpoint:   o.otelEndpoint,
			Logger:         logger,
		}),
		engine.WithProvider(sess),
		engine.WithVerifier(sess.Simulator()),
	}
	if m != nil {
		options = append(options, engine.WithDeclared(m))
	}
	eng, err := engine.New(ctx, options...)
	if err != nil {
		return usageError{err}
	}
	defer func() {
		if err := eng.Close(context.Background()); err != nil {
			logger.Debug("telemetry shutdown failed", "error", err)
		}
	}()

	doc, err := eng.Run(ctx, targets)
	if err != nil {
		return err
	}

	format := o.format
	if format == "" {
		format = "yaml"
		if m != nil {
			format = m.DefaultFormat()
		}
	}
	data, err := doc.Render(format)
	if err != nil {
		return err
	}

	return o.write(ctx, cmd.OutOrStdout(), data, func(context.Context) (sdkaws.Config, error) {
		return sess.Default.ConfigForRegion(sess.Region), nil
	})
}

// functionsOf loads the template, or builds the single synthetic function
// when there is none. The manifest is nil in the latter case.
func (o *generateOptions) functionsOf(project string, logger *slog.Logger) (*manifest.Manifest, []manifest.Function, error) {
	if o.template == "" {
		return nil, []manifest.Function{manifest.Synthetic(o.runtime)}, nil
	}

	m, err := manifest.Load(templatePath(o.template, project))
	if err != nil {
		return nil, nil, err
	}
	m.Logger = logger
	functions, err := m.Functions(o.functions)
	if err != nil {
		return nil, nil, err
	}
	return m, functions, nil
}

// templatePath resolves a relative template against the working directory
// first, then against the project.
func templatePath(template, project string) string {
	if filepath.IsAbs(template) {
		return template
	}
	if _, err := os.Stat(template); err == nil {
		return template
	}
	return filepath.Join(project, template)
}

func (o *generateOptions) write(ctx context.Context, stdout io.Writer, data []byte, cfg func(context.Context) (sdkaws.Config, error)) error {
	if o.output == "" || o.output == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := storage.Write(ctx, o.output, data, cfg); err != nil {
		if errors.Is(err, storage.ErrInvalidTarget) {
			return usageError{err}
		}
		return err
	}
	return nil
}

func (o *generateOptions) asker() asker {
	if o.ask != nil {
		return o.ask
	}
	return &tui.Prompter{Options: []tea.ProgramOption{tea.WithOutput(os.Stderr)}}
}
