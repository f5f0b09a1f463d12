package aws

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/DrSkyle/rolesmith/pkg/version"
)

// STSAPI is the part of STS the session needs.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Credentials selects how a foreign account is reached: a named profile, or
// static keys when AccessKeyID is set.
type Credentials struct {
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Options configures LoadConfig.
type Options struct {
	Region      string
	Credentials Credentials
	Verbose     bool
	Logger      *slog.Logger
}

// Client is the default session: the SDK config of the caller's own account.
type Client struct {
	Config aws.Config
	STS    STSAPI
}

// LoadConfig builds an SDK config with the tool's user agent and, in verbose
// mode, a middleware logging every API operation.
func LoadConfig(ctx context.Context, o Options) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	switch {
	case o.Credentials.AccessKeyID != "":
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.Credentials.AccessKeyID, o.Credentials.SecretAccessKey, o.Credentials.SessionToken)))
	case o.Credentials.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(o.Credentials.Profile))
	}

	// Local endpoint override, used against LocalStack.
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}

	agent := fmt.Sprintf("%s/%s", version.AppName, version.Current)
	cfg.APIOptions = append(cfg.APIOptions, func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("RolesmithUserAgent", func(ctx context.Context, input middleware.BuildInput, next middleware.BuildHandler) (
			middleware.BuildOutput, middleware.Metadata, error,
		) {
			if req, ok := input.Request.(*smithyhttp.Request); ok {
				ua := req.Header.Get("User-Agent")
				if ua == "" {
					req.Header.Set("User-Agent", agent)
				} else {
					req.Header.Set("User-Agent", ua+" "+agent)
				}
			}
			return next.HandleBuild(ctx, input)
		}), middleware.After)
	})

	if o.Verbose {
		logger := o.Logger
		if logger == nil {
			logger = slog.Default()
		}
		cfg.APIOptions = append(cfg.APIOptions, func(stack *middleware.Stack) error {
			return stack.Initialize.Add(middleware.InitializeMiddlewareFunc("RolesmithAPILogger", func(ctx context.Context, input middleware.InitializeInput, next middleware.InitializeHandler) (
				middleware.InitializeOutput, middleware.Metadata, error,
			) {
				logger.Debug("aws api call",
					"service", awsmiddleware.GetServiceID(ctx),
					"operation", middleware.GetOperationName(ctx))
				return next.HandleInitialize(ctx, input)
			}), middleware.Before)
		})
	}
	return cfg, nil
}

// NewClient initializes the default session.
func NewClient(ctx context.Context, o Options) (*Client, error) {
	cfg, err := LoadConfig(ctx, o)
	if err != nil {
		return nil, err
	}
	return &Client{Config: cfg, STS: sts.NewFromConfig(cfg)}, nil
}

// VerifyIdentity returns the account the default credentials belong to.
func (c *Client) VerifyIdentity(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// ConfigForRegion returns a copy of the default config pinned to region.
func (c *Client) ConfigForRegion(region string) aws.Config {
	cfg := c.Config.Copy()
	cfg.Region = region
	return cfg
}

var profileHeader = regexp.MustCompile(`^\[(?:profile\s+)?([^\]]+)\]`)

// ListProfiles returns the profile names found in the shared config and
// credentials files, sorted.
func ListProfiles() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	var paths []string
	if p := os.Getenv("AWS_CONFIG_FILE"); p != "" {
		paths = append(paths, p)
	} else {
		paths = append(paths, filepath.Join(home, ".aws", "config"))
	}
	if p := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); p != "" {
		paths = append(paths, p)
	} else {
		paths = append(paths, filepath.Join(home, ".aws", "credentials"))
	}

	seen := map[string]bool{}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(content), "\n") {
			if m := profileHeader.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				seen[m[1]] = true
			}
		}
	}

	list := make([]string, 0, len(seen))
	for p := range seen {
		list = append(list, p)
	}
	slices.Sort(list)
	return list, nil
}
