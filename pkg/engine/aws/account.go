package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

// CredentialResolver tells the session how to reach an account other than
// the caller's own.
type CredentialResolver func(ctx context.Context, account string) (Credentials, error)

var ErrNoRegion = errors.New("no default region configured")

// Session is shared by every function scan of a run. It owns the listing
// cache and one API client per (service, region, account).
type Session struct {
	Default *Client
	Account string
	Region  string
	Resolve CredentialResolver
	API     Factory
	Logger  *slog.Logger
	Verbose bool

	// Load builds the config of a foreign account.
	Load func(ctx context.Context, o Options) (aws.Config, error)

	cache    *Cache
	clients  clients
	mu       sync.Mutex
	accounts map[string]aws.Config
	machines map[clientKey][]stateMachine

	regionsOnce sync.Once
	regions     []string
}

// NewSession verifies the default credentials and pins the default account
// and region.
func NewSession(ctx context.Context, o Options, resolve CredentialResolver) (*Session, error) {
	c, err := NewClient(ctx, o)
	if err != nil {
		return nil, err
	}
	if c.Config.Region == "" {
		return nil, fmt.Errorf("%w: pass --region or set aws.default_region", ErrNoRegion)
	}
	account, err := c.VerifyIdentity(ctx)
	if err != nil {
		return nil, err
	}
	s := NewStaticSession(c, account, c.Config.Region, resolve)
	s.Logger = o.Logger
	s.Verbose = o.Verbose
	return s, nil
}

// NewStaticSession wraps an already verified client.
func NewStaticSession(c *Client, account, region string, resolve CredentialResolver) *Session {
	return &Session{
		Default: c,
		Account: account,
		Region:  region,
		Resolve: resolve,
		API:     DefaultFactory(),
		Load:    LoadConfig,
		cache:   NewCache(),
	}
}

func (s *Session) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// target replaces wildcard coordinates with the session defaults.
func (s *Session) target(region, account string) (string, string) {
	if region == tree.Wildcard || region == "" {
		if region == tree.Wildcard {
			s.logger().Warn(fmt.Sprintf("unknown region ('*'), using the default ('%s')", s.Region))
		}
		region = s.Region
	}
	if account == tree.Wildcard || account == "" {
		if account == tree.Wildcard {
			s.logger().Warn("unknown account ('*'), using default session")
		}
		account = s.Account
	}
	return region, account
}

// Config returns the SDK config for a concrete region and account.
func (s *Session) Config(ctx context.Context, region, account string) (aws.Config, error) {
	if account == s.Account {
		return s.Default.ConfigForRegion(region), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.accounts[account]
	if !ok {
		if s.Resolve == nil {
			return aws.Config{}, fmt.Errorf("no credentials for account %s", account)
		}
		creds, err := s.Resolve(ctx, account)
		if err != nil {
			return aws.Config{}, fmt.Errorf("resolve credentials for account %s: %w", account, err)
		}
		base, err = s.Load(ctx, Options{Region: s.Region, Credentials: creds, Verbose: s.Verbose, Logger: s.Logger})
		if err != nil {
			return aws.Config{}, err
		}
		if s.accounts == nil {
			s.accounts = map[string]aws.Config{}
		}
		s.accounts[account] = base
	}
	cfg := base.Copy()
	cfg.Region = region
	return cfg, nil
}
