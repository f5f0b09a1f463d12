// Package storage writes generated documents to a local file or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// BlobStore is where a rendered document is written.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

var ErrInvalidTarget = errors.New("invalid output target")

// Target is a parsed output destination: s3://bucket/key or a file path.
type Target struct {
	Bucket string
	Key    string
}

func (t Target) IsS3() bool { return t.Bucket != "" }

func (t Target) String() string {
	if t.IsS3() {
		return "s3://" + t.Bucket + "/" + t.Key
	}
	return t.Key
}

// ParseTarget splits an output destination.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return Target{}, fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return Target{Key: s}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Target{}, fmt.Errorf("%w: %s (want s3://bucket/key)", ErrInvalidTarget, s)
	}
	return Target{Bucket: bucket, Key: key}, nil
}

// Open returns the store holding t and the key to write under. Config is
// only loaded for S3 targets.
func Open(ctx context.Context, t Target, config func(ctx context.Context) (aws.Config, error)) (BlobStore, string, error) {
	if !t.IsS3() {
		return NewLocalStore(filepath.Dir(t.Key)), filepath.Base(t.Key), nil
	}
	cfg, err := config(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load aws config for upload: %w", err)
	}
	return NewS3Store(cfg, t.Bucket), t.Key, nil
}

// Write stores data at the destination s.
func Write(ctx context.Context, s string, data []byte, config func(ctx context.Context) (aws.Config, error)) error {
	t, err := ParseTarget(s)
	if err != nil {
		return err
	}
	store, key, err := Open(ctx, t, config)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}
