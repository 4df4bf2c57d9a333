// Package sink provides the destinations reconstructed frames are exported
// to: a directory tree, process memory or an S3-compatible bucket.
package sink

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"holorecon/pkg/config"
	"holorecon/pkg/result"
)

// ErrInvalidKey is returned for empty, absolute or escaping keys.
var ErrInvalidKey = errors.New("sink: invalid key")

// cleanKey rejects keys that could leave the sink root and normalizes the
// rest.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, `\`) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q contains '..'", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

// Open builds the store selected by the output section of cfg.
func Open(ctx context.Context, cfg *config.Config) (result.Store, error) {
	switch cfg.Output.Sink {
	case config.SinkFS:
		fs, err := NewFS(cfg.Output.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.SinkMemory:
		return NewMemory(), nil
	case config.SinkS3:
		s := cfg.Output.S3
		store, err := NewS3(ctx, S3Config{
			Bucket:          s.Bucket,
			Prefix:          s.Prefix,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			PathStyle:       s.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("sink: unknown driver %q", cfg.Output.Sink)
}
