// Package artifact mirrors run outputs to a local directory or an S3 bucket.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
)

var ErrNotFound = errors.New("artifact not found")

type Object struct {
	Key      string
	Size     int64
	Modified time.Time
}

// Store is a flat key/value blob store. Keys use forward slashes.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// S3Options configure the S3 client for s3:// URLs. Credentials come from the default
// AWS chain.
type S3Options struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// Open returns the store for rawURL: file:///dir or s3://bucket/prefix.
func Open(ctx context.Context, rawURL string, opts S3Options) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("artifact url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "file":
		dir := u.Path
		if u.Host != "" {
			dir = filepath.Join(u.Host, u.Path)
		}
		if dir == "" {
			return nil, fmt.Errorf("artifact url %q: empty path", rawURL)
		}
		return NewFS(dir), nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("artifact url %q: bucket required", rawURL)
		}
		return NewS3(ctx, S3Config{
			Bucket:    u.Host,
			Prefix:    strings.Trim(u.Path, "/"),
			Region:    opts.Region,
			Endpoint:  opts.Endpoint,
			PathStyle: opts.PathStyle,
		})
	}
	return nil, fmt.Errorf("artifact url %q: unsupported scheme %q (use file or s3)", rawURL, u.Scheme)
}

// Mirror uploads each file under prefix/<base name> and returns the keys written.
func Mirror(ctx context.Context, store Store, prefix string, paths ...string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		key := path.Join(prefix, filepath.Base(p))
		fh, err := os.Open(p)
		if err != nil {
			return keys, err
		}
		err = store.Put(ctx, key, fh)
		fh.Close()
		if err != nil {
			return keys, fmt.Errorf("mirror %s: %w", p, err)
		}
		logger.Debug("Mirrored artifact", zap.String("path", p), zap.String("key", key))
		keys = append(keys, key)
	}
	return keys, nil
}
