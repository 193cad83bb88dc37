// Package source fetches describegraph documents from files, HTTP endpoints
// and S3-compatible buckets.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// ErrTooLarge is returned by Fetch when a document exceeds the source's
// size limit.
var ErrTooLarge = errors.New("document too large")

// Source yields the raw bytes of one graph document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// S3Options configures S3 sources created by Open.
type S3Options struct {
	Region   string
	Endpoint string
}

// Options configures Open.
type Options struct {
	S3 S3Options
	// Token is sent as a bearer token by HTTP sources.
	Token string
	// MaxBytes bounds the size of a fetched document. Zero means no limit.
	MaxBytes int64
}

// Open returns the source for uri: "s3://bucket/key", "http://..." or
// "https://...", otherwise a local file path.
func Open(ctx context.Context, uri string, opts Options) (Source, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, key, err := parseS3URI(uri)
		if err != nil {
			return nil, err
		}
		src, err := NewS3Source(ctx, bucket, key, opts.S3.Region, opts.S3.Endpoint)
		if err != nil {
			return nil, err
		}
		src.MaxBytes = opts.MaxBytes
		return src, nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		src := NewHTTPSource(uri, opts.Token)
		src.MaxBytes = opts.MaxBytes
		return src, nil
	case uri == "":
		return nil, fmt.Errorf("empty source")
	default:
		src := NewFileSource(strings.TrimPrefix(uri, "file://"))
		src.MaxBytes = opts.MaxBytes
		return src, nil
	}
}

// readLimited reads r to EOF. With a positive limit, reading stops one byte
// past it and a longer document is ErrTooLarge.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 uri: %w", err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q: want s3://bucket/key", uri)
	}
	return bucket, key, nil
}

// Load fetches the document from src and decodes it.
func Load(ctx context.Context, src Source) (*model.Graph, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	return model.Decode(data)
}
