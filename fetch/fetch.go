// Package fetch resolves image locators to raw bytes. A locator is a local
// filesystem path, an http(s) URL, or an s3://bucket/key object reference.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// HTTPTimeout bounds web image downloads
	HTTPTimeout = 30 * time.Second
	// MaxImageBytes caps the size of a fetched image (32 MiB)
	MaxImageBytes = 32 << 20
)

// ErrNotImage is returned when a locator resolves to non-image content
var ErrNotImage = errors.New("locator does not reference an image")

// Fetcher resolves an image locator to raw bytes
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Resolver implements Fetcher for local paths, web URLs and S3 objects
type Resolver struct {
	httpClient *http.Client
	s3         *s3Source
}

// Options configures a Resolver
type Options struct {
	// S3Region overrides the region from the ambient AWS configuration
	S3Region string
	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client
}

// NewResolver creates a Resolver
func NewResolver(opts Options) *Resolver {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: HTTPTimeout}
	}
	return &Resolver{
		httpClient: client,
		s3:         &s3Source{region: opts.S3Region},
	}
}

// Fetch resolves locator to image bytes, rejecting content that does not
// sniff as an image
func (r *Resolver) Fetch(ctx context.Context, locator string) ([]byte, error) {
	var data []byte
	var err error

	switch {
	case strings.HasPrefix(locator, "s3://"):
		data, err = r.s3.fetch(ctx, locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		data, err = r.fetchHTTP(ctx, locator)
	default:
		data, err = os.ReadFile(locator)
		if err != nil {
			err = fmt.Errorf("failed to read image file: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, locator)
	}
	return data, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", url, MaxImageBytes)
	}
	return data, nil
}
