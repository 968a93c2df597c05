package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npmwatch/npmwatch/internal/core"
)

const (
	// DefaultBaseURL is the public npm registry.
	DefaultBaseURL = "https://registry.npmjs.org"

	// PackagePageURL is the npm website page prefix for a package.
	PackagePageURL = "https://www.npmjs.com/package/"

	defaultTimeout = 10 * time.Second

	// maxDocumentSize bounds how much of a packument is read. Large packages
	// (hundreds of versions) run into tens of megabytes.
	maxDocumentSize = 256 << 20
)

// ErrRateLimited is returned when the local limiter refuses a request.
var ErrRateLimited = errors.New("registry rate limited")

// StatusError reports a non-2xx registry response.
type StatusError struct {
	Package    string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("registry request for %s failed: %s", e.Package, status)
}

// Limiter gates outbound registry requests per endpoint.
type Limiter interface {
	Allow(ctx context.Context, endpoint string) (bool, time.Duration, error)
	Record(ctx context.Context, endpoint string) error
	Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error
}

// NPMClient fetches package documents from an npm-compatible registry.
type NPMClient struct {
	Client    *http.Client
	Limiter   Limiter
	BaseURL   string
	UserAgent string
}

// Fetch retrieves the registry document for a package.
func (c *NPMClient) Fetch(ctx context.Context, name string) (*core.RegistryDocument, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	value := strings.TrimSpace(name)
	if value == "" {
		return nil, errors.New("package name is required")
	}

	baseURL, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	endpoint := baseURL.Hostname()

	if c.Limiter != nil && endpoint != "" {
		allowed, wait, err := c.Limiter.Allow(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: retry in %s", ErrRateLimited, wait.Round(time.Second))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PackageURL(baseURL, value), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	if c.Limiter != nil && endpoint != "" {
		if err := c.Limiter.Record(ctx, endpoint); err != nil {
			return nil, err
		}
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode == http.StatusTooManyRequests {
		if wait := retryAfterHeader(resp); c.Limiter != nil && endpoint != "" && wait > 0 {
			_ = c.Limiter.Record429(ctx, endpoint, wait)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Package: value, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var doc core.RegistryDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode registry document for %s: %w", value, err)
	}
	if doc.Name == "" {
		doc.Name = value
	}

	return &doc, nil
}

// PackageURL builds the registry document URL for a package. The slash of a
// scoped name is escaped, which is how the registry expects it.
func PackageURL(baseURL *url.URL, name string) string {
	escaped := url.PathEscape(name)
	if strings.HasPrefix(name, "@") {
		escaped = "@" + url.PathEscape(strings.TrimPrefix(name, "@"))
	}

	base := strings.TrimRight(baseURL.String(), "/")
	return base + "/" + escaped
}

// PackagePage returns the npm website URL for a package.
func PackagePage(name string) string {
	return PackagePageURL + name
}

func (c *NPMClient) baseURL() (*url.URL, error) {
	raw := DefaultBaseURL
	if c != nil && strings.TrimSpace(c.BaseURL) != "" {
		raw = strings.TrimSpace(c.BaseURL)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid registry url: %w", err)
	}
	return parsed, nil
}

func (c *NPMClient) client() *http.Client {
	if c != nil && c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: defaultTimeout}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
