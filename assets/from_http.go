package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPOptions configures the HTTP loader.
type HTTPOptions struct {
	// Timeout limits each request. Zero disables the client timeout
	// (context deadlines still apply).
	Timeout time.Duration

	// BearerToken, when set, is sent as an Authorization header. Asset
	// CDNs for gated models commonly require one.
	BearerToken string

	// Headers are added to every request.
	Headers map[string]string

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// DefaultHTTPOptions returns defaults: a 30 second timeout, no auth.
func DefaultHTTPOptions() *HTTPOptions {
	return &HTTPOptions{Timeout: 30 * time.Second}
}

// FromHTTP loads an asset from an HTTP or HTTPS URL.
type FromHTTP struct {
	sourceURL *url.URL
	options   *HTTPOptions
	client    *http.Client
}

// NewFromHTTP creates an HTTP loader with default options.
func NewFromHTTP(rawURL string) (*FromHTTP, error) {
	return NewFromHTTPWithOptions(rawURL, DefaultHTTPOptions())
}

// NewFromHTTPWithOptions creates an HTTP loader with custom options.
func NewFromHTTPWithOptions(rawURL string, options *HTTPOptions) (*FromHTTP, error) {
	sourceURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL: %w", err)
	}
	if sourceURL.Scheme != "http" && sourceURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrSchemeUnsupported, rawURL)
	}
	if options == nil {
		options = DefaultHTTPOptions()
	}

	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: options.Timeout}
	}

	return &FromHTTP{
		sourceURL: sourceURL,
		options:   options,
		client:    client,
	}, nil
}

func (l *FromHTTP) GetReader(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.sourceURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range l.options.Headers {
		req.Header.Set(key, value)
	}
	if l.options.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+l.options.BearerToken)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "graph-runtime/asset-loader")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d - %s", ErrNotAvailable, resp.StatusCode, resp.Status)
	}

	return resp.Body, nil
}

func (l *FromHTTP) SourceURL() *url.URL {
	return l.sourceURL
}

func (l *FromHTTP) String() string {
	return fmt.Sprintf("assets.FromHTTP{URL: %s}", l.sourceURL)
}
