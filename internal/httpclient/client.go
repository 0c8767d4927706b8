// Package httpclient fetches remote playlists and guides.
//
// The client wraps the standard http.Client and adds:
//   - A bounded overall timeout per fetch
//   - Transparent decompression (gzip, deflate, brotli)
//   - A cap on the decoded body size
//   - Structured logging with credential obfuscation
//
// Fetches are attempted exactly once. A failure is reported to the caller,
// which records it against that source and carries on with the others.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nuken/m3u-epg-checker/internal/version"
	"github.com/nuken/m3u-epg-checker/pkg/format"
)

// Common errors returned by the client.
var (
	ErrBodyTooLarge   = errors.New("response body exceeds size limit")
	ErrStatus         = errors.New("unexpected HTTP status")
	ErrRequestTimeout = errors.New("request timeout")
	ErrUnsupportedURL = errors.New("unsupported URL")
)

// Default configuration values.
const (
	DefaultTimeout              = 30 * time.Second
	DefaultMaxBodySize          = 100 * 1024 * 1024
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
)

// HTTP header constants.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout bounds a whole fetch, including reading the body.
	Timeout time.Duration

	// MaxBodySize caps the decoded body in bytes.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Logger is the structured logger for request/response logging.
	Logger *slog.Logger

	// BaseClient is the underlying http.Client to use.
	// If nil, a default client is created.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		MaxBodySize: DefaultMaxBodySize,
		UserAgent:   version.UserAgent(),
		Logger:      slog.Default(),
	}
}

// Client fetches remote documents.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a client with the given configuration. Zero values fall back
// to defaults.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	baseClient := cfg.BaseClient
	if baseClient == nil {
		// Decompression is handled here so deflate and brotli work too.
		baseClient = &http.Client{
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
			},
		}
	}

	return &Client{
		config: cfg,
		client: baseClient,
		logger: cfg.Logger,
	}
}

// NewWithDefaults creates a new client with default configuration.
func NewWithDefaults() *Client {
	return New(DefaultConfig())
}

// Fetch downloads rawURL and returns the decoded body. Only http and https
// URLs are accepted. Non-2xx responses, timeouts and oversized bodies are
// errors; nothing is retried.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			slog.String("url", obfuscateURL(u)),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRequestTimeout, c.config.Timeout)
		}
		return nil, fmt.Errorf("fetching %s: %w", obfuscateURL(u), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("unexpected status code",
			slog.String("url", obfuscateURL(u)),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := c.wrapDecompression(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, c.config.MaxBodySize+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRequestTimeout, c.config.Timeout)
		}
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > c.config.MaxBodySize {
		return nil, fmt.Errorf("%w (%s)", ErrBodyTooLarge, format.Bytes(c.config.MaxBodySize))
	}

	c.logger.Debug("request completed",
		slog.String("url", obfuscateURL(u)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// wrapDecompression wraps the response body with appropriate decompression.
func (c *Client) wrapDecompression(resp *http.Response) (io.ReadCloser, error) {
	encoding := resp.Header.Get(HeaderContentEncoding)
	if encoding == "" {
		return resp.Body, nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return &decompressReader{reader: reader, closer: resp.Body}, nil

	case EncodingDeflate:
		reader := flate.NewReader(resp.Body)
		return &decompressReader{reader: reader, closer: resp.Body}, nil

	case EncodingBrotli:
		reader := brotli.NewReader(resp.Body)
		return &decompressReader{reader: reader, closer: resp.Body}, nil

	default:
		c.logger.Debug("unknown content encoding, returning raw body",
			slog.String("encoding", encoding),
		)
		return resp.Body, nil
	}
}

// decompressReader wraps a decompression reader with the original body closer.
type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		closer.Close()
	}
	return d.closer.Close()
}

// ObfuscateURL masks credentials in a raw URL for logs and messages.
// Unparsable input is returned as "<invalid url>".
func ObfuscateURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return obfuscateURL(u)
}

// obfuscateURL returns a URL string with sensitive query parameters and
// user info obfuscated.
func obfuscateURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	// Make a copy to avoid modifying the original
	sanitized := *u
	if sanitized.User != nil {
		sanitized.User = url.User("***")
	}
	query := sanitized.Query()

	sensitiveParams := []string{
		"password", "passwd", "pass", "pwd",
		"token", "api_key", "apikey", "key",
		"secret", "auth", "authorization",
		"credential", "credentials", "username",
	}

	for _, param := range sensitiveParams {
		if query.Has(param) {
			query.Set(param, "***")
		}
	}

	sanitized.RawQuery = query.Encode()
	return sanitized.String()
}
