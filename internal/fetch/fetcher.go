// Package fetch downloads remote source images with a hard timeout and a
// payload size guard.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/redact"
)

// Default fetch limits.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxPayloadBytes = 10 * 1024 * 1024
	DefaultMaxRedirects    = 5
)

// Config holds the fetcher limits.
type Config struct {
	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration
	// MaxPayloadBytes is the largest accepted body.
	MaxPayloadBytes int64
	// MaxRedirects caps the redirect hops followed per request.
	MaxRedirects int
	// AllowHost, when set, must accept the host of every redirect target.
	AllowHost func(host string) bool
}

// DefaultConfig returns a Config with the standard limits.
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		MaxRedirects:    DefaultMaxRedirects,
	}
}

// Response is a fetched payload.
type Response struct {
	Body        []byte
	ContentType string
}

// Fetcher performs HTTP GETs for source images.
type Fetcher struct {
	client *http.Client
	config Config
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. If client is nil, a pooled client from
// go-cleanhttp is used. A supplied client is copied so its redirect policy
// can be replaced.
func NewFetcher(client *http.Client, config Config, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	} else {
		c := *client
		client = &c
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxPayloadBytes <= 0 {
		config.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = DefaultMaxRedirects
	}

	f := &Fetcher{
		client: client,
		config: config,
		logger: logger.With("component", "fetcher"),
	}
	client.CheckRedirect = f.checkRedirect
	return f
}

// checkRedirect applies the source rules to every hop so a redirect cannot
// leave the allow-list.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.config.MaxRedirects {
		return domain.NewIngestError(domain.KindFetchHTTPError,
			fmt.Sprintf("stopped after %d redirects", len(via)), nil)
	}
	switch strings.ToLower(req.URL.Scheme) {
	case "http", "https":
	default:
		return domain.NewIngestError(domain.KindInvalidSource,
			fmt.Sprintf("redirect to unsupported scheme %q", req.URL.Scheme), nil)
	}
	if f.config.AllowHost != nil && !f.config.AllowHost(strings.ToLower(req.URL.Hostname())) {
		return domain.NewIngestError(domain.KindInvalidSource,
			fmt.Sprintf("redirect to unsupported host %q", req.URL.Hostname()), nil)
	}
	return nil
}

// Fetch downloads u. Failures are domain.IngestErrors of kind FetchTimeout,
// FetchHTTPError, PayloadTooLarge or InvalidImage (non-image content type).
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) (*Response, error) {
	log := logger.FromContextOrDefault(ctx, f.logger)

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.NewIngestError(domain.KindFetchHTTPError, "failed to build request", err)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		var ingestErr *domain.IngestError
		if errors.As(err, &ingestErr) {
			log.Warn("redirect rejected", "url", redact.URL(u.String()), "error", ingestErr.Message)
			return nil, ingestErr
		}
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, domain.NewIngestError(domain.KindFetchHTTPError,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if resp.ContentLength > f.config.MaxPayloadBytes {
		return nil, domain.NewIngestError(domain.KindPayloadTooLarge,
			fmt.Sprintf("declared size %d exceeds limit %d", resp.ContentLength, f.config.MaxPayloadBytes), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, domain.NewIngestError(domain.KindInvalidImage,
			fmt.Sprintf("unexpected content type %q", contentType), nil)
	}

	lr := &io.LimitedReader{R: resp.Body, N: f.config.MaxPayloadBytes + 1}
	body, err := io.ReadAll(lr)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	if int64(len(body)) > f.config.MaxPayloadBytes {
		return nil, domain.NewIngestError(domain.KindPayloadTooLarge,
			fmt.Sprintf("payload exceeds limit %d", f.config.MaxPayloadBytes), nil)
	}

	log.Debug("fetched source image",
		"url", redact.URL(u.String()),
		"bytes", len(body),
		"content_type", contentType,
		"duration_ms", time.Since(start).Milliseconds())

	return &Response{Body: body, ContentType: contentType}, nil
}

// classifyTransportError maps client errors to FetchTimeout when the deadline
// fired, and FetchHTTPError otherwise.
func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewIngestError(domain.KindFetchTimeout, "request timed out", err)
	}
	return domain.NewIngestError(domain.KindFetchHTTPError, "request failed", err)
}
