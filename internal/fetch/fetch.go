// Package fetch performs single streaming HTTP GETs for the preview
// scheduler, enforcing a wall-clock timeout measured from fetch start,
// cumulative byte ceilings chosen by the caller, and cooperative
// cancellation at read boundaries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/irclight/unfurl/internal/preview"
)

// maxRedirects caps redirect chains; anything longer is treated as a
// transport failure.
const maxRedirects = 5

// Class is the capture branch decided from a response's media type.
type Class string

// Capture branches. Image responses are returned as opaque bytes;
// everything else is scraped for metadata.
const (
	ClassImage Class = "image"
	ClassPage  Class = "page"
)

// Classify maps a Content-Type header value onto the capture branch. A
// missing or malformed header scrapes as a page, which at worst yields
// empty metadata.
func Classify(contentType string) Class {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ClassPage
	}
	if strings.HasPrefix(mediaType, "image/") {
		return ClassImage
	}
	return ClassPage
}

// Fetcher issues one GET per call with the configured User-Agent and
// total timeout. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// New builds a Fetcher with a pooled, timeout-tuned transport.
func New(cfg preview.FetchConfig, logger *zap.Logger) *Fetcher {
	return NewWithClient(cfg, newHTTPClient(), logger)
}

// NewWithClient builds a Fetcher around an injected client, used by
// tests and callers with bespoke transports.
func NewWithClient(cfg preview.FetchConfig, client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Fetch starts a GET for rawURL and returns once response headers are
// in. The timeout clock starts here and covers the body reads that
// follow; a zero timeout means unbounded. Callers own the returned
// Response and must Close it on every path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	reqCtx, cancel := f.requestContext(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: build request: %v", preview.ErrTransport, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, wrapTransportErr(reqCtx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: unexpected status %d", preview.ErrTransport, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	f.logger.Debug("response headers received",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", contentType),
	)

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		ContentType: contentType,
		Class:       Classify(contentType),
		body:        resp.Body,
		ctx:         reqCtx,
		cancel:      cancel,
	}, nil
}

func (f *Fetcher) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return context.WithCancel(ctx)
}

// wrapTransportErr converts client failures into the preview taxonomy.
// The request context is consulted directly because transport errors do
// not always wrap the context error they were triggered by.
func wrapTransportErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", preview.ErrTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", preview.ErrCancelled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", preview.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", preview.ErrTransport, err)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: newHTTPTransport(),
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
