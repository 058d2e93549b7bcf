package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/buildmart/price-scout/internal/ratelimit"
)

// Mode selects how a page is retrieved.
type Mode string

const (
	// ModeHTTP issues a direct request with browser-like headers.
	ModeHTTP Mode = "http"
	// ModeRendered drives a headless browser and captures the DOM after
	// client-side scripts have populated it.
	ModeRendered Mode = "rendered"
)

const errorLogSize = 50

// FetchError carries the failing URL and, for HTTP-status failures, the
// status code.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrorRecord is one entry in the fetcher's rolling error log.
type ErrorRecord struct {
	Time    time.Time `json:"time"`
	URL     string    `json:"url"`
	Message string    `json:"message"`
}

// Renderer retrieves fully rendered HTML for a URL. Satisfied by
// browser.Browser.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

type Options struct {
	Timeout     time.Duration
	UserAgent   string
	AcceptLang  string
	Renderer    Renderer
	Limiter     ratelimit.Limiter
	ProxyServer string
}

// Fetcher retrieves raw HTML, applying its owner's inter-request delay
// before every call. One Fetcher per adapter instance.
type Fetcher struct {
	client   *http.Client
	renderer Renderer
	limiter  ratelimit.Limiter
	headers  map[string]string
	logger   *slog.Logger

	mu     sync.Mutex
	errors []ErrorRecord
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if opts.AcceptLang == "" {
		opts.AcceptLang = "en-US,en;q=0.9,es;q=0.8"
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewSimpleLimiter(0, 0)
	}

	transport := http.DefaultTransport
	if opts.ProxyServer != "" {
		if proxyURL, err := url.Parse(opts.ProxyServer); err == nil {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		renderer: opts.Renderer,
		limiter:  opts.Limiter,
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": opts.AcceptLang,
			"Accept-Encoding": "gzip, deflate",
		},
		logger: slog.Default().With("component", "fetcher"),
	}
}

// Fetch retrieves the page at url, blocking first until the owner's
// inter-request delay has elapsed. Failures are recorded in the rolling
// error log and returned to the caller.
func (f *Fetcher) Fetch(ctx context.Context, url string, mode Mode) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var (
		html string
		err  error
	)

	if mode == ModeRendered && f.renderer != nil {
		html, err = f.renderer.Render(ctx, url)
		if err != nil {
			err = &FetchError{URL: url, Err: err}
		}
	} else {
		html, err = f.get(ctx, url)
	}

	if err != nil {
		f.record(url, err)
		return "", err
	}

	return html, nil
}

// Limiter exposes the fetcher's rate limiter so the owning adapter can
// tune the delay at runtime.
func (f *Fetcher) Limiter() ratelimit.Limiter {
	return f.limiter
}

// Errors returns a copy of the rolling error log, newest last.
func (f *Fetcher) Errors() []ErrorRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]ErrorRecord, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	// Offering Accept-Encoding ourselves disables net/http's transparent
	// decompression, so the body must be decoded here.
	reader, err := decodeBody(resp)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	return string(body), nil
}

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func (f *Fetcher) record(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errors = append(f.errors, ErrorRecord{
		Time:    time.Now(),
		URL:     url,
		Message: err.Error(),
	})
	if len(f.errors) > errorLogSize {
		f.errors = f.errors[len(f.errors)-errorLogSize:]
	}

	f.logger.Warn("fetch failed", "url", url, "error", err)
}
