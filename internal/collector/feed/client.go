package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// chromeMu serializes all Chrome usage so only one instance runs at a time
var chromeMu sync.Mutex

// Client fetches line pages from one JSON feed. When a mirror URL is set the
// base URL is resolved from it and cached for resolveInterval.
type Client struct {
	baseURL       string
	mirrorURL     string
	resolveWithJS bool
	userAgent     string
	headers       map[string]string
	httpClient    *http.Client

	resolvedMu      sync.RWMutex
	resolvedURL     string
	lastResolveTime time.Time
	resolveInterval time.Duration
	resolveTimeout  time.Duration

	// jsResolver is swapped in tests
	jsResolver func(ctx context.Context, mirrorURL, userAgent string) (string, error)
}

func NewClient(baseURL, mirrorURL string, resolveWithJS bool, timeout time.Duration, userAgent string, headers map[string]string) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment

	return &Client{
		baseURL:         baseURL,
		mirrorURL:       mirrorURL,
		resolveWithJS:   resolveWithJS,
		userAgent:       userAgent,
		headers:         headers,
		httpClient:      &http.Client{Timeout: timeout, Transport: transport},
		resolveInterval: 2 * time.Hour,
		resolveTimeout:  60 * time.Second,
		jsResolver:      resolveMirrorWithJS,
	}
}

// linesEnvelope is the paged feed shape; a bare JSON array is accepted too.
type linesEnvelope struct {
	Lines []models.RawBettingLine `json:"lines"`
}

// FetchLines downloads one page of lines for a league.
func (c *Client) FetchLines(ctx context.Context, league string, page int) ([]models.RawBettingLine, error) {
	base := c.resolveBaseURL(ctx)
	if base == "" {
		return nil, fmt.Errorf("no base URL available")
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	u = u.JoinPath("lines")
	q := u.Query()
	q.Set("league", league)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u.Redacted())
	}
	return decodeLines(body)
}

func decodeLines(body []byte) ([]models.RawBettingLine, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var lines []models.RawBettingLine
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, fmt.Errorf("decode lines: %w", err)
		}
		return lines, nil
	}
	var env linesEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	return env.Lines, nil
}

// resolveBaseURL returns the cached mirror resolution, refreshing it when
// stale. On failure the configured base URL is used.
func (c *Client) resolveBaseURL(ctx context.Context) string {
	if c.mirrorURL == "" {
		return c.baseURL
	}

	c.resolvedMu.RLock()
	resolved, at := c.resolvedURL, c.lastResolveTime
	c.resolvedMu.RUnlock()
	if resolved != "" && time.Since(at) < c.resolveInterval {
		return resolved
	}

	c.resolvedMu.Lock()
	defer c.resolvedMu.Unlock()
	if c.resolvedURL != "" && time.Since(c.lastResolveTime) < c.resolveInterval {
		return c.resolvedURL
	}

	target, err := c.resolveMirror(ctx)
	if err != nil {
		if c.resolvedURL != "" {
			slog.Warn("Mirror re-resolve failed, keeping cached URL", "mirror_url", c.mirrorURL, "cached_url", c.resolvedURL, "error", err)
			return c.resolvedURL
		}
		slog.Warn("Mirror resolve failed, using base URL", "mirror_url", c.mirrorURL, "base_url", c.baseURL, "error", err)
		return c.baseURL
	}

	c.resolvedURL = normalizeResolvedBaseURL(target)
	c.lastResolveTime = time.Now()
	slog.Info("Mirror resolved", "mirror_url", c.mirrorURL, "resolved_base", c.resolvedURL)
	return c.resolvedURL
}

// resolveMirror follows HTTP redirects first and falls back to a headless
// browser for pages that redirect from JavaScript.
func (c *Client) resolveMirror(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mirrorURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if final := resp.Request.URL.String(); final != c.mirrorURL {
			return final, nil
		}
	}
	if !c.resolveWithJS {
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("mirror %s did not redirect", c.mirrorURL)
	}

	slog.Debug("HTTP redirect didn't resolve mirror, trying headless browser", "mirror_url", c.mirrorURL)
	return c.jsResolver(ctx, c.mirrorURL, c.userAgent)
}

// resolveMirrorWithJS uses headless browser to execute JavaScript and get final URL
func resolveMirrorWithJS(ctx context.Context, mirrorURL, userAgent string) (string, error) {
	chromeMu.Lock()
	defer chromeMu.Unlock()

	chromeDir, err := os.MkdirTemp("", "evledger_chrome_")
	if err != nil {
		return "", fmt.Errorf("create chrome temp dir: %w", err)
	}
	defer os.RemoveAll(chromeDir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserDataDir(chromeDir),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var finalURL string
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(mirrorURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp navigation: %w", err)
	}

	if finalURL == "" || finalURL == mirrorURL {
		if err := chromedp.Run(browserCtx, chromedp.Sleep(5*time.Second), chromedp.Location(&finalURL)); err != nil {
			return "", fmt.Errorf("chromedp wait: %w", err)
		}
	}
	if finalURL == "" || finalURL == mirrorURL {
		return "", fmt.Errorf("mirror %s did not redirect", mirrorURL)
	}
	return finalURL, nil
}

// normalizeResolvedBaseURL returns scheme://host from a full redirect URL (no path/query, no default port).
func normalizeResolvedBaseURL(resolved string) string {
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	host := u.Hostname()
	port := u.Port()
	if port != "" && port != "80" && port != "443" {
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return u.Scheme + "://" + host
}
