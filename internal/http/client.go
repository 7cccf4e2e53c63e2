// Package http replays captured requests: it sends them with the round's
// session cookies, follows redirects by hand, and retries failed steps.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkin/internal/core"
	"checkin/internal/logging"
	"checkin/internal/ratelimit"
	"checkin/internal/template"
)

const (
	// DefaultTimeout bounds every physical send, including redirect hops.
	DefaultTimeout = 10 * time.Second
	// MaxRedirects is the number of redirect hops followed before giving up.
	MaxRedirects = 5

	// maxResponseRead caps how much of a response body is kept for logging.
	maxResponseRead = 64 * 1024
)

// ErrTooManyRedirects is reported when a redirect chain exceeds MaxRedirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// Outcome is the result of one send. Jar is the session cookie jar after the
// response's Set-Cookie headers were merged.
type Outcome struct {
	OK         bool
	Message    string
	Jar        string
	StatusCode int
}

// Client sends captured requests. It is safe for concurrent use.
type Client struct {
	http         *http.Client
	limiter      *ratelimit.RateLimiter
	debug        *DebugLogger
	log          logging.Logger
	maxRedirects int
}

type ClientOption func(*Client)

// WithRateLimiter makes every physical send, redirect hops included, wait
// on the shared limiter.
func WithRateLimiter(rl *ratelimit.RateLimiter) ClientOption {
	return func(c *Client) { c.limiter = rl }
}

// WithDebug dumps requests and responses through d.
func WithDebug(d *DebugLogger) ClientOption {
	return func(c *Client) { c.debug = d }
}

// WithHTTPClient replaces the underlying client. Its redirect policy is
// overridden so redirects stay under this package's control.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		cp := *hc
		cp.CheckRedirect = stopRedirects
		cp.Jar = nil
		c.http = &cp
	}
}

func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) { c.maxRedirects = n }
}

// NewClient builds a Client that talks HTTP/1.1 straight to the target host:
// no proxy, no automatic redirects, no automatic cookie handling.
func NewClient(timeout time.Duration, log logging.Logger, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.NewNop()
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Transport:     transport,
			Timeout:       timeout,
			CheckRedirect: stopRedirects,
		},
		log:          log,
		maxRedirects: MaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func stopRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Send replays spec with jar merged into its Cookie header. It never returns
// an error: transport problems and non-2xx responses become a failed Outcome.
func (c *Client) Send(ctx context.Context, spec core.RequestSpec, jar string) Outcome {
	return c.send(ctx, spec, jar, 0)
}

func (c *Client) send(ctx context.Context, spec core.RequestSpec, jar string, hops int) Outcome {
	req, body, err := c.buildRequest(ctx, spec, jar)
	if err != nil {
		return Outcome{Message: err.Error(), Jar: jar}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Outcome{Message: fmt.Sprintf("network error: %v", err), Jar: jar}
	}

	c.debug.LogRequest(req, body)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.debug.LogError(req, err, time.Since(start))
		return Outcome{Message: fmt.Sprintf("network error: %v", err), Jar: jar}
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseRead))
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	c.debug.LogResponse(req, resp, respBody, time.Since(start))

	jar = MergeSetCookies(jar, resp.Header.Values("Set-Cookie"))

	if isRedirect(resp.StatusCode) {
		if location := resp.Header.Get("Location"); location != "" {
			if hops >= c.maxRedirects {
				c.log.Warn("redirect chain too long", "url", spec.URL, "hops", hops)
				return Outcome{Message: ErrTooManyRedirects.Error(), Jar: jar, StatusCode: resp.StatusCode}
			}
			next, err := resolveLocation(req.URL, location)
			if err != nil {
				c.log.Warn("unresolvable redirect location", "location", location, "error", err)
			} else {
				c.log.Debug("following redirect", "status", resp.StatusCode, "to", next)
				return c.send(ctx, redirectSpec(spec, next), jar, hops+1)
			}
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Outcome{OK: true, Message: "OK", Jar: jar, StatusCode: resp.StatusCode}
	}
	return Outcome{Message: fmt.Sprintf("status:%d", resp.StatusCode), Jar: jar, StatusCode: resp.StatusCode}
}

func (c *Client) buildRequest(ctx context.Context, spec core.RequestSpec, jar string) (*http.Request, []byte, error) {
	vars := core.VariablesFromContext(ctx)

	target, err := template.Substitute(spec.URL, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("template error: %w", err)
	}
	headers, err := template.SubstituteMap(spec.CloneHeaders(), vars)
	if err != nil {
		return nil, nil, fmt.Errorf("template error: %w", err)
	}

	// JSON and binary bodies go out exactly as captured.
	body := spec.Body
	if spec.BodyKind == core.BodyText {
		text, err := template.Substitute(string(spec.Body), vars)
		if err != nil {
			return nil, nil, fmt.Errorf("template error: %w", err)
		}
		body = []byte(text)
	}

	mergeCookieHeader(headers, jar)

	var reader io.Reader
	if spec.HasBody() {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("network error: %w", err)
	}

	for name, value := range headers {
		switch strings.ToLower(name) {
		case "host":
			req.Host = value
		case "content-length", "accept-encoding", "connection":
			// computed by the transport
		default:
			req.Header.Set(name, value)
		}
	}
	return req, body, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// resolveLocation resolves a Location header. Relative locations are taken
// against the scheme and host of the request that was redirected.
func resolveLocation(from *url.URL, location string) (string, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if loc.IsAbs() {
		return loc.String(), nil
	}
	base := &url.URL{Scheme: from.Scheme, Host: from.Host, Path: "/"}
	return base.ResolveReference(loc).String(), nil
}

// redirectSpec is the follow-up request for a redirect: a bodyless GET that
// keeps the captured headers except those describing the dropped body.
func redirectSpec(spec core.RequestSpec, target string) core.RequestSpec {
	headers := spec.CloneHeaders()
	for _, name := range []string{"Content-Type", "Content-Length", "Host"} {
		if key := core.HeaderKey(headers, name); key != "" {
			delete(headers, key)
		}
	}
	return core.RequestSpec{
		Method:  http.MethodGet,
		URL:     target,
		Headers: headers,
	}
}
