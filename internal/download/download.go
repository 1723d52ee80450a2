// Package download is the shared HTTP layer used by every metadata source.
// It owns the cookie jar, User-Agent, rate limiter and per-host metrics so
// adapters only build URLs and parse bodies.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/metrics"
	"github.com/ryanm101/gamemeta/internal/tracing"
)

const (
	defaultTimeout = 30 * time.Second
	defaultAppName = "gamemeta"
)

// UserAgent builds the identifying agent string sent when no explicit list
// is configured, e.g. "gamemeta/0.1.0 (+https://github.com/ryanm101/gamemeta)".
func UserAgent(app, version string) string {
	if app == "" {
		app = defaultAppName
	}
	if version == "" {
		return app
	}
	return fmt.Sprintf("%s/%s (+https://github.com/ryanm101/gamemeta)", app, version)
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// UserAgents are rotated round-robin across requests. When empty a single
	// agent built from AppName and AppVersion is used.
	UserAgents []string
	AppName    string
	AppVersion string
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	CloudflareBypass  bool
	Headers           map[string]string
}

// Response is the result of a successful fetch.
type Response struct {
	Body       []byte
	Cookies    []*http.Cookie
	StatusCode int
	// URL is the final URL after redirects.
	URL string
}

// Client fetches pages for metadata adapters. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	jar     *SafeJar
	limiter *rate.Limiter
	agents  []string
	next    atomic.Uint64
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	jar, err := NewSafeJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	agents := make([]string, 0, len(opts.UserAgents))
	for _, ua := range opts.UserAgents {
		if ua != "" {
			agents = append(agents, ua)
		}
	}
	if len(agents) == 0 {
		agents = append(agents, UserAgent(opts.AppName, opts.AppVersion))
	}

	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	for k, v := range opts.Headers {
		httpClient.SetHeader(k, v)
	}

	c := &Client{
		http:   httpClient,
		jar:    jar,
		agents: agents,
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	httpClient.OnBeforeRequest(c.onBeforeRequest)
	httpClient.OnAfterResponse(c.onAfterResponse)

	return c, nil
}

// Jar exposes the shared cookie jar.
func (c *Client) Jar() *SafeJar {
	return c.jar
}

// Resty returns the underlying client for adapters that speak JSON APIs
// directly. Requests made through it share the jar, agent rotation and
// rate limiter.
func (c *Client) Resty() *resty.Client {
	return c.http
}

func (c *Client) nextAgent() string {
	n := c.next.Add(1) - 1
	return c.agents[n%uint64(len(c.agents))]
}

func (c *Client) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	if req.Header.Get("User-Agent") == "" {
		req.SetHeader("User-Agent", c.nextAgent())
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return err
		}
	}
	logging.Debug("start request", "method", req.Method, "url", req.URL)
	return nil
}

func (c *Client) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	logging.Debug("request finished",
		"method", res.Request.Method,
		"url", res.Request.URL,
		"status", res.StatusCode(),
		"duration", res.Time())
	return nil
}

// Fetch performs a GET request, attaching cookies in addition to whatever the
// jar already holds. Any non-2xx status is returned as a *DownloadError.
// Fetch never retries; see FetchRetry.
func (c *Client) Fetch(ctx context.Context, rawURL string, cookies []*http.Cookie) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return nil, &DownloadError{URL: rawURL, Reason: "invalid url", Err: err}
	}

	ctx, span := tracing.StartSpan(ctx, "download.Fetch",
		tracing.WithAttributes(
			attribute.String("http.url", rawURL),
			attribute.String("http.host", u.Host),
		))
	defer span.End()

	start := time.Now()
	req := c.http.R().SetContext(ctx)
	if len(cookies) > 0 {
		req.SetCookies(cookies)
	}

	res, err := req.Get(rawURL)
	if err != nil {
		metrics.RecordHTTP(u.Host, 0, start)
		derr := &DownloadError{URL: rawURL, Reason: "request failed", Err: err}
		if ctxErr := ctx.Err(); ctxErr != nil {
			derr.Err = ctxErr
			derr.Reason = "cancelled"
		}
		tracing.RecordError(span, derr)
		logging.Warn("request failed", "url", rawURL, "error", err)
		return nil, derr
	}

	status := res.StatusCode()
	metrics.RecordHTTP(u.Host, status, start)
	tracing.AddSpanAttributes(span, attribute.Int("http.status_code", status))

	if status < 200 || status > 299 {
		derr := &DownloadError{URL: rawURL, Status: status, Reason: http.StatusText(status)}
		tracing.RecordError(span, derr)
		logging.Debug("non-success status", "url", rawURL, "status", status)
		return nil, derr
	}
	tracing.SetSpanOK(span)

	finalURL := rawURL
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	return &Response{
		Body:       res.Body(),
		Cookies:    res.Cookies(),
		StatusCode: status,
		URL:        finalURL,
	}, nil
}

// FetchJSON fetches rawURL and decodes the body into out.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, out any) error {
	res, err := c.Fetch(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
