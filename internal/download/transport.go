package download

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/metrics"
	"github.com/ryanm101/gamemeta/internal/tracing"
)

// Transport returns a round tripper for API clients that build their own
// http.Client. Requests get the downloader's User-Agent rotation, rate
// limiter, metrics and tracing, and network failures surface as
// *DownloadError. A nil next uses the downloader's own transport. Status
// codes are left to the caller.
func (c *Client) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = c.http.GetClient().Transport
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &clientTransport{client: c, next: next}
}

type clientTransport struct {
	client *Client
	next   http.RoundTripper
}

func (t *clientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := tracing.StartSpan(req.Context(), "download.RoundTrip",
		tracing.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("http.host", req.URL.Host),
		))
	defer span.End()

	r := req.Clone(ctx)
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.client.nextAgent())
	}
	if t.client.limiter != nil {
		if err := t.client.limiter.Wait(ctx); err != nil {
			derr := &DownloadError{URL: req.URL.String(), Reason: "cancelled", Err: err}
			tracing.RecordError(span, derr)
			return nil, derr
		}
	}

	start := time.Now()
	res, err := t.next.RoundTrip(r)
	if err != nil {
		metrics.RecordHTTP(req.URL.Host, 0, start)
		derr := &DownloadError{URL: req.URL.String(), Reason: "request failed", Err: err}
		tracing.RecordError(span, derr)
		logging.Warn("request failed", "url", req.URL.String(), "error", err)
		return nil, derr
	}

	metrics.RecordHTTP(req.URL.Host, res.StatusCode, start)
	tracing.AddSpanAttributes(span, attribute.Int("http.status_code", res.StatusCode))
	logging.Debug("request finished", "method", req.Method, "url", req.URL.String(), "status", res.StatusCode, "duration", time.Since(start))
	return res, nil
}
