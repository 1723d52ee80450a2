package download

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ryanm101/gamemeta/internal/logging"
)

// RetryPolicy bounds the retries of transient failures.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns three tries with exponential backoff from 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// FetchRetry is Fetch with transient failures (5xx, network errors) retried
// under policy. Blocked, not-found and cancelled requests fail immediately.
func (c *Client) FetchRetry(ctx context.Context, rawURL string, policy RetryPolicy) (*Response, error) {
	tries := policy.MaxTries
	if tries == 0 {
		tries = 1
	}

	return backoff.Retry(ctx, func() (*Response, error) {
		res, err := c.Fetch(ctx, rawURL, nil)
		if err != nil && !IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logging.Warn("retrying request", "url", rawURL, "error", err, "wait", wait)
		}),
	)
}
