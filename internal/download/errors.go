package download

import (
	"errors"
	"fmt"
	"net/http"
)

// DownloadError reports a network failure or a non-2xx HTTP response.
// Status is zero when no response was received.
type DownloadError struct {
	URL    string
	Status int
	Reason string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: HTTP %d %s", e.URL, e.Status, e.Reason)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func statusOf(err error) (int, bool) {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Status, true
	}
	return 0, false
}

// IsBlocked reports whether the provider refused the request outright
// (403 Forbidden or 429 Too Many Requests).
func IsBlocked(err error) bool {
	status, ok := statusOf(err)
	return ok && (status == http.StatusForbidden || status == http.StatusTooManyRequests)
}

// IsNotFound reports whether the provider answered 404 or 410.
func IsNotFound(err error) bool {
	status, ok := statusOf(err)
	return ok && (status == http.StatusNotFound || status == http.StatusGone)
}

// IsTransient reports whether retrying the request could succeed: network
// failures and 5xx responses. Cancellation is never transient.
func IsTransient(err error) bool {
	var de *DownloadError
	if !errors.As(err, &de) {
		return false
	}
	if de.Status == 0 {
		return de.Err != nil && !isContextErr(de.Err)
	}
	return de.Status >= 500
}
