package download

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// SafeJar is a cookie jar shared by every request of a downloader. Session
// cookies set by concurrent responses are serialized through a mutex.
type SafeJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

// NewSafeJar creates an empty jar scoped by the public suffix list.
func NewSafeJar() (*SafeJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &SafeJar{jar: jar}, nil
}

// SetCookies implements http.CookieJar.
func (j *SafeJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *SafeJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}
