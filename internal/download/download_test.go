package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "gamemeta/1.2.3 (+https://github.com/ryanm101/gamemeta)", UserAgent("gamemeta", "1.2.3"))
	assert.Equal(t, "tool", UserAgent("tool", ""))
	assert.Equal(t, "gamemeta", UserAgent("", ""))
}

func TestFetch_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{AppName: "gamemeta", AppVersion: "0.1.0"})
	res, err := c.Fetch(context.Background(), srv.URL+"/page", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(res.Body))
	assert.Equal(t, srv.URL+"/page", res.URL)
	assert.Equal(t, UserAgent("gamemeta", "0.1.0"), gotUA)
	require.Len(t, res.Cookies, 1)
	assert.Equal(t, "session", res.Cookies[0].Name)
}

func TestFetch_JarCarriesCookies(t *testing.T) {
	var second string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "42", Path: "/"})
			return
		}
		if ck, err := r.Cookie("sid"); err == nil {
			second = ck.Value
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	_, err := c.Fetch(context.Background(), srv.URL+"/login", nil)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), srv.URL+"/data", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", second)
}

func TestFetch_ExplicitCookies(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("consent"); err == nil {
			got = ck.Value
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	_, err := c.Fetch(context.Background(), srv.URL, []*http.Cookie{{Name: "consent", Value: "yes"}})
	require.NoError(t, err)
	assert.Equal(t, "yes", got)
}

func TestFetch_RotatesUserAgents(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("User-Agent"))
		mu.Unlock()
	}))
	defer srv.Close()

	c := newTestClient(t, Options{UserAgents: []string{"ua-1", "", "ua-2"}})
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), srv.URL, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"ua-1", "ua-2", "ua-1"}, seen)
}

func TestFetch_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		blocked   bool
		notFound  bool
		transient bool
	}{
		{"forbidden", http.StatusForbidden, true, false, false},
		{"too many requests", http.StatusTooManyRequests, true, false, false},
		{"not found", http.StatusNotFound, false, true, false},
		{"server error", http.StatusInternalServerError, false, false, true},
		{"bad gateway", http.StatusBadGateway, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t, Options{})
			res, err := c.Fetch(context.Background(), srv.URL, nil)
			require.Error(t, err)
			assert.Nil(t, res)

			var de *DownloadError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.status, de.Status)
			assert.Equal(t, srv.URL, de.URL)
			assert.Equal(t, tt.blocked, IsBlocked(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	c := newTestClient(t, Options{})
	_, err := c.Fetch(context.Background(), "not a url", nil)

	var de *DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "invalid url", de.Reason)
	assert.False(t, IsTransient(err))
}

func TestFetch_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, Options{})
	_, err := c.Fetch(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}

func TestFetch_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, Options{})
	_, err := c.Fetch(context.Background(), url, nil)
	require.Error(t, err)

	var de *DownloadError
	require.ErrorAs(t, err, &de)
	assert.Zero(t, de.Status)
	assert.True(t, IsTransient(err))
}

func TestFetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := newTestClient(t, Options{RequestsPerSecond: 0.001, Burst: 1})
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	// The bucket is empty so the second request has to wait on the limiter.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Fetch(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Astral Chain","year":2019}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	var out struct {
		Name string `json:"name"`
		Year int    `json:"year"`
	}
	require.NoError(t, c.FetchJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "Astral Chain", out.Name)
	assert.Equal(t, 2019, out.Year)
}

func TestFetchJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	var out map[string]any
	err := c.FetchJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}
