package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const articlePage = `<html><head><title>Big Story | Example News</title></head>
<body><article><h1>Big Story Headline</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor
incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis.</p>
</article></body></html>`

// newTestScraper returns a scraper with recorded (not executed) sleeps.
func newTestScraper(t *testing.T, cfg Config) (*Scraper, *[]time.Duration) {
	t.Helper()
	if cfg.UserAgent == "" {
		cfg.UserAgent = "test-agent"
	}
	s := New(cfg, zap.NewNop())
	var sleeps []time.Duration
	s.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return s, &sleeps
}

func TestFetchSucceedsAfter403Retries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	s, sleeps := newTestScraper(t, Config{})
	res := s.Fetch(context.Background(), srv.URL)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "Big Story Headline", res.Title)
	assert.NotEmpty(t, res.Content)
	// Exponential backoff: 2s before the second attempt, 4s before the third.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch403OnFinalAttemptFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := newTestScraper(t, Config{})
	res := s.Fetch(context.Background(), srv.URL)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "HTTP 403", res.Error)
}

func TestFetchNonRetryableStatusIsTerminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s, sleeps := newTestScraper(t, Config{})
	res := s.Fetch(context.Background(), srv.URL)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "HTTP 404", res.Error)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, *sleeps)
	assert.EqualValues(t, 1, calls.Load())
}

// timeoutErr satisfies net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type erroringTransport struct {
	calls *atomic.Int32
	err   error
}

func (tr erroringTransport) RoundTrip(*http.Request) (*http.Response, error) {
	tr.calls.Add(1)
	return nil, tr.err
}

func TestFetchTimeoutExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, sleeps := newTestScraper(t, Config{})
	s.newClient = func() *http.Client {
		return &http.Client{Transport: erroringTransport{calls: &calls, err: timeoutErr{}}}
	}

	res := s.Fetch(context.Background(), "https://unreachable.example.com/story")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "request timeout", res.Error)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestFetchConnectionErrorReported(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, _ := newTestScraper(t, Config{MaxAttempts: 2})
	s.newClient = func() *http.Client {
		return &http.Client{Transport: erroringTransport{calls: &calls, err: errors.New("connection refused")}}
	}

	res := s.Fetch(context.Background(), "https://unreachable.example.com/story")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, res.Error, "connection error")
}

func TestFetchPartialWhenNoTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>no headline here</p></body></html>`)
	}))
	defer srv.Close()

	s, _ := newTestScraper(t, Config{})
	res := s.Fetch(context.Background(), srv.URL)

	assert.Equal(t, StatusPartial, res.Status)
	assert.Empty(t, res.Title)
	assert.Equal(t, "no title found", res.Error)
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	s, _ := newTestScraper(t, Config{UserAgent: "Mozilla/5.0 test"})
	res := s.Fetch(context.Background(), srv.URL)

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Mozilla/5.0 test", gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestDecodeHTML(t *testing.T) {
	t.Parallel()

	t.Run("declared utf-8", func(t *testing.T) {
		t.Parallel()
		got := decodeHTML([]byte("caf\xc3\xa9"), "text/html; charset=utf-8")
		assert.Equal(t, "café", got)
	})

	t.Run("latin-1 declaration is sniffed instead", func(t *testing.T) {
		t.Parallel()
		// 0xE9 is é in Windows-1252, the sniffer's legacy default.
		got := decodeHTML([]byte("caf\xe9"), "text/html; charset=iso-8859-1")
		assert.Equal(t, "café", got)
	})

	t.Run("meta charset honored when header is silent", func(t *testing.T) {
		t.Parallel()
		body := []byte(`<html><head><meta charset="windows-1252"></head><body>caf` + "\xe9" + `</body></html>`)
		got := decodeHTML(body, "text/html")
		assert.Contains(t, got, "café")
	})
}
