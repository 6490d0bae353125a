// Package scraper fetches article pages and extracts a title and body. It
// retries transient failures with exponential backoff and degrades through a
// cascade of extraction heuristics rather than failing hard on messy HTML.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Status is the tri-state fetch outcome.
type Status string

// Fetch outcomes. A partial fetch means the request succeeded but no title
// was found; downstream this is recorded as a failed article, since a usable
// result requires a title.
const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result carries the outcome of one fetch.
type Result struct {
	URL      string
	Title    string
	Content  string
	Status   Status
	Error    string
	Attempts int
}

// Config controls fetch behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
}

// Scraper is the fetch orchestrator. Safe for concurrent use: every attempt
// runs on a fresh client so workers never share cookies or sessions.
type Scraper struct {
	cfg       Config
	logger    *zap.Logger
	newClient func() *http.Client
	sleep     func(time.Duration)
}

// New builds a Scraper with the given config, applying defaults for unset
// fields (3 attempts, 10s timeout).
func New(cfg Config, logger *zap.Logger) *Scraper {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &Scraper{
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
	s.newClient = func() *http.Client {
		// Cookie jar per attempt; some sites set session cookies on the
		// anti-bot challenge and expect them back on the real page.
		jar, _ := cookiejar.New(nil)
		return &http.Client{Timeout: cfg.Timeout, Jar: jar}
	}
	return s
}

// Fetch retrieves the URL and extracts title and content. Retries use
// exponential backoff (2^attempt seconds); HTTP 403 and transient network
// errors are retryable, any other non-200 status is terminal.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL, Status: StatusFailed}

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt + 1
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			s.logger.Info("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait))
			s.sleep(wait)
		}

		body, contentType, status, err := s.attempt(ctx, rawURL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				result.Error = "canceled"
				return result
			}
			if attempt < s.cfg.MaxAttempts-1 {
				s.logger.Warn("fetch attempt failed",
					zap.String("url", rawURL), zap.Int("attempt", attempt+1), zap.Error(err))
				continue
			}
			result.Error = classifyNetError(err)
			s.logger.Error("fetch failed", zap.String("url", rawURL), zap.Error(err))
			return result
		}

		if status == http.StatusForbidden && attempt < s.cfg.MaxAttempts-1 {
			s.logger.Warn("fetch blocked with 403, retrying",
				zap.String("url", rawURL), zap.Int("attempt", attempt+1))
			continue
		}
		if status != http.StatusOK {
			result.Error = fmt.Sprintf("HTTP %d", status)
			s.logger.Warn("fetch rejected",
				zap.String("url", rawURL), zap.Int("status", status))
			return result
		}

		html := decodeHTML(body, contentType)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			result.Error = fmt.Sprintf("parse html: %v", err)
			return result
		}

		result.Title = ExtractTitle(doc)
		result.Content = ExtractContent(doc)
		if result.Title != "" {
			result.Status = StatusSuccess
			s.logger.Info("scraped article",
				zap.String("url", rawURL), zap.String("title", snippet(result.Title)))
		} else {
			result.Status = StatusPartial
			result.Error = "no title found"
			s.logger.Warn("partial scrape, no title found", zap.String("url", rawURL))
		}
		return result
	}

	result.Error = "max attempts exceeded"
	return result
}

// attempt performs one HTTP request on a fresh client with browser-like
// headers and returns the raw body, content type and status code.
func (s *Scraper) attempt(ctx context.Context, rawURL string) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := s.newClient().Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", 0, fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// decodeHTML converts response bytes to a UTF-8 string. The declared charset
// is trusted unless it is absent or the legacy Latin-1 default, in which case
// the bytes are sniffed. Decoding never fails; the worst case is returning
// the raw bytes as-is.
func decodeHTML(body []byte, contentType string) string {
	declared := headerCharset(contentType)
	var enc encoding.Encoding
	if declared != "" && !strings.EqualFold(declared, "iso-8859-1") && !strings.EqualFold(declared, "latin-1") {
		if e, err := htmlindex.Get(declared); err == nil {
			enc = e
		}
	}
	if enc == nil {
		enc, _, _ = charset.DetermineEncoding(body, "")
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

func headerCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func classifyNetError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timeout"
	}
	return fmt.Sprintf("connection error: %v", err)
}

func snippet(s string) string {
	const max = 50
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
