package helpcenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbsync/internal/logger"
)

const (
	// maxRetryAfter caps how long a Retry-After header can stall a page.
	maxRetryAfter = 60 * time.Second

	// baseBackoff is the first retry delay when the server gives none.
	baseBackoff = time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// articlesPage is one page of the articles endpoint.
type articlesPage struct {
	Articles  []apiArticle `json:"articles"`
	NextPage  *string      `json:"next_page"`
	Page      int          `json:"page"`
	PageCount int          `json:"page_count"`
	Count     int          `json:"count"`
}

// apiArticle is an article as the API returns it.
type apiArticle struct {
	ID        int64  `json:"id"`
	HTMLURL   string `json:"html_url"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Locale    string `json:"locale"`
	UpdatedAt string `json:"updated_at"`
	Draft     bool   `json:"draft"`
}

// client performs throttled, retried page requests.
type client struct {
	http       *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

func newClient(httpClient *http.Client, cfg Config) *client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		sleep:      sleepContext,
	}
}

// getPage fetches and decodes one page, retrying on 429 and 5xx.
func (c *client) getPage(ctx context.Context, pageURL string) (*articlesPage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt, lastErr)
			logger.Warn("Retrying %s in %s (attempt %d): %v", pageURL, wait, attempt+1, lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		page, err := c.doGet(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		lastErr = err

		var apiErr *APIError
		var rlErr *RateLimitError
		switch {
		case errors.As(err, &rlErr):
		case errors.As(err, &apiErr) && apiErr.Retryable():
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *client) doGet(ctx context.Context, pageURL string) (*articlesPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), URL: pageURL}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, URL: pageURL, Message: string(body)}
	}

	var page articlesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", pageURL, err)
	}
	return &page, nil
}

// backoff returns the delay before retry attempt n.
func backoff(attempt int, lastErr error) time.Duration {
	var rlErr *RateLimitError
	if errors.As(lastErr, &rlErr) && rlErr.RetryAfter > 0 {
		return rlErr.RetryAfter
	}
	d := baseBackoff << (attempt - 1)
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
