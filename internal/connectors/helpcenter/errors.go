package helpcenter

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// Help centre errors.
var (
	// ErrInvalidBaseURL indicates the configured base URL is unusable.
	ErrInvalidBaseURL = errors.New("helpcenter: invalid base URL")

	// ErrPaginationLoop indicates next_page pointed back at a page already fetched.
	ErrPaginationLoop = errors.New("helpcenter: pagination loop")

	// ErrTooManyPages indicates pagination exceeded the configured bound.
	ErrTooManyPages = errors.New("helpcenter: too many pages")
)

// APIError represents a non-success response from the help centre.
type APIError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("helpcenter: API error %d (URL: %s)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("helpcenter: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// RateLimitError is returned when the API keeps answering 429.
type RateLimitError struct {
	RetryAfter time.Duration
	URL        string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("helpcenter: rate limited, retry after %s (URL: %s)", e.RetryAfter, e.URL)
}

func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}
