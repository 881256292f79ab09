package helpcenter

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the help centre the corpus is fetched from.
	DefaultBaseURL = "https://support.optisigns.com"

	// DefaultPerPage is the largest page size the API accepts.
	DefaultPerPage = 100

	// DefaultRequestsPerSecond throttles page requests.
	DefaultRequestsPerSecond = 2.0

	// DefaultMaxPages stops runaway pagination.
	DefaultMaxPages = 1000

	// DefaultMaxRetries is the number of retries on 429 and 5xx responses.
	DefaultMaxRetries = 3

	// DefaultTimeout bounds each page request.
	DefaultTimeout = 30 * time.Second

	articlesPath = "/api/v2/help_center/articles.json"
)

// Config holds help centre connector configuration.
type Config struct {
	// BaseURL is the scheme and host of the help centre.
	BaseURL string

	// Locale restricts the fetch to one locale (e.g. "en-us"). Empty fetches all.
	Locale string

	// PerPage is the page size requested.
	PerPage int

	// RequestsPerSecond throttles page requests. Zero uses the default.
	RequestsPerSecond float64

	// MaxPages bounds pagination. Zero uses the default.
	MaxPages int

	// MaxRetries bounds retries of a single page. Negative disables retries.
	MaxRetries int

	// Timeout bounds each page request.
	Timeout time.Duration

	// IncludeDrafts keeps unpublished articles.
	IncludeDrafts bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		PerPage:           DefaultPerPage,
		RequestsPerSecond: DefaultRequestsPerSecond,
		MaxPages:          DefaultMaxPages,
		MaxRetries:        DefaultMaxRetries,
		Timeout:           DefaultTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PerPage <= 0 || c.PerPage > DefaultPerPage {
		c.PerPage = DefaultPerPage
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// firstPageURL builds the articles URL for page one.
func (c Config) firstPageURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(c.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}

	path := articlesPath
	if c.Locale != "" {
		path = "/api/v2/help_center/" + url.PathEscape(strings.ToLower(c.Locale)) + "/articles.json"
	}
	base.Path = strings.TrimRight(base.Path, "/") + path

	q := url.Values{}
	q.Set("per_page", fmt.Sprint(c.PerPage))
	base.RawQuery = q.Encode()
	return base.String(), nil
}
