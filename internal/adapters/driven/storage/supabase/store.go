// Package supabase provides a MetadataStore backed by a Supabase table,
// accessed through its PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MetadataStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultTable    = "scraped_articles"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 1000

	restPath = "/rest/v1/"
	columns  = "id,hash,updated_at,file_id"
)

// Config holds configuration for the Supabase store.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co (required).
	URL string

	// Key is the service or anon key (required).
	Key string

	// Table holds one row per document (default: scraped_articles).
	Table string

	// PageSize bounds rows per ListAll request (default: 1000).
	PageSize int

	// Timeout is the HTTP client timeout (default: 30s).
	Timeout time.Duration
}

// Store reads and writes document records in a Supabase table with
// columns id (key), hash (fingerprint), updated_at and file_id (content id).
type Store struct {
	client   *http.Client
	endpoint string
	key      string
	pageSize int
}

// row is the table's wire format.
type row struct {
	ID        rowID   `json:"id"`
	Hash      string  `json:"hash"`
	UpdatedAt string  `json:"updated_at"`
	FileID    *string `json:"file_id"`
}

// NewStore creates a Supabase metadata store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase: URL is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("supabase: key is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Store{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.URL, "/") + restPath + url.PathEscape(cfg.Table),
		key:      cfg.Key,
		pageSize: cfg.PageSize,
	}, nil
}

// ListAll reads every row, one Range page at a time.
func (s *Store) ListAll(ctx context.Context) ([]domain.DocumentRecord, error) {
	var records []domain.DocumentRecord
	for offset := 0; ; offset += s.pageSize {
		q := url.Values{}
		q.Set("select", columns)
		q.Set("order", "id.asc")

		var rows []row
		err := s.do(ctx, http.MethodGet, q, nil, func(req *http.Request) {
			req.Header.Set("Range-Unit", "items")
			req.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+s.pageSize-1))
		}, &rows)
		if err != nil {
			return nil, err
		}

		for _, r := range rows {
			rec, err := r.record()
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if len(rows) < s.pageSize {
			return records, nil
		}
	}
}

// Get retrieves the record for key.
func (s *Store) Get(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	q := url.Values{}
	q.Set("select", columns)
	q.Set("id", "eq."+key.String())

	var rows []row
	if err := s.do(ctx, http.MethodGet, q, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	rec, err := rows[0].record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert creates a row. A duplicate key is reported by PostgREST as 409.
func (s *Store) Insert(ctx context.Context, rec domain.DocumentRecord) error {
	if rec.Key == "" {
		return domain.ErrInvalidInput
	}
	err := s.do(ctx, http.MethodPost, nil, toRow(rec), func(req *http.Request) {
		req.Header.Set("Prefer", "return=minimal")
	}, nil)
	if isStatus(err, http.StatusConflict) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Update overwrites hash, updated_at and file_id of an existing row.
func (s *Store) Update(ctx context.Context, rec domain.DocumentRecord) error {
	q := url.Values{}
	q.Set("id", "eq."+rec.Key.String())

	var rows []row
	err := s.do(ctx, http.MethodPatch, q, toRow(rec), func(req *http.Request) {
		req.Header.Set("Prefer", "return=representation")
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a row and returns it.
func (s *Store) Delete(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	q := url.Values{}
	q.Set("id", "eq."+key.String())

	var rows []row
	err := s.do(ctx, http.MethodDelete, q, nil, func(req *http.Request) {
		req.Header.Set("Prefer", "return=representation")
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	rec, err := rows[0].record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// statusError is a non-success PostgREST response.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.status, e.message)
}

func (e *statusError) Unwrap() error {
	return domain.ErrMetadataStore
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (s *Store) do(
	ctx context.Context,
	method string,
	query url.Values,
	body any,
	prepare func(*http.Request),
	out any,
) error {
	target := s.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prepare != nil {
		prepare(req)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %w", domain.ErrMetadataStore, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrMetadataStore, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 416 means the Range starts past the last row.
		if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && out != nil {
			return nil
		}
		return &statusError{status: resp.StatusCode, message: errorMessage(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrMetadataStore, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + " " + e.Message
		}
		return e.Message
	}
	return strings.TrimSpace(string(body))
}

// rowID accepts both numeric and text id columns.
type rowID string

func (id *rowID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = rowID(n.String())
	return nil
}

func toRow(rec domain.DocumentRecord) row {
	r := row{
		ID:        rowID(rec.Key),
		Hash:      string(rec.Fingerprint),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.ContentID != "" {
		id := rec.ContentID
		r.FileID = &id
	}
	return r
}

func (r row) record() (domain.DocumentRecord, error) {
	if r.ID == "" {
		return domain.DocumentRecord{}, fmt.Errorf("%w: row without id", domain.ErrMetadataStore)
	}
	rec := domain.DocumentRecord{
		Key:         domain.DocumentKey(r.ID),
		Fingerprint: domain.Fingerprint(r.Hash),
	}
	if r.FileID != nil {
		rec.ContentID = *r.FileID
	}
	if r.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
		if err != nil {
			return domain.DocumentRecord{}, fmt.Errorf("%w: row %s: updated_at %q: %w", domain.ErrMetadataStore, r.ID, r.UpdatedAt, err)
		}
		rec.UpdatedAt = t.UTC()
	}
	return rec, nil
}
