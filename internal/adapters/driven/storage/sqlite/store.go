package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "kbsync.db"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-based storage that provides access to
// the metadata and run stores through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.kbsync/data/kbsync.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".kbsync", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode so reads do not block the writer
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// MetadataStore returns a MetadataStore interface backed by this store.
func (s *Store) MetadataStore() driven.MetadataStore {
	return &metadataStore{store: s}
}

// RunStore returns a RunStore interface backed by this store.
func (s *Store) RunStore() driven.RunStore {
	return &runStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Metadata Store ====================

// metadataStore implements driven.MetadataStore.
type metadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*metadataStore)(nil)

// ListAll returns every record ordered by key.
func (s *metadataStore) ListAll(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT key, fingerprint, updated_at, content_id
		FROM documents ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return records, nil
}

// Get retrieves the record for key.
func (s *metadataStore) Get(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT key, fingerprint, updated_at, content_id
		FROM documents WHERE key = ?
	`, string(key))

	return scanRecord(row)
}

// Insert creates a record. An existing key is left untouched.
func (s *metadataStore) Insert(ctx context.Context, rec domain.DocumentRecord) error {
	if rec.Key == "" {
		return domain.ErrInvalidInput
	}
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (key, fingerprint, updated_at, content_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, string(rec.Key), string(rec.Fingerprint), formatTime(rec.UpdatedAt), nullString(rec.ContentID))
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return expectOneRow(res, domain.ErrAlreadyExists)
}

// Update overwrites the fingerprint, timestamp and content id of a record.
func (s *metadataStore) Update(ctx context.Context, rec domain.DocumentRecord) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET fingerprint = ?, updated_at = ?, content_id = ?
		WHERE key = ?
	`, string(rec.Fingerprint), formatTime(rec.UpdatedAt), nullString(rec.ContentID), string(rec.Key))
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	return expectOneRow(res, domain.ErrNotFound)
}

// Delete removes a record and returns what it held.
func (s *metadataStore) Delete(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		DELETE FROM documents WHERE key = ?
		RETURNING key, fingerprint, updated_at, content_id
	`, string(key))

	return scanRecord(row)
}

// ==================== Run Store ====================

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// SaveRun stores or replaces a run summary.
func (s *runStore) SaveRun(ctx context.Context, run domain.RunSummary) error {
	if run.ID == "" {
		return domain.ErrInvalidInput
	}
	summaryJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshalling run summary: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, dry_run, summary, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			dry_run = excluded.dry_run,
			summary = excluded.summary
	`, run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.DryRun, string(summaryJSON))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run.
func (s *runStore) LastRun(ctx context.Context) (*domain.RunSummary, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first. Runs started at the same
// instant are ordered by save order. A limit <= 0 returns all.
func (s *runStore) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	query := "SELECT summary FROM runs ORDER BY started_at DESC, seq DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		var run domain.RunSummary
		if err := json.Unmarshal([]byte(summaryJSON), &run); err != nil {
			return nil, fmt.Errorf("unmarshalling run summary: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// ==================== Helpers ====================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.DocumentRecord, error) {
	var (
		key, fingerprint, updatedAt string
		contentID                   sql.NullString
	)
	if err := row.Scan(&key, &fingerprint, &updatedAt, &contentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at for %s: %w", key, err)
	}

	return &domain.DocumentRecord{
		Key:         domain.DocumentKey(key),
		Fingerprint: domain.Fingerprint(fingerprint),
		UpdatedAt:   t,
		ContentID:   contentID.String,
	}, nil
}

func expectOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
