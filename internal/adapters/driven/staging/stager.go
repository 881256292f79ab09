package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure FileStager implements the interface.
var _ driven.ContentStager = (*FileStager)(nil)

// FileStager writes each document to its own file inside a per-run
// temporary directory. Handles are file paths.
type FileStager struct {
	baseDir string

	mu     sync.Mutex
	dir    string
	byKey  map[domain.DocumentKey]string
	byName map[string]domain.DocumentKey
}

// NewFileStager creates a stager rooted at baseDir.
// An empty baseDir uses the system temp directory.
func NewFileStager(baseDir string) *FileStager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &FileStager{
		baseDir: baseDir,
		byKey:   make(map[domain.DocumentKey]string),
		byName:  make(map[string]domain.DocumentKey),
	}
}

// Dir returns the current run directory, or "" before the first Stage.
func (s *FileStager) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Stage writes doc.Content to <name> in the run directory. A document
// staged again under the same key overwrites its file; a different key
// with a clashing name gets a numeric suffix.
func (s *FileStager) Stage(ctx context.Context, doc *domain.CanonicalDocument) (string, error) {
	if doc == nil || doc.Key == "" {
		return "", domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir == "" {
		if err := os.MkdirAll(s.baseDir, 0700); err != nil {
			return "", fmt.Errorf("creating staging directory: %w", err)
		}
		dir, err := os.MkdirTemp(s.baseDir, "kbsync-run-*")
		if err != nil {
			return "", fmt.Errorf("creating run directory: %w", err)
		}
		s.dir = dir
	}

	path, ok := s.byKey[doc.Key]
	if !ok {
		name := s.uniqueName(fileName(doc), doc.Key)
		path = filepath.Join(s.dir, name)
		s.byKey[doc.Key] = path
		s.byName[name] = doc.Key
	}

	if err := os.WriteFile(path, doc.Content, 0600); err != nil {
		return "", fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// Open returns a reader over a staged file.
func (s *FileStager) Open(handle string) (io.ReadCloser, error) {
	s.mu.Lock()
	dir := s.dir
	s.mu.Unlock()

	if dir == "" || !within(dir, handle) {
		return nil, fmt.Errorf("%w: %s is not staged", domain.ErrNotFound, handle)
	}
	f, err := os.Open(handle)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, handle)
		}
		return nil, err
	}
	return f, nil
}

// Release removes the run directory. The next Stage starts a fresh one.
func (s *FileStager) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.dir
	s.dir = ""
	s.byKey = make(map[domain.DocumentKey]string)
	s.byName = make(map[string]domain.DocumentKey)

	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

// uniqueName must be called with mu held.
func (s *FileStager) uniqueName(name string, key domain.DocumentKey) string {
	owner, taken := s.byName[name]
	if !taken || owner == key {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := stem + "_" + strconv.Itoa(i) + ext
		if _, taken := s.byName[candidate]; !taken {
			return candidate
		}
	}
}

// fileName keeps only the base name so documents cannot escape the run directory.
func fileName(doc *domain.CanonicalDocument) string {
	name := filepath.Base(filepath.Clean("/" + doc.Name))
	if name == "/" || name == "." || name == "" {
		name = doc.Key.String() + ".md"
		name = filepath.Base(filepath.Clean("/" + name))
	}
	return name
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
