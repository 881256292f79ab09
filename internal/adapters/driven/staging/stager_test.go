package staging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

func readHandle(t *testing.T, s *FileStager, handle string) string {
	t.Helper()
	rc, err := s.Open(handle)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestFileStager_StageAndOpen(t *testing.T) {
	s := NewFileStager(t.TempDir())
	ctx := context.Background()

	handle, err := s.Stage(ctx, &domain.CanonicalDocument{
		Key:     "360001",
		Name:    "getting_started.md",
		Content: []byte("# Getting started\n\nhello"),
	})
	require.NoError(t, err)

	assert.Equal(t, "getting_started.md", filepath.Base(handle))
	assert.Equal(t, s.Dir(), filepath.Dir(handle))
	assert.Equal(t, "# Getting started\n\nhello", readHandle(t, s, handle))
}

func TestFileStager_RestageSameKeyOverwrites(t *testing.T) {
	s := NewFileStager(t.TempDir())
	ctx := context.Background()

	first, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "A", Name: "a.md", Content: []byte("v1")})
	require.NoError(t, err)
	second, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "A", Name: "a.md", Content: []byte("v2")})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "v2", readHandle(t, s, second))
}

func TestFileStager_NameCollisionGetsSuffix(t *testing.T) {
	s := NewFileStager(t.TempDir())
	ctx := context.Background()

	a, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "1", Name: "setup.md", Content: []byte("one")})
	require.NoError(t, err)
	b, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "2", Name: "setup.md", Content: []byte("two")})
	require.NoError(t, err)
	c, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "3", Name: "setup.md", Content: []byte("three")})
	require.NoError(t, err)

	assert.Equal(t, "setup.md", filepath.Base(a))
	assert.Equal(t, "setup_2.md", filepath.Base(b))
	assert.Equal(t, "setup_3.md", filepath.Base(c))
	assert.Equal(t, "one", readHandle(t, s, a))
	assert.Equal(t, "two", readHandle(t, s, b))
}

func TestFileStager_NamesCannotEscape(t *testing.T) {
	s := NewFileStager(t.TempDir())

	handle, err := s.Stage(context.Background(), &domain.CanonicalDocument{
		Key: "x", Name: "../../outside.md", Content: []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, s.Dir(), filepath.Dir(handle))
	assert.Equal(t, "outside.md", filepath.Base(handle))
}

func TestFileStager_EmptyNameFallsBackToKey(t *testing.T) {
	s := NewFileStager(t.TempDir())

	handle, err := s.Stage(context.Background(), &domain.CanonicalDocument{Key: "42", Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "42.md", filepath.Base(handle))
}

func TestFileStager_InvalidInput(t *testing.T) {
	s := NewFileStager(t.TempDir())

	_, err := s.Stage(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Stage(context.Background(), &domain.CanonicalDocument{Name: "a.md"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFileStager_OpenRejectsForeignPaths(t *testing.T) {
	s := NewFileStager(t.TempDir())
	_, err := s.Stage(context.Background(), &domain.CanonicalDocument{Key: "A", Content: []byte("x")})
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "other.md")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0600))

	_, err = s.Open(outside)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Open(filepath.Join(s.Dir(), "missing.md"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStager_ReleaseRemovesEverything(t *testing.T) {
	base := t.TempDir()
	s := NewFileStager(base)
	ctx := context.Background()

	handle, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "A", Content: []byte("x")})
	require.NoError(t, err)
	dir := s.Dir()

	require.NoError(t, s.Release())
	assert.Empty(t, s.Dir())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	_, err = s.Open(handle)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Safe to call twice, and staging starts a new run directory.
	require.NoError(t, s.Release())
	next, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "A", Content: []byte("y")})
	require.NoError(t, err)
	assert.NotEqual(t, dir, filepath.Dir(next))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStager_CancelledContext(t *testing.T) {
	s := NewFileStager(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Stage(ctx, &domain.CanonicalDocument{Key: "A"})
	assert.ErrorIs(t, err, context.Canceled)
}
