package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	return s, dir
}

func TestSaveCreatesIntermediateDirectories(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	layout := domain.StorageLayout{EngineID: "lighton", Filename: "scan.pdf"}
	require.NoError(t, s.Save(ctx, layout.RawPath(), []byte("raw bytes")))

	data, err := os.ReadFile(filepath.Join(dir, "raw", "lighton", "scan.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), data)
}

func TestSaveOverwrites(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "output/lighton/doc.md", []byte("first")))
	require.NoError(t, s.Save(ctx, "output/lighton/doc.md", []byte("second")))

	data, err := os.ReadFile(filepath.Join(dir, "output", "lighton", "doc.md"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), "raw/e/f.pdf", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(dir, "raw", "e"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f.pdf", entries[0].Name())
}

func TestSaveRejectsEscapingPath(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.Save(context.Background(), "../outside.txt", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestExists(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "raw/e/missing.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "raw/e/present.pdf", []byte("x")))
	ok, err = s.Exists(ctx, "raw/e/present.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPing(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))

	// The probe must not leave anything behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "raw/e/old.pdf", []byte("old")))
	require.NoError(t, s.Save(ctx, "output/e/new.md", []byte("new")))

	old := filepath.Join(dir, "raw", "e", "old.pdf")
	past := time.Now().Add(-100 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	removed, err := s.Sweep(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))

	ok, err := s.Exists(ctx, "output/e/new.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepPrunesEmptyDirectories(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "raw/e/old.pdf", []byte("old")))
	old := filepath.Join(dir, "raw", "e", "old.pdf")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	_, err := s.Sweep(ctx, 30*time.Minute)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "raw", "e"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("", nil)
	assert.ErrorIs(t, err, domain.ErrStorage)
}
