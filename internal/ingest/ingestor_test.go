package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelake/internal/types"
)

type recordingStore struct {
	mu   sync.Mutex
	docs []types.Document
	err  error
}

func (s *recordingStore) UpsertBatch(_ context.Context, docs []types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, docs...)
	return nil
}

func (s *recordingStore) sources() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range s.docs {
		counts[d.Metadata["source"].(string)]++
	}
	return counts
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDirStoresSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guide.md", "# Guide\n\nSome documentation text.")
	writeFile(t, dir, "api/client.py", "def connect():\n    pass\n")
	writeFile(t, dir, "logo.png", "not a doc")

	store := &recordingStore{}
	ing := NewIngestor(store, 1000, 100, nil)

	n, err := ing.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts := store.sources()
	assert.Equal(t, 1, counts["guide.md"])
	assert.Equal(t, 1, counts[filepath.Join("api", "client.py")])
	assert.NotContains(t, counts, "logo.png")
}

func TestIngestDirChunksLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", strings.Repeat("section text\n\n", 200))

	store := &recordingStore{}
	ing := NewIngestor(store, 200, 20, nil)

	n, err := ing.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Len(t, store.docs, n)

	// Chunk index metadata counts up from zero.
	assert.Equal(t, 0, store.docs[0].Metadata["chunk"])
}

func TestIngestDirSkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "visible")
	writeFile(t, dir, ".git/config.md", "hidden")

	store := &recordingStore{}
	ing := NewIngestor(store, 1000, 0, nil)

	n, err := ing.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, store.sources(), "readme.md")
}

func TestIngestDirMissingDirectory(t *testing.T) {
	ing := NewIngestor(&recordingStore{}, 1000, 0, nil)
	_, err := ing.IngestDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestIngestDirNotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.md", "content")

	ing := NewIngestor(&recordingStore{}, 1000, 0, nil)
	_, err := ing.IngestDir(context.Background(), filepath.Join(dir, "file.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestIngestDirStoreFailureAborts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "content")

	store := &recordingStore{err: assert.AnError}
	ing := NewIngestor(store, 1000, 0, nil)

	_, err := ing.IngestDir(context.Background(), dir)
	assert.Error(t, err)
}

func TestIngestDirEmptyFilesProduceNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.md", "")
	writeFile(t, dir, "blank.txt", "   \n\n")

	store := &recordingStore{}
	ing := NewIngestor(store, 1000, 0, nil)

	n, err := ing.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.docs)
}
