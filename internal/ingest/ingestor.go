package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codelake/internal/types"
)

// DocumentStore is the slice of the store the ingestor needs.
type DocumentStore interface {
	UpsertBatch(ctx context.Context, docs []types.Document) error
}

// Ingestor walks documentation trees, chunks files, and loads the chunks
// into the store.
type Ingestor struct {
	store        DocumentStore
	chunkSize    int
	chunkOverlap int
	workers      int
	logger       *zap.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(store DocumentStore, chunkSize, chunkOverlap int, logger *zap.Logger) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		workers:      4,
		logger:       logger,
	}
}

// IngestDir walks dir and ingests every supported file, a few files in
// flight at a time. Returns the number of chunks stored. Unreadable files
// are skipped with a warning; only store failures abort the walk.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("cannot ingest %s: %w", dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("cannot ingest %s: not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); name != "." && len(name) > 1 && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSupportedDoc(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	var stored atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.workers)

	for _, path := range paths {
		g.Go(func() error {
			n, err := ing.ingestFile(ctx, dir, path)
			if err != nil {
				return err
			}
			stored.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(stored.Load()), err
	}

	ing.logger.Info("ingested documentation",
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Int64("chunks", stored.Load()))
	return int(stored.Load()), nil
}

func (ing *Ingestor) ingestFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		ing.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
		return 0, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	chunks := SplitText(string(data), ing.chunkSize, ing.chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]types.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = types.Document{
			Content: chunk,
			Metadata: map[string]any{
				"source":    rel,
				"file_type": filepath.Ext(path),
				"chunk":     i,
			},
		}
	}

	if err := ing.store.UpsertBatch(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to store chunks of %s: %w", rel, err)
	}
	return len(docs), nil
}
