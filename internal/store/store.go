// Package store persists documentation chunks and their embeddings in SQLite
// and serves cosine-similarity search over them. It is the primary knowledge
// source behind retrieval.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"codelake/internal/embedding"
	"codelake/internal/types"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed document store. Embeddings are serialized as JSON
// alongside the content; search is a cosine scan over stored vectors, sorted
// descending. Reads tolerate concurrent writes by the background updater
// (last write wins, no consistency claims beyond what SQLite provides).
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	engine embedding.Engine
	logger *zap.Logger
}

// Open initializes the SQLite database at the given path and runs migrations.
func Open(path string, engine embedding.Engine, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}

	s := &Store{db: db, path: path, engine: engine, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			content    TEXT NOT NULL UNIQUE,
			embedding  TEXT,
			metadata   TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert stores a single document with its embedding. Content is the
// dedup key: re-ingesting the same chunk replaces its row.
func (s *Store) Upsert(ctx context.Context, doc types.Document) error {
	return s.UpsertBatch(ctx, []types.Document{doc})
}

// UpsertBatch embeds and stores a batch of documents in one transaction.
func (s *Store) UpsertBatch(ctx context.Context, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	var vectors [][]float32
	if s.engine != nil {
		var err error
		vectors, err = s.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO documents (content, embedding, metadata) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range docs {
		var embJSON any
		if vectors != nil {
			b, err := json.Marshal(vectors[i])
			if err != nil {
				return fmt.Errorf("failed to serialize embedding: %w", err)
			}
			embJSON = string(b)
		}
		metaJSON, _ := json.Marshal(d.Metadata)
		if _, err := stmt.ExecContext(ctx, d.Content, embJSON, string(metaJSON)); err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("stored documents", zap.Int("count", len(docs)))
	return nil
}

// Search implements types.KnowledgeSource: embeds the query, scans stored
// vectors, and returns the top k by cosine similarity, best first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]types.ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 5
	}
	if s.engine == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT content, embedding, metadata FROM documents WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []types.ScoredDocument
	for rows.Next() {
		var content, embJSON string
		var metaJSON sql.NullString
		if err := rows.Scan(&content, &embJSON, &metaJSON); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		score, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}

		doc := types.Document{Content: content}
		if metaJSON.Valid && metaJSON.String != "" {
			json.Unmarshal([]byte(metaJSON.String), &doc.Metadata)
		}
		candidates = append(candidates, types.ScoredDocument{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// Stats returns summary statistics about the store.
func (s *Store) Stats(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]any)

	var total, embedded int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&total); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE embedding IS NOT NULL").Scan(&embedded); err != nil {
		return nil, err
	}
	stats["documents"] = total
	stats["with_embeddings"] = embedded

	if s.engine != nil {
		stats["embedding_engine"] = s.engine.Name()
		stats["embedding_dimensions"] = s.engine.Dimensions()
	} else {
		stats["embedding_engine"] = "none"
	}
	return stats, nil
}
