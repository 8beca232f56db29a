// Package vectorstore implements the vector-index contract on Postgres with
// the pgvector extension. Embeddings are computed inside the store through
// the injected provider, so callers hand over raw text only.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/sitewise-ai/sitewise/internal/core"
)

type PgVectorIndex struct {
	db       *sql.DB
	embedder core.EmbeddingProvider
}

func NewPgVectorIndex(db *sql.DB, embedder core.EmbeddingProvider) *PgVectorIndex {
	return &PgVectorIndex{db: db, embedder: embedder}
}

var _ core.VectorIndex = (*PgVectorIndex)(nil)

func (x *PgVectorIndex) GetOrCreate(ctx context.Context, name string) (core.Collection, error) {
	if name == "" {
		return nil, errors.New("empty collection name")
	}
	const q = `
		INSERT INTO vector_collections (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := x.db.ExecContext(ctx, q, name); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return &pgCollection{index: x, name: name}, nil
}

func (x *PgVectorIndex) Exists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`
	var exists bool
	if err := x.db.QueryRowContext(ctx, q, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check collection %q: %w", name, err)
	}
	return exists, nil
}

// Delete removes the collection and all of its chunks. Deleting a collection
// that does not exist is not an error.
func (x *PgVectorIndex) Delete(ctx context.Context, name string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_chunks WHERE collection = $1`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete chunks of %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_collections WHERE name = $1`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete collection %q: %w", name, err)
	}
	return tx.Commit()
}

type pgCollection struct {
	index *PgVectorIndex
	name  string
}

var _ core.Collection = (*pgCollection)(nil)

// Upsert embeds the documents and writes id/document/metadata/embedding rows,
// replacing rows whose id already exists in the collection.
func (c *pgCollection) Upsert(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error {
	if len(ids) != len(documents) || (metadatas != nil && len(metadatas) != len(ids)) {
		return errors.New("ids, documents and metadatas must have the same length")
	}
	if len(ids) == 0 {
		return nil
	}

	vecs, err := c.index.embedder.EmbedTexts(ctx, documents)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(documents) {
		return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(documents))
	}

	tx, err := c.index.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	const q = `
		INSERT INTO vector_chunks (collection, id, document, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id) DO UPDATE
		SET document = EXCLUDED.document,
		    metadata = EXCLUDED.metadata,
		    embedding = EXCLUDED.embedding
	`
	for i := range ids {
		var meta []byte
		if metadatas != nil {
			if meta, err = json.Marshal(metadatas[i]); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal metadata for %s: %w", ids[i], err)
			}
		} else {
			meta = []byte("{}")
		}
		if _, err := tx.ExecContext(ctx, q, c.name, ids[i], documents[i], meta, pgvector.NewVector(vecs[i])); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert chunk %s: %w", ids[i], err)
		}
	}
	return tx.Commit()
}

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	const q = `SELECT count(*) FROM vector_chunks WHERE collection = $1`
	var n int
	if err := c.index.db.QueryRowContext(ctx, q, c.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", c.name, err)
	}
	return n, nil
}

// Query embeds the text and returns the k nearest chunks by cosine distance.
func (c *pgCollection) Query(ctx context.Context, text string, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}
	vecs, err := c.index.embedder.EmbedTexts(ctx, []string{text})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	const q = `
		SELECT document, metadata, embedding <=> $2 AS distance
		FROM vector_chunks
		WHERE collection = $1
		ORDER BY distance
		LIMIT $3
	`
	rows, err := c.index.db.QueryContext(ctx, q, c.name, pgvector.NewVector(vecs[0]), k)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", c.name, err)
	}
	defer rows.Close()

	var out []core.ScoredChunk
	for rows.Next() {
		var (
			doc      string
			metaJSON []byte
			distance float64
		)
		if err := rows.Scan(&doc, &metaJSON, &distance); err != nil {
			return nil, err
		}
		meta := map[string]any{}
		_ = json.Unmarshal(metaJSON, &meta)
		out = append(out, core.ScoredChunk{Text: doc, Metadata: meta, Distance: distance})
	}
	return out, rows.Err()
}
