// Package tmstore is the Aurora PostgreSQL translation-memory store.
// Segments carry a pgvector embedding of their source text; similarity
// search uses the <=> distance operator.
package tmstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// SimilarLimit is how many memory segments a lookup returns.
const SimilarLimit = 3

// Segment is one translation-memory entry.
type Segment struct {
	ID         int64
	SourceLang string
	TargetLang string
	SourceText string
	TargetText string
}

// Store wraps the translation_memory table.
type Store struct {
	db       *sql.DB
	embedder *Embedder
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string, embedder *Embedder) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return &Store{db: db, embedder: embedder}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Similar returns the nearest memory segments for a source text in the
// given language pair, ordered by embedding distance.
func (s *Store) Similar(ctx context.Context, sourceLang, targetLang, sourceText string) ([]Segment, error) {
	embedding, err := s.embedder.Embed(ctx, sourceText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed lookup text: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unique_id, source_text, target_text
		   FROM translation_memory
		  WHERE source_lang = $1 AND target_lang = $2
		  ORDER BY source_text_embedding <=> CAST($3 AS vector)
		  LIMIT $4`,
		sourceLang, targetLang, VectorLiteral(embedding), SimilarLimit)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		seg := Segment{SourceLang: sourceLang, TargetLang: targetLang}
		if err := rows.Scan(&seg.ID, &seg.SourceText, &seg.TargetText); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	return segments, nil
}

// Put inserts a segment with a freshly computed source-text embedding.
func (s *Store) Put(ctx context.Context, seg Segment) error {
	embedding, err := s.embedder.Embed(ctx, seg.SourceText)
	if err != nil {
		return fmt.Errorf("failed to embed segment: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO translation_memory
		        (source_lang, target_lang, source_text, target_text, source_text_embedding)
		 VALUES ($1, $2, $3, $4, CAST($5 AS vector))`,
		seg.SourceLang, seg.TargetLang, seg.SourceText, seg.TargetText, VectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("failed to insert segment: %w", err)
	}
	return nil
}

// VectorLiteral renders an embedding in pgvector's text format.
func VectorLiteral(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
