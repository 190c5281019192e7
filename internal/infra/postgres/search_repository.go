package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/inkdesk/inkdesk-rag/internal/core/retrieval"
)

// SearchRepository は retrieval.SearchRepository を実装する PostgreSQL リポジトリ。
// スコアはコサイン類似度（1 - コサイン距離）として計算する。
type SearchRepository struct {
	pool *pgxpool.Pool
}

// NewSearchRepository は新しい SearchRepository を返す。
func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

var _ retrieval.SearchRepository = (*SearchRepository)(nil)

func (r *SearchRepository) SearchChunks(ctx context.Context, query retrieval.SearchQuery) ([]*retrieval.RankedChunk, error) {
	sql := `
		SELECT
			c.id,
			c.document_id,
			d.name,
			c.chunk_index,
			c.content,
			c.section,
			1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = 'completed'
			AND 1 - (c.embedding <=> $1) >= $2
			AND ($3::uuid IS NULL OR c.document_id = $3)
		ORDER BY c.embedding <=> $1
		LIMIT $4
	`

	var documentID any
	if id, ok := query.DocumentID.Get(); ok {
		documentID = id
	}

	rows, err := r.pool.Query(ctx, sql,
		pgvector.NewVector(query.Embedding),
		query.MinScore,
		documentID,
		query.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []*retrieval.RankedChunk
	for rows.Next() {
		var chunk retrieval.RankedChunk
		err := rows.Scan(
			&chunk.ChunkID,
			&chunk.DocumentID,
			&chunk.DocumentName,
			&chunk.ChunkIndex,
			&chunk.Content,
			&chunk.Section,
			&chunk.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return results, nil
}
