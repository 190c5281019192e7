package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Setup はスキーマを適用します。
// Embeddingの次元はモデル設定に依存するため、適用時に埋め込む。
// 既存テーブルがある場合は何も変更しない（冪等）。
func Setup(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaSQL, dimension)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}
