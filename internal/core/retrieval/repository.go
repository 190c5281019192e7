package retrieval

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// SearchQuery はベクトル検索の条件です
type SearchQuery struct {
	// Embedding はクエリのEmbeddingベクトル
	Embedding []float32
	// Limit は取得件数の上限
	Limit int
	// MinScore はコサイン類似度の下限
	MinScore float64
	// DocumentID を指定すると単一ドキュメント内に絞り込む
	DocumentID mo.Option[uuid.UUID]
}

// SearchRepository はベクトル類似検索を提供するリポジトリのインターフェース
type SearchRepository interface {
	// SearchChunks はクエリベクトルに類似するチャンクをスコア降順で返します
	SearchChunks(ctx context.Context, query SearchQuery) ([]*RankedChunk, error)
}

// Embedder はクエリのEmbedding生成を提供するインターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成します
	Embed(ctx context.Context, text string) ([]float32, error)
}
