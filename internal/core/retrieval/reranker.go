package retrieval

import "context"

// RerankResult はリランカーが返す1件の結果。
// Indexは入力ドキュメント列の位置を指す。
type RerankResult struct {
	Index int
	Score float64
}

// Reranker は検索候補の並べ替えを提供するインターフェース
type Reranker interface {
	// Enabled はリランカーが利用可能かどうかを返します
	Enabled() bool
	// Rerank はクエリとの関連度で候補を並べ替え、スコア降順で返します
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// NopReranker は何もしないリランカーです。
// APIキーが未設定の場合に選択される。
type NopReranker struct{}

var _ Reranker = (*NopReranker)(nil)

func (r *NopReranker) Enabled() bool {
	return false
}

func (r *NopReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	return nil, nil
}
