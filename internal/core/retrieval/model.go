package retrieval

import (
	"github.com/google/uuid"
	"github.com/samber/mo"
)

const (
	// DefaultLimit は返却件数のデフォルト値
	DefaultLimit = 10

	// DefaultMinScore はコサイン類似度の足切りデフォルト値
	DefaultMinScore = 0.8

	// OverfetchFactor はリランク時に候補を何倍取得するか
	OverfetchFactor = 2

	// MaxCandidates はリランクへ渡す候補数の上限
	MaxCandidates = 50

	// RerankMinScore はリランクスコアの足切り値
	RerankMinScore = 0.2
)

// RankedChunk は検索結果の1件です。
// Scoreはコサイン類似度（高いほど類似）。RerankScoreはリランクを
// 経由した場合のみ設定される。
type RankedChunk struct {
	ChunkID      uuid.UUID
	DocumentID   uuid.UUID
	DocumentName string
	ChunkIndex   int
	Content      string
	Section      *string
	Score        float64
	RerankScore  *float64
}

// Params は検索リクエストのパラメータ。
// 未指定の項目はサービス側のデフォルト値で補完される。
type Params struct {
	Query      string
	Limit      int
	MinScore   mo.Option[float64]
	DocumentID mo.Option[uuid.UUID]
}

// Result は検索結果です
type Result struct {
	Chunks   []*RankedChunk
	Reranked bool
}
