package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Tuning は検索の調整可能パラメータ
type Tuning struct {
	DefaultLimit    int
	DefaultMinScore float64
	OverfetchFactor int
	MaxCandidates   int
	RerankMinScore  float64
}

// DefaultTuning はデフォルトの調整パラメータを返す
func DefaultTuning() Tuning {
	return Tuning{
		DefaultLimit:    DefaultLimit,
		DefaultMinScore: DefaultMinScore,
		OverfetchFactor: OverfetchFactor,
		MaxCandidates:   MaxCandidates,
		RerankMinScore:  RerankMinScore,
	}
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithTuning は調整パラメータを上書きする
func WithTuning(t Tuning) ServiceOption {
	return func(s *Service) {
		s.tuning = t
	}
}

// Service は検索のユースケースを提供します。
// クエリのEmbedding生成、ベクトル検索、必要に応じたリランクを1回の
// Retrieve呼び出しにまとめる。
type Service struct {
	embedder Embedder
	repo     SearchRepository
	reranker Reranker
	tuning   Tuning
	logger   *slog.Logger
}

// NewService は新しいServiceを作成します
func NewService(embedder Embedder, repo SearchRepository, reranker Reranker, logger *slog.Logger, opts ...ServiceOption) *Service {
	if reranker == nil {
		reranker = &NopReranker{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		embedder: embedder,
		repo:     repo,
		reranker: reranker,
		tuning:   DefaultTuning(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Retrieve はクエリに類似するチャンクを返します。
// リランカーが有効な場合は候補を多めに取得してから並べ替える。
// 結果0件はエラーではなく空のResultを返す。
func (s *Service) Retrieve(ctx context.Context, params Params) (*Result, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, ErrEmptyQuery
	}

	limit := params.Limit
	if limit <= 0 {
		limit = s.tuning.DefaultLimit
	}
	minScore := params.MinScore.OrElse(s.tuning.DefaultMinScore)

	embedding, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("クエリのEmbedding生成に失敗しました: %w", err)
	}

	if s.reranker.Enabled() {
		return s.retrieveWithRerank(ctx, params.Query, embedding, limit, params)
	}

	chunks, err := s.repo.SearchChunks(ctx, SearchQuery{
		Embedding:  embedding,
		Limit:      limit,
		MinScore:   minScore,
		DocumentID: params.DocumentID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	return &Result{Chunks: chunks}, nil
}

// retrieveWithRerank は候補をoverfetchしてリランカーで並べ替えます。
// 類似度の足切りはリランク後に意味を持たないため、候補取得時は無効化する。
func (s *Service) retrieveWithRerank(ctx context.Context, query string, embedding []float32, limit int, params Params) (*Result, error) {
	candidateLimit := min(limit*s.tuning.OverfetchFactor, s.tuning.MaxCandidates)

	candidates, err := s.repo.SearchChunks(ctx, SearchQuery{
		Embedding:  embedding,
		Limit:      candidateLimit,
		MinScore:   0,
		DocumentID: params.DocumentID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(candidates) == 0 {
		return &Result{Reranked: true}, nil
	}

	documents := make([]string, 0, len(candidates))
	for _, c := range candidates {
		documents = append(documents, c.Content)
	}

	results, err := s.reranker.Rerank(ctx, query, documents, limit)
	if err != nil {
		// リランクの失敗は検索全体を壊さない。ベクトル類似度順で返す
		s.logger.Warn("リランクに失敗したためベクトル類似度順で返します", "error", err)

		minScore := params.MinScore.OrElse(s.tuning.DefaultMinScore)
		fallback := make([]*RankedChunk, 0, limit)
		for _, c := range candidates {
			if c.Score < minScore {
				continue
			}
			fallback = append(fallback, c)
			if len(fallback) == limit {
				break
			}
		}
		return &Result{Chunks: fallback}, nil
	}

	ranked := make([]*RankedChunk, 0, limit)
	for _, r := range results {
		if r.Score < s.tuning.RerankMinScore {
			continue
		}
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		c := candidates[r.Index]
		score := r.Score
		c.RerankScore = &score
		ranked = append(ranked, c)
		if len(ranked) == limit {
			break
		}
	}

	return &Result{Chunks: ranked, Reranked: true}, nil
}
