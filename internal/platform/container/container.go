package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion"
	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion/chunk"
	"github.com/inkdesk/inkdesk-rag/internal/core/retrieval"
	"github.com/inkdesk/inkdesk-rag/internal/infra/cohere"
	"github.com/inkdesk/inkdesk-rag/internal/infra/openai"
	"github.com/inkdesk/inkdesk-rag/internal/infra/pdf"
	"github.com/inkdesk/inkdesk-rag/internal/infra/postgres"
	"github.com/inkdesk/inkdesk-rag/internal/platform/config"
	"github.com/inkdesk/inkdesk-rag/internal/platform/database"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	IngestionService *ingestion.Service
	RetrievalService *retrieval.Service
	DocumentRepo     ingestion.Repository

	logger   *slog.Logger
	database *database.Database
}

type containerOptions struct {
	logger    *slog.Logger
	extractor ingestion.Extractor
	embedder  ingestion.Embedder
	reranker  retrieval.Reranker
	repo      ingestion.Repository
	search    retrieval.SearchRepository
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerExtractor はカスタム Extractor を注入する
func WithContainerExtractor(extractor ingestion.Extractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder ingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerReranker はカスタム Reranker を注入する
func WithContainerReranker(reranker retrieval.Reranker) ContainerOption {
	return func(opts *containerOptions) {
		opts.reranker = reranker
	}
}

// WithContainerRepositories はリポジトリ実装を差し替える
func WithContainerRepositories(repo ingestion.Repository, search retrieval.SearchRepository) ContainerOption {
	return func(opts *containerOptions) {
		opts.repo = repo
		opts.search = search
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	return NewContainerWithDB(cfg, db, opts...)
}

// NewContainerWithDB は既存の Database を受け取りコンテナを生成する。
func NewContainerWithDB(cfg *config.Config, db *database.Database, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Embedder (OpenAI)
	var ingestEmbedder ingestion.Embedder
	var queryEmbedder retrieval.Embedder
	if options.embedder != nil {
		ingestEmbedder = options.embedder
		queryEmbedder = options.embedder
	} else {
		e := openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
		ingestEmbedder = e
		queryEmbedder = e
	}

	// Extractor (PDF)
	extractor := options.extractor
	if extractor == nil {
		extractor = pdf.NewExtractor()
	}

	// Chunker
	chunker, err := chunk.NewChunker(
		chunk.WithMaxChunkChars(cfg.Chunker.MaxChunkChars),
		chunk.WithOverlapChars(cfg.Chunker.OverlapChars),
	)
	if err != nil {
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}

	// Repository (PostgreSQL)
	repo := options.repo
	searchRepo := options.search
	if repo == nil || searchRepo == nil {
		if db == nil {
			return nil, fmt.Errorf("リポジトリ未指定の場合はデータベース接続が必要です")
		}
		if repo == nil {
			repo = postgres.NewDocumentRepository(db.Pool)
		}
		if searchRepo == nil {
			searchRepo = postgres.NewSearchRepository(db.Pool)
		}
	}

	// Reranker (Cohere)。APIキー未設定時は無効なNopRerankerを選択する
	reranker := options.reranker
	if reranker == nil {
		if cfg.Reranker.APIKey != "" {
			reranker = cohere.NewReranker(
				cfg.Reranker.APIKey,
				cohere.WithBaseURL(cfg.Reranker.BaseURL),
				cohere.WithModel(cfg.Reranker.Model),
			)
		} else {
			reranker = &retrieval.NopReranker{}
		}
	}

	pipeline := ingestion.NewPipeline(
		extractor,
		chunker,
		ingestEmbedder,
		repo,
		ingestion.DefaultPipelineConfig(),
		options.logger,
	)

	ingestionService := ingestion.NewService(pipeline, repo)
	retrievalService := retrieval.NewService(queryEmbedder, searchRepo, reranker, options.logger,
		retrieval.WithTuning(retrieval.Tuning{
			DefaultLimit:    cfg.Retrieval.DefaultLimit,
			DefaultMinScore: cfg.Retrieval.DefaultMinScore,
			OverfetchFactor: cfg.Retrieval.OverfetchFactor,
			MaxCandidates:   cfg.Retrieval.MaxCandidates,
			RerankMinScore:  cfg.Retrieval.RerankMinScore,
		}),
	)

	return &ServiceContainer{
		IngestionService: ingestionService,
		RetrievalService: retrievalService,
		DocumentRepo:     repo,
		logger:           options.logger,
		database:         db,
	}, nil
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}
