package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion/chunk"
)

const (
	// DefaultUploadBatchSize はチャンク保存のバッチサイズ。
	// 1リクエストあたりのペイロードを抑えつつ進捗報告の粒度を確保する。
	DefaultUploadBatchSize = 20
)

// PipelineConfig はパイプライン処理の設定
type PipelineConfig struct {
	// UploadBatchSize はチャンク保存のバッチサイズ
	UploadBatchSize int
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		UploadBatchSize: DefaultUploadBatchSize,
	}
}

// Result は取り込み完了時の結果
type Result struct {
	Document *Document
	Chunks   []*Chunk
}

// Pipeline は1ファイルの取り込みを実行する状態機械です。
// extracting(10%) → chunking(30%) → embedding(40%→90%) → uploading(92%) → done(100%)
// の順に進み、失敗時は error ステージを報告してドキュメントをfailedにする。
// 取り込み同士は状態を共有しないため、複数ドキュメントの同時取り込みが可能。
type Pipeline struct {
	extractor Extractor
	chunker   *chunk.Chunker
	embedder  Embedder
	repo      Repository
	config    *PipelineConfig
	logger    *slog.Logger
}

// NewPipeline は新しいPipelineを作成します
func NewPipeline(
	extractor Extractor,
	chunker *chunk.Chunker,
	embedder Embedder,
	repo Repository,
	config *PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if config.UploadBatchSize <= 0 {
		config.UploadBatchSize = DefaultUploadBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		repo:      repo,
		config:    config,
		logger:    logger,
	}
}

// Ingest はPDFバイト列を抽出→分割→Embedding→保存の順で処理します。
// 進捗は onProgress（nil可）へ通知される。
func (p *Pipeline) Ingest(ctx context.Context, name string, path string, data []byte, contentHash string, onProgress ProgressFunc) (*Result, error) {
	report := func(prog Progress) {
		if onProgress != nil {
			onProgress(prog)
		}
	}

	// ドキュメント行を processing で作成する。
	// これ以降の失敗は必ず failed への遷移で解決し、processing のまま放置しない。
	doc, err := p.repo.CreateDocument(ctx, name, path, int64(len(data)), contentHash)
	if err != nil {
		return nil, NewPipelineError(StagePreparing, fmt.Errorf("%w: create document: %v", ErrStorageFailed, err))
	}

	p.logger.Info("ドキュメントの取り込みを開始",
		"documentID", doc.ID,
		"name", name,
		"size", len(data),
	)

	// Stage 1: テキスト抽出
	report(Progress{Stage: StageExtracting, Message: "Extracting text from PDF", Percent: percentExtracting})

	text, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return nil, p.fail(ctx, doc.ID, StageExtracting, err, report)
	}
	if strings.TrimSpace(text) == "" {
		return nil, p.fail(ctx, doc.ID, StageExtracting,
			fmt.Errorf("%w: document contains no text layer", ErrExtractionFailed), report)
	}

	// Stage 2: チャンク分割
	report(Progress{Stage: StageChunking, Message: "Splitting text into chunks", Percent: percentChunking})

	chunks := p.chunker.ChunkText(text)
	if len(chunks) == 0 {
		return nil, p.fail(ctx, doc.ID, StageChunking,
			fmt.Errorf("%w: text present but no chunks produced", ErrChunkingDegenerate), report)
	}

	// Stage 3: Embedding生成。処理済みチャンク数に応じて40%→90%を線形に進める
	total := len(chunks)
	texts := make([]string, 0, total)
	for _, ch := range chunks {
		texts = append(texts, ch.Content)
	}

	vectors, err := p.embedder.EmbedAll(ctx, texts, func(processed, totalCount int) {
		percent := percentEmbeddingStart
		if totalCount > 0 {
			percent += (percentEmbeddingEnd - percentEmbeddingStart) * processed / totalCount
		}
		report(Progress{
			Stage:           StageEmbedding,
			Message:         fmt.Sprintf("Generating embeddings (%d/%d)", processed, totalCount),
			Percent:         percent,
			TotalChunks:     totalCount,
			ProcessedChunks: processed,
		})
	})
	if err != nil {
		return nil, p.fail(ctx, doc.ID, StageEmbedding, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err), report)
	}
	if len(vectors) != total {
		return nil, p.fail(ctx, doc.ID, StageEmbedding,
			fmt.Errorf("%w: vector count %d does not match chunk count %d", ErrEmbeddingFailed, len(vectors), total), report)
	}

	// Stage 4: チャンクとEmbeddingを位置で合成し、固定サイズのバッチで保存
	report(Progress{Stage: StageUploading, Message: "Storing chunks", Percent: percentUploading, TotalChunks: total})

	embedded := make([]*Chunk, 0, total)
	for i, ch := range chunks {
		embedded = append(embedded, &Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      ch.Index,
			Content:    ch.Content,
			Section:    ch.Section,
			TokenCount: ch.Tokens,
			Embedding:  vectors[i],
		})
	}

	for start := 0; start < len(embedded); start += p.config.UploadBatchSize {
		// バッチ間でキャンセルを確認する。途中終了をcompletedにしないため
		if err := ctx.Err(); err != nil {
			return nil, p.fail(ctx, doc.ID, StageUploading, err, report)
		}

		end := min(start+p.config.UploadBatchSize, len(embedded))
		if _, err := p.repo.StoreChunksBatch(ctx, doc.ID, embedded[start:end]); err != nil {
			return nil, p.fail(ctx, doc.ID, StageUploading, fmt.Errorf("%w: %v", ErrStorageFailed, err), report)
		}
	}

	if err := p.repo.CompleteDocument(ctx, doc.ID, total); err != nil {
		return nil, p.fail(ctx, doc.ID, StageUploading, fmt.Errorf("%w: %v", ErrStorageFailed, err), report)
	}

	doc.Status = StatusCompleted
	doc.TotalChunks = total

	report(Progress{
		Stage:           StageDone,
		Message:         "Ingestion completed",
		Percent:         percentDone,
		TotalChunks:     total,
		ProcessedChunks: total,
	})

	p.logger.Info("ドキュメントの取り込みが完了",
		"documentID", doc.ID,
		"totalChunks", total,
	)

	return &Result{Document: doc, Chunks: embedded}, nil
}

// fail はドキュメントをfailedへ遷移させ、errorステージを報告します
func (p *Pipeline) fail(ctx context.Context, documentID uuid.UUID, stage Stage, err error, report ProgressFunc) error {
	p.logger.Error("取り込みに失敗",
		"documentID", documentID,
		"stage", stage,
		"error", err,
	)

	// 失敗原因がキャンセルでもステータス更新は完遂させる。
	// 元のctxのままだとストアが更新を拒否し、processingのまま残ってしまう
	if failErr := p.repo.FailDocument(context.WithoutCancel(ctx), documentID, err.Error()); failErr != nil {
		// ステータス更新自体の失敗は元のエラーを優先してログのみ残す
		p.logger.Error("failedステータスの記録に失敗",
			"documentID", documentID,
			"error", failErr,
		)
	}

	report(Progress{Stage: StageError, Message: err.Error(), Percent: 0})

	return NewPipelineError(stage, err)
}
