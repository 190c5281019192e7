package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion"
	"github.com/inkdesk/inkdesk-rag/internal/core/retrieval"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// MaxBatchSize はOpenAI Embeddings APIの1リクエスト最大件数
	MaxBatchSize = 100
)

// Embedder は OpenAI API を使用してテキストをベクトルに変換する
type Embedder struct {
	client       openai.Client
	model        string
	dimension    int
	maxBatchSize int
}

type embedderOptions struct {
	model        string
	dimension    int
	maxBatchSize int
	baseURL      string
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithMaxBatchSize は1リクエストあたりのバッチ件数を上書きする。
// APIの上限である MaxBatchSize を超える値と0以下の値は上限に丸められる
func WithMaxBatchSize(size int) EmbedderOption {
	return func(o *embedderOptions) {
		o.maxBatchSize = size
	}
}

// WithBaseURL はAPIエンドポイントを上書きする
func WithBaseURL(baseURL string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = baseURL
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:        DefaultEmbeddingModel,
		dimension:    DefaultEmbeddingDimension,
		maxBatchSize: MaxBatchSize,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.maxBatchSize <= 0 || options.maxBatchSize > MaxBatchSize {
		options.maxBatchSize = MaxBatchSize
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(options.baseURL))
	}

	return &Embedder{
		client:       openai.NewClient(clientOpts...),
		model:        options.model,
		dimension:    options.dimension,
		maxBatchSize: options.maxBatchSize,
	}
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.batchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	return embeddings[0], nil
}

// EmbedAll は任意件数のテキストをバッチサイズごとに順次処理する。
// バッチを並列化しないのはレート制限と進捗報告の単純さを優先するため。
// いずれかのバッチが失敗した場合は部分結果を返さずエラーを返す。
func (e *Embedder) EmbedAll(ctx context.Context, texts []string, onProgress func(processed, total int)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	total := len(texts)
	vectors := make([][]float32, 0, total)

	for start := 0; start < total; start += e.maxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+e.maxBatchSize, total)
		batch, err := e.batchEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", start, end-1, end-start, len(batch))
		}

		vectors = append(vectors, batch...)

		if onProgress != nil {
			onProgress(len(vectors), total)
		}
	}

	return vectors, nil
}

// batchEmbed は1バッチの Embedding を生成する
func (e *Embedder) batchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > e.maxBatchSize {
		return nil, fmt.Errorf("batch size exceeds maximum of %d", e.maxBatchSize)
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	var embeddings [][]float32
	for _, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		embeddings = append(embeddings, vector)
	}

	return embeddings, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// インターフェース実装の確認
var (
	_ ingestion.Embedder = (*Embedder)(nil)
	_ retrieval.Embedder = (*Embedder)(nil)
)
