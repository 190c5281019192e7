package ingestion

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はドキュメント/チャンク集約の永続化ポートです。
// パイプラインはこのインターフェース経由でのみストレージに触れる。
// テスト時のモック用に消費者側で定義。
type Repository interface {
	// CreateDocument はステータスprocessingのドキュメント行を作成する
	CreateDocument(ctx context.Context, name string, path string, size int64, contentHash string) (*Document, error)

	// StoreChunksBatch はチャンク行を追記し、保存した件数を返す
	StoreChunksBatch(ctx context.Context, documentID uuid.UUID, chunks []*Chunk) (int, error)

	// CompleteDocument はステータスをcompletedにし、最終チャンク数を確定する
	CompleteDocument(ctx context.Context, documentID uuid.UUID, totalChunks int) error

	// FailDocument はステータスをfailedにし、人間可読なエラーメッセージを記録する
	FailDocument(ctx context.Context, documentID uuid.UUID, message string) error

	// GetDocumentByID はIDでドキュメントを取得する
	GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*Document], error)

	// ListDocuments はドキュメント一覧を作成日時の新しい順で返す
	ListDocuments(ctx context.Context) ([]*Document, error)

	// CountChunksByDocument はドキュメント配下のチャンク数を返す
	CountChunksByDocument(ctx context.Context, documentID uuid.UUID) (int, error)

	// DeleteDocument はドキュメントと配下の全チャンクを1つの論理操作として削除する
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

// Extractor はバイト列からテキストを取り出すポートです
type Extractor interface {
	// Extract はPDFバイナリからテキスト内容を抽出する。
	// テキスト層が見つからない場合は ErrExtractionFailed を返す。
	Extract(ctx context.Context, data []byte) (string, error)
}

// Embedder はテキストをベクトルに変換するポートです
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedAll は全テキストのEmbeddingを入力順で生成する。
	// プロバイダの上限以下のバッチへ分割し、バッチは逐次発行される。
	// onProgress は各バッチ完了後に (処理済み件数, 総件数) で呼ばれる（nil可）。
	// いずれかのバッチが失敗した場合は全体を中断し、部分結果は返さない。
	EmbedAll(ctx context.Context, texts []string, onProgress func(processed, total int)) ([][]float32, error)

	// ModelName はEmbeddingモデル名を返す
	ModelName() string

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int
}
