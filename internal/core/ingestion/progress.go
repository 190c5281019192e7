package ingestion

// Stage は取り込みパイプラインの処理段階を表します
type Stage string

const (
	// StagePreparing はドキュメント行の作成中。抽出開始前の失敗のみで使われる
	StagePreparing Stage = "preparing"
	// StageExtracting はPDFからのテキスト抽出中
	StageExtracting Stage = "extracting"
	// StageChunking はチャンク分割中
	StageChunking Stage = "chunking"
	// StageEmbedding はEmbedding生成中
	StageEmbedding Stage = "embedding"
	// StageUploading はチャンクの永続化中
	StageUploading Stage = "uploading"
	// StageDone は全処理完了
	StageDone Stage = "done"
	// StageError はいずれかの段階での失敗
	StageError Stage = "error"
)

// 各ステージの進捗率。Embeddingは処理済みチャンク数に応じて
// percentEmbeddingStart〜percentEmbeddingEnd の間を線形に進む。
const (
	percentExtracting     = 10
	percentChunking       = 30
	percentEmbeddingStart = 40
	percentEmbeddingEnd   = 90
	percentUploading      = 92
	percentDone           = 100
)

// Progress は取り込みの進捗イベントを表します。
// 同時実行される取り込み同士で状態を共有しないよう、
// 共有カウンタではなくコールバックへ値渡しする。
type Progress struct {
	Stage           Stage  `json:"stage"`
	Message         string `json:"message"`
	Percent         int    `json:"percent"`
	TotalChunks     int    `json:"totalChunks,omitempty"`
	ProcessedChunks int    `json:"processedChunks,omitempty"`
}

// ProgressFunc は進捗イベントを受け取るコールバック
type ProgressFunc func(Progress)
