package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus はドキュメントの処理状態を表します。
// 遷移は processing → completed または processing → failed のみ。
type DocumentStatus string

const (
	// StatusProcessing は取り込み処理中の状態
	StatusProcessing DocumentStatus = "processing"
	// StatusCompleted は全チャンクの保存が完了した状態
	StatusCompleted DocumentStatus = "completed"
	// StatusFailed は取り込みが失敗した状態
	StatusFailed DocumentStatus = "failed"
)

// Document は取り込まれた1つのソースファイルを表します
type Document struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Size        int64          `json:"size"`
	ContentHash string         `json:"contentHash"`
	TotalChunks int            `json:"totalChunks"`
	Status      DocumentStatus `json:"status"`
	Error       *string        `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Chunk はドキュメントのテキスト断片とそのEmbeddingベクトルを表します。
// (DocumentID, Index) の組はストア内で一意。作成後は不変。
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"documentID"`
	Index      int       `json:"chunkIndex"`
	Content    string    `json:"content"`
	Section    *string   `json:"section,omitempty"`
	TokenCount int       `json:"tokenCount"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
