package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailed はPDFからテキスト層を取り出せなかった場合のエラー。
	// 画像のみ・暗号化済みPDFが該当する。リトライ不可。
	ErrExtractionFailed = errors.New("extraction failed: no extractable text")

	// ErrChunkingDegenerate はテキストが存在するのにチャンクが1つも生成されなかった場合のエラー。
	// 文字数フォールバックがあるため通常は発生しない。発生した場合は不変条件違反。
	ErrChunkingDegenerate = errors.New("chunking produced no chunks")

	// ErrEmbeddingFailed はEmbedding生成が失敗した場合のエラー。
	// 部分結果は破棄される。チャンク分割は冪等なのでドキュメント全体の再実行は安全。
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageFailed は永続化層への読み書きが失敗した場合のエラー
	ErrStorageFailed = errors.New("storage operation failed")

	// ErrDocumentNotFound は指定IDのドキュメントが存在しない場合のエラー
	ErrDocumentNotFound = errors.New("document not found")
)

// PipelineError は取り込みパイプラインの失敗ステージを保持するエラーです
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("ingestion: %s: %s", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError は新しいPipelineErrorを作成します
func NewPipelineError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}
