package retrieval

import "errors"

var (
	// ErrEmptyQuery はクエリが空文字列の場合のエラー
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrSearchFailed はベクトル検索の実行が失敗した場合のエラー
	ErrSearchFailed = errors.New("vector search failed")
)
