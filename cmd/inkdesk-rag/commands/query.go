package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/inkdesk/inkdesk-rag/internal/core/retrieval"
)

// QueryAction は類似チャンクを検索するコマンドのアクション
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	envFile := cmd.String("env")
	limit := cmd.Int("limit")
	documentID := cmd.String("document")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	params := retrieval.Params{
		Query: query,
		Limit: limit,
	}
	if cmd.IsSet("min-score") {
		params.MinScore = mo.Some(cmd.Float("min-score"))
	}
	if documentID != "" {
		id, err := uuid.Parse(documentID)
		if err != nil {
			return fmt.Errorf("不正なドキュメントID: %w", err)
		}
		params.DocumentID = mo.Some(id)
	}

	result, err := appCtx.Container.RetrievalService.Retrieve(ctx, params)
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	if len(result.Chunks) == 0 {
		fmt.Println("該当するチャンクが見つかりませんでした")
		return nil
	}

	for i, chunk := range result.Chunks {
		fmt.Printf("--- %d. %s (chunk %d)\n", i+1, chunk.DocumentName, chunk.ChunkIndex)
		if chunk.Section != nil {
			fmt.Printf("    セクション: %s\n", *chunk.Section)
		}
		if chunk.RerankScore != nil {
			fmt.Printf("    スコア: %.4f (rerank: %.4f)\n", chunk.Score, *chunk.RerankScore)
		} else {
			fmt.Printf("    スコア: %.4f\n", chunk.Score)
		}
		fmt.Printf("    %s\n", truncate(chunk.Content, 200))
	}

	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
