package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion"
)

// IngestAction はPDFファイルを取り込むコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")
	quiet := cmd.Bool("quiet")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var onProgress ingestion.ProgressFunc
	if !quiet {
		onProgress = func(p ingestion.Progress) {
			if p.TotalChunks > 0 && p.Stage == ingestion.StageEmbedding {
				fmt.Printf("[%3d%%] %s: %s (%d/%d)\n", p.Percent, p.Stage, p.Message, p.ProcessedChunks, p.TotalChunks)
				return
			}
			fmt.Printf("[%3d%%] %s: %s\n", p.Percent, p.Stage, p.Message)
		}
	}

	result, err := appCtx.Container.IngestionService.IngestFile(ctx, path, onProgress)
	if err != nil {
		return fmt.Errorf("取り込みに失敗: %w", err)
	}

	fmt.Printf("取り込み完了: %s\n", result.Document.Name)
	fmt.Printf("  ID:     %s\n", result.Document.ID)
	fmt.Printf("  チャンク数: %d\n", result.Document.TotalChunks)

	return nil
}
