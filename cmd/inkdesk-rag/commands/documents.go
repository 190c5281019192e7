package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// DocumentListAction は登録済みドキュメントの一覧を表示するコマンドのアクション
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.Container.IngestionService.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("ドキュメント一覧の取得に失敗: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("ドキュメントは登録されていません")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%s  %-10s  chunks=%-4d  %s\n",
			doc.ID,
			doc.Status,
			doc.TotalChunks,
			doc.Name,
		)
		if doc.Error != nil {
			fmt.Printf("  エラー: %s\n", *doc.Error)
		}
	}

	return nil
}

// DocumentDeleteAction はドキュメントと紐づくチャンクを削除するコマンドのアクション
func DocumentDeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	idStr := cmd.String("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.IngestionService.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗: %w", err)
	}

	fmt.Printf("ドキュメントを削除しました: %s\n", id)

	return nil
}
