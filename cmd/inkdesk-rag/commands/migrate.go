package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/inkdesk/inkdesk-rag/internal/infra/postgres"
	"github.com/inkdesk/inkdesk-rag/internal/platform/config"
	"github.com/inkdesk/inkdesk-rag/internal/platform/database"
)

// MigrateAction はデータベーススキーマを適用するコマンドのアクション
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("データベース接続に失敗: %w", err)
	}
	defer db.Close()

	if err := postgres.Setup(ctx, db.Pool, cfg.OpenAI.EmbeddingDimension); err != nil {
		return fmt.Errorf("スキーマ適用に失敗: %w", err)
	}

	slog.Info("スキーマを適用しました",
		"database", cfg.Database.DBName,
		"dimension", cfg.OpenAI.EmbeddingDimension,
	)

	return nil
}
