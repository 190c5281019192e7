package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/inkdesk/inkdesk-rag/cmd/inkdesk-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "inkdesk-rag",
		Usage: "ドキュメント取り込みと類似検索のRAGパイプライン",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "データベーススキーマを適用",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.MigrateAction,
			},
			{
				Name:  "ingest",
				Usage: "PDFファイルを取り込み、検索可能にする",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "PDFファイルパス",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "進捗表示を抑制",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:  "query",
				Usage: "類似チャンクを検索",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "返却件数の上限",
						Value: 10,
					},
					&cli.FloatFlag{
						Name:  "min-score",
						Usage: "コサイン類似度の足切り値（省略時は0.8）",
					},
					&cli.StringFlag{
						Name:  "document",
						Usage: "ドキュメントIDで絞り込み",
					},
				},
				Action: commands.QueryAction,
			},
			{
				Name:  "documents",
				Usage: "ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "ドキュメント一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.DocumentListAction,
					},
					{
						Name:  "delete",
						Usage: "ドキュメントと紐づくチャンクを削除",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: commands.DocumentDeleteAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
