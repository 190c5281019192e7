package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Service はドキュメント取り込みのユースケースを提供します
type Service struct {
	pipeline *Pipeline
	repo     Repository
}

// NewService は新しいServiceを作成します
func NewService(pipeline *Pipeline, repo Repository) *Service {
	return &Service{
		pipeline: pipeline,
		repo:     repo,
	}
}

// IngestFile はローカルのPDFファイルを読み込んで取り込みます
func (s *Service) IngestFile(ctx context.Context, path string, onProgress ProgressFunc) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗しました: %w", err)
	}

	hash := sha256.Sum256(data)

	return s.pipeline.Ingest(ctx, filepath.Base(path), path, data, hex.EncodeToString(hash[:]), onProgress)
}

// GetDocument はIDでドキュメントを取得します
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*Document], error) {
	return s.repo.GetDocumentByID(ctx, id)
}

// ListDocuments は登録済みドキュメントを新しい順で返します
func (s *Service) ListDocuments(ctx context.Context) ([]*Document, error) {
	return s.repo.ListDocuments(ctx)
}

// DeleteDocument はドキュメントと紐づくチャンクをまとめて削除します
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	docOpt, err := s.repo.GetDocumentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ドキュメントの取得に失敗しました: %w", err)
	}
	if docOpt.IsAbsent() {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗しました: %w", err)
	}

	return nil
}
