package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion"
	"github.com/inkdesk/inkdesk-rag/internal/platform/database"
)

// DocumentRepository はドキュメント集約のデータベース操作を提供します
// 集約: Document（ルート）+ Chunk
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository は新しいDocumentRepositoryを作成します
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

var _ ingestion.Repository = (*DocumentRepository)(nil)

// CreateDocument はドキュメントをprocessingステータスで作成します
func (r *DocumentRepository) CreateDocument(ctx context.Context, name string, path string, size int64, contentHash string) (*ingestion.Document, error) {
	query := `
		INSERT INTO documents (id, name, path, size_bytes, content_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, path, size_bytes, content_hash, total_chunks, status, error, created_at
	`

	var doc ingestion.Document
	var status string
	err := r.pool.QueryRow(ctx, query, uuid.New(), name, path, size, contentHash, string(ingestion.StatusProcessing)).Scan(
		&doc.ID,
		&doc.Name,
		&doc.Path,
		&doc.Size,
		&doc.ContentHash,
		&doc.TotalChunks,
		&status,
		&doc.Error,
		&doc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	doc.Status = ingestion.DocumentStatus(status)

	return &doc, nil
}

// StoreChunksBatch はチャンクを1バッチで挿入し、挿入件数を返します
func (r *DocumentRepository) StoreChunksBatch(ctx context.Context, documentID uuid.UUID, chunks []*ingestion.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO chunks (id, document_id, chunk_index, content, section, token_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		batch.Queue(query,
			ch.ID,
			documentID,
			ch.Index,
			ch.Content,
			ch.Section,
			ch.TokenCount,
			pgvector.NewVector(ch.Embedding),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	return len(chunks), nil
}

// CompleteDocument はドキュメントをcompletedへ遷移させます
func (r *DocumentRepository) CompleteDocument(ctx context.Context, id uuid.UUID, totalChunks int) error {
	query := `
		UPDATE documents
		SET status = $2, total_chunks = $3, error = NULL
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, string(ingestion.StatusCompleted), totalChunks)
	if err != nil {
		return fmt.Errorf("failed to complete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, id)
	}

	return nil
}

// FailDocument はドキュメントをfailedへ遷移させ、エラーメッセージを記録します
func (r *DocumentRepository) FailDocument(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE documents
		SET status = $2, error = $3
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, string(ingestion.StatusFailed), message); err != nil {
		return fmt.Errorf("failed to mark document as failed: %w", err)
	}

	return nil
}

// GetDocumentByID はIDでドキュメントを取得します
func (r *DocumentRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*ingestion.Document], error) {
	query := `
		SELECT id, name, path, size_bytes, content_hash, total_chunks, status, error, created_at
		FROM documents
		WHERE id = $1
	`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*ingestion.Document](), nil
		}
		return mo.None[*ingestion.Document](), fmt.Errorf("failed to get document: %w", err)
	}

	return mo.Some(doc), nil
}

// ListDocuments は全ドキュメントを新しい順で返します
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*ingestion.Document, error) {
	query := `
		SELECT id, name, path, size_bytes, content_hash, total_chunks, status, error, created_at
		FROM documents
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*ingestion.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// CountChunksByDocument はドキュメントに紐づくチャンク数を返します
func (r *DocumentRepository) CountChunksByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM chunks WHERE document_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, documentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	return count, nil
}

// DeleteDocument はドキュメントと紐づくチャンクをトランザクション内で削除します
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, id); err != nil {
			return struct{}{}, fmt.Errorf("failed to delete chunks: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to delete document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, id)
		}

		return struct{}{}, nil
	})

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*ingestion.Document, error) {
	var doc ingestion.Document
	var status string
	var createdAt time.Time

	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Path,
		&doc.Size,
		&doc.ContentHash,
		&doc.TotalChunks,
		&status,
		&doc.Error,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = ingestion.DocumentStatus(status)
	doc.CreatedAt = createdAt

	return &doc, nil
}
