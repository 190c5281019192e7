package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion"
	"github.com/inkdesk/inkdesk-rag/internal/core/retrieval"
)

// Store はインメモリのドキュメント・チャンクストアです。
// 検索は全件総当たりのコサイン類似度で行う。テストとローカル試用向けで、
// データはプロセス終了で消える。
type Store struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*ingestion.Document
	chunks    map[uuid.UUID][]*ingestion.Chunk
}

var (
	_ ingestion.Repository       = (*Store)(nil)
	_ retrieval.SearchRepository = (*Store)(nil)
)

// NewStore は新しいStoreを作成します
func NewStore() *Store {
	return &Store{
		documents: make(map[uuid.UUID]*ingestion.Document),
		chunks:    make(map[uuid.UUID][]*ingestion.Chunk),
	}
}

// CreateDocument はドキュメントをprocessingステータスで作成します
func (s *Store) CreateDocument(ctx context.Context, name string, path string, size int64, contentHash string) (*ingestion.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &ingestion.Document{
		ID:          uuid.New(),
		Name:        name,
		Path:        path,
		Size:        size,
		ContentHash: contentHash,
		Status:      ingestion.StatusProcessing,
		CreatedAt:   time.Now(),
	}
	s.documents[doc.ID] = doc

	return copyDocument(doc), nil
}

// StoreChunksBatch はチャンクを追加し、追加件数を返します
func (s *Store) StoreChunksBatch(ctx context.Context, documentID uuid.UUID, chunks []*ingestion.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return 0, fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, documentID)
	}

	existing := make(map[int]struct{}, len(s.chunks[documentID]))
	for _, ch := range s.chunks[documentID] {
		existing[ch.Index] = struct{}{}
	}

	for _, ch := range chunks {
		if _, dup := existing[ch.Index]; dup {
			return 0, fmt.Errorf("duplicate chunk index %d for document %s", ch.Index, documentID)
		}
		existing[ch.Index] = struct{}{}
	}

	s.chunks[documentID] = append(s.chunks[documentID], chunks...)

	return len(chunks), nil
}

// CompleteDocument はドキュメントをcompletedへ遷移させます
func (s *Store) CompleteDocument(ctx context.Context, id uuid.UUID, totalChunks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, id)
	}

	doc.Status = ingestion.StatusCompleted
	doc.TotalChunks = totalChunks
	doc.Error = nil

	return nil
}

// FailDocument はドキュメントをfailedへ遷移させます
func (s *Store) FailDocument(ctx context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, id)
	}

	doc.Status = ingestion.StatusFailed
	doc.Error = &message

	return nil
}

// GetDocumentByID はIDでドキュメントを取得します
func (s *Store) GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*ingestion.Document], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return mo.None[*ingestion.Document](), nil
	}

	return mo.Some(copyDocument(doc)), nil
}

// ListDocuments は全ドキュメントを新しい順で返します
func (s *Store) ListDocuments(ctx context.Context) ([]*ingestion.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*ingestion.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, copyDocument(doc))
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	return docs, nil
}

// CountChunksByDocument はドキュメントに紐づくチャンク数を返します
func (s *Store) CountChunksByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chunks[documentID]), nil
}

// DeleteDocument はドキュメントと紐づくチャンクをまとめて削除します
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, id)
	}

	delete(s.documents, id)
	delete(s.chunks, id)

	return nil
}

// SearchChunks はクエリベクトルに類似するチャンクをスコア降順で返します。
// completedなドキュメントのチャンクのみ対象とする。
func (s *Store) SearchChunks(ctx context.Context, query retrieval.SearchQuery) ([]*retrieval.RankedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*retrieval.RankedChunk
	for docID, chunks := range s.chunks {
		doc, ok := s.documents[docID]
		if !ok || doc.Status != ingestion.StatusCompleted {
			continue
		}
		if target, filtered := query.DocumentID.Get(); filtered && target != docID {
			continue
		}

		for _, ch := range chunks {
			score := cosineSimilarity(query.Embedding, ch.Embedding)
			if score < query.MinScore {
				continue
			}
			results = append(results, &retrieval.RankedChunk{
				ChunkID:      ch.ID,
				DocumentID:   docID,
				DocumentName: doc.Name,
				ChunkIndex:   ch.Index,
				Content:      ch.Content,
				Section:      ch.Section,
				Score:        score,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyDocument(doc *ingestion.Document) *ingestion.Document {
	c := *doc
	if doc.Error != nil {
		msg := *doc.Error
		c.Error = &msg
	}
	return &c
}
