package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion/chunk"
)

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return e.text, e.err
}

type stubEmbedder struct {
	dimension int
	err       error
	calls     int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedAll(ctx, []string{text}, nil)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *stubEmbedder) EmbedAll(ctx context.Context, texts []string, onProgress func(processed, total int)) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}

	vectors := make([][]float32, 0, len(texts))
	for i := range texts {
		v := make([]float32, e.dimension)
		v[0] = float32(i + 1)
		vectors = append(vectors, v)

		if onProgress != nil {
			onProgress(i+1, len(texts))
		}
	}
	return vectors, nil
}

func (e *stubEmbedder) ModelName() string {
	return "stub-embedding"
}

func (e *stubEmbedder) Dimension() int {
	return e.dimension
}

type stubRepository struct {
	documents     map[uuid.UUID]*Document
	stored        map[uuid.UUID][]*Chunk
	batchSizes    []int
	storeErr      error
	createErr     error
	completeErr   error
	failHonorsCtx bool
	failMessages  []string
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		documents: make(map[uuid.UUID]*Document),
		stored:    make(map[uuid.UUID][]*Chunk),
	}
}

func (r *stubRepository) CreateDocument(ctx context.Context, name string, path string, size int64, contentHash string) (*Document, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	doc := &Document{
		ID:          uuid.New(),
		Name:        name,
		Path:        path,
		Size:        size,
		ContentHash: contentHash,
		Status:      StatusProcessing,
		CreatedAt:   time.Now(),
	}
	r.documents[doc.ID] = doc
	return doc, nil
}

func (r *stubRepository) StoreChunksBatch(ctx context.Context, documentID uuid.UUID, chunks []*Chunk) (int, error) {
	if r.storeErr != nil {
		return 0, r.storeErr
	}
	r.batchSizes = append(r.batchSizes, len(chunks))
	r.stored[documentID] = append(r.stored[documentID], chunks...)
	return len(chunks), nil
}

func (r *stubRepository) CompleteDocument(ctx context.Context, id uuid.UUID, totalChunks int) error {
	if r.completeErr != nil {
		return r.completeErr
	}
	doc, ok := r.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = StatusCompleted
	doc.TotalChunks = totalChunks
	return nil
}

func (r *stubRepository) FailDocument(ctx context.Context, id uuid.UUID, message string) error {
	// 実際のDBドライバと同様にキャンセル済みctxでは更新を拒否する
	if r.failHonorsCtx {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	doc, ok := r.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = StatusFailed
	doc.Error = &message
	r.failMessages = append(r.failMessages, message)
	return nil
}

func (r *stubRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*Document], error) {
	doc, ok := r.documents[id]
	if !ok {
		return mo.None[*Document](), nil
	}
	return mo.Some(doc), nil
}

func (r *stubRepository) ListDocuments(ctx context.Context) ([]*Document, error) {
	docs := make([]*Document, 0, len(r.documents))
	for _, doc := range r.documents {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *stubRepository) CountChunksByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	return len(r.stored[documentID]), nil
}

func (r *stubRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.documents[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(r.documents, id)
	delete(r.stored, id)
	return nil
}

func newTestPipeline(t *testing.T, extractor Extractor, embedder Embedder, repo Repository) *Pipeline {
	t.Helper()

	chunker, err := chunk.NewChunker()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(extractor, chunker, embedder, repo, nil, logger)
}

func multiParagraphText(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&sb, "Paragraph %d. %s\n\n", i, strings.Repeat("word ", 50))
	}
	return sb.String()
}

func TestPipeline_IngestSucceeds(t *testing.T) {
	repo := newStubRepository()
	extractor := &stubExtractor{text: multiParagraphText(50)}
	embedder := &stubEmbedder{dimension: 8}
	pipeline := newTestPipeline(t, extractor, embedder, repo)

	var progress []Progress
	result, err := pipeline.Ingest(context.Background(), "manual.pdf", "/tmp/manual.pdf", []byte("%PDF"), "hash", func(p Progress) {
		progress = append(progress, p)
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Document.Status)
	assert.Equal(t, len(result.Chunks), result.Document.TotalChunks)
	assert.NotEmpty(t, repo.stored[result.Document.ID])

	// チャンクとEmbeddingは位置で対応する
	for i, ch := range result.Chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, float32(i+1), ch.Embedding[0])
	}

	// 進捗はextracting→...→doneの順で、パーセントは単調非減少
	require.NotEmpty(t, progress)
	assert.Equal(t, StageExtracting, progress[0].Stage)
	assert.Equal(t, StageDone, progress[len(progress)-1].Stage)
	assert.Equal(t, 100, progress[len(progress)-1].Percent)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Percent, progress[i-1].Percent)
	}
}

func TestPipeline_IngestWorksWithoutProgressCallback(t *testing.T) {
	repo := newStubRepository()
	pipeline := newTestPipeline(t, &stubExtractor{text: "short text"}, &stubEmbedder{dimension: 4}, repo)

	result, err := pipeline.Ingest(context.Background(), "doc.pdf", "/tmp/doc.pdf", []byte("%PDF"), "hash", nil)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Document.Status)
}

func TestPipeline_ExtractionFailureMarksDocumentFailed(t *testing.T) {
	repo := newStubRepository()
	extractor := &stubExtractor{err: fmt.Errorf("%w: encrypted", ErrExtractionFailed)}
	pipeline := newTestPipeline(t, extractor, &stubEmbedder{dimension: 4}, repo)

	var lastStage Stage
	_, err := pipeline.Ingest(context.Background(), "bad.pdf", "/tmp/bad.pdf", []byte("%PDF"), "hash", func(p Progress) {
		lastStage = p.Stage
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, StageError, lastStage)

	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, StageExtracting, pipeErr.Stage)

	require.Len(t, repo.documents, 1)
	for _, doc := range repo.documents {
		assert.Equal(t, StatusFailed, doc.Status)
		require.NotNil(t, doc.Error)
	}
}

func TestPipeline_WhitespaceOnlyTextFailsExtraction(t *testing.T) {
	repo := newStubRepository()
	pipeline := newTestPipeline(t, &stubExtractor{text: "  \n\t  "}, &stubEmbedder{dimension: 4}, repo)

	_, err := pipeline.Ingest(context.Background(), "empty.pdf", "/tmp/empty.pdf", []byte("%PDF"), "hash", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPipeline_EmbeddingFailureStoresNoChunks(t *testing.T) {
	repo := newStubRepository()
	embedder := &stubEmbedder{dimension: 4, err: errors.New("rate limited")}
	pipeline := newTestPipeline(t, &stubExtractor{text: multiParagraphText(3)}, embedder, repo)

	_, err := pipeline.Ingest(context.Background(), "doc.pdf", "/tmp/doc.pdf", []byte("%PDF"), "hash", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, StageEmbedding, pipeErr.Stage)

	// 部分結果は保存されない
	for _, chunks := range repo.stored {
		assert.Empty(t, chunks)
	}
	for _, doc := range repo.documents {
		assert.Equal(t, StatusFailed, doc.Status)
	}
}

func TestPipeline_StorageFailureMarksDocumentFailed(t *testing.T) {
	repo := newStubRepository()
	repo.storeErr = errors.New("connection reset")
	pipeline := newTestPipeline(t, &stubExtractor{text: multiParagraphText(3)}, &stubEmbedder{dimension: 4}, repo)

	_, err := pipeline.Ingest(context.Background(), "doc.pdf", "/tmp/doc.pdf", []byte("%PDF"), "hash", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFailed)
	for _, doc := range repo.documents {
		assert.Equal(t, StatusFailed, doc.Status)
	}
}

func TestPipeline_UploadsInFixedSizeBatches(t *testing.T) {
	repo := newStubRepository()
	// 25段落 x 約300文字 → 最大チャンク6000文字に2チャンク以上詰まるため、
	// チャンク数を確実に増やしたい場合は小さいチャンクサイズを使う
	chunker, err := chunk.NewChunker(chunk.WithMaxChunkChars(200), chunk.WithOverlapChars(20))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := NewPipeline(
		&stubExtractor{text: multiParagraphText(50)},
		chunker,
		&stubEmbedder{dimension: 4},
		repo,
		&PipelineConfig{UploadBatchSize: 20},
		logger,
	)

	result, err := pipeline.Ingest(context.Background(), "doc.pdf", "/tmp/doc.pdf", []byte("%PDF"), "hash", nil)

	require.NoError(t, err)
	require.Greater(t, len(result.Chunks), 20)

	for i, size := range repo.batchSizes {
		if i < len(repo.batchSizes)-1 {
			assert.Equal(t, 20, size)
		} else {
			assert.LessOrEqual(t, size, 20)
		}
	}
}

func TestPipeline_CanceledContextFailsDocument(t *testing.T) {
	repo := newStubRepository()
	repo.failHonorsCtx = true
	pipeline := newTestPipeline(t, &stubExtractor{text: multiParagraphText(3)}, &stubEmbedder{dimension: 4}, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Ingest(ctx, "doc.pdf", "/tmp/doc.pdf", []byte("%PDF"), "hash", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// キャンセルが原因でもドキュメントはprocessingのまま残らずfailedへ遷移する
	require.Len(t, repo.documents, 1)
	for _, doc := range repo.documents {
		assert.Equal(t, StatusFailed, doc.Status)
		require.NotNil(t, doc.Error)
	}
}

func TestPipeline_CreateDocumentFailureReportsPreparingStage(t *testing.T) {
	repo := newStubRepository()
	repo.createErr = errors.New("connection refused")
	pipeline := newTestPipeline(t, &stubExtractor{text: "text"}, &stubEmbedder{dimension: 4}, repo)

	_, err := pipeline.Ingest(context.Background(), "doc.pdf", "/tmp/doc.pdf", []byte("%PDF"), "hash", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFailed)

	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, StagePreparing, pipeErr.Stage)
	assert.Empty(t, repo.documents)
}
