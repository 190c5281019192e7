package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/inkdesk/inkdesk-rag/internal/core/ingestion"
)

// Extractor はPDFバイト列からテキスト層を取り出します
type Extractor struct{}

var _ ingestion.Extractor = (*Extractor)(nil)

// NewExtractor は新しいExtractorを作成します
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract は全ページのテキストを改行区切りで連結して返します。
// テキスト層を持たないPDF（スキャン画像のみ等）はErrExtractionFailedを返す。
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open PDF: %v", ingestion.ErrExtractionFailed, err)
	}

	var buf bytes.Buffer
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: extract page %d: %v", ingestion.ErrExtractionFailed, i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}

	result := buf.String()
	if strings.TrimSpace(result) == "" {
		return "", fmt.Errorf("%w: document has no text layer", ingestion.ErrExtractionFailed)
	}

	return result, nil
}
