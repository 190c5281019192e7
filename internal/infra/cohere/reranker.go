package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/inkdesk/inkdesk-rag/internal/core/retrieval"
)

const (
	// DefaultBaseURL はCohere APIのベースURL
	DefaultBaseURL = "https://api.cohere.com"

	// DefaultModel はデフォルトのリランクモデル
	DefaultModel = "rerank-v3.5"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 30 * time.Second

	// MaxRetries はレート制限・サーバエラー時の最大リトライ回数
	MaxRetries = 3
)

// Reranker は Cohere Rerank API を使用して検索候補を並べ替える
type Reranker struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

var _ retrieval.Reranker = (*Reranker)(nil)

type rerankerOptions struct {
	baseURL string
	model   string
	timeout time.Duration
}

// RerankerOption は Reranker のオプション設定
type RerankerOption func(*rerankerOptions)

// WithBaseURL はAPIのベースURLを上書きする
func WithBaseURL(baseURL string) RerankerOption {
	return func(o *rerankerOptions) {
		o.baseURL = baseURL
	}
}

// WithModel はリランクモデルを上書きする
func WithModel(model string) RerankerOption {
	return func(o *rerankerOptions) {
		o.model = model
	}
}

// WithTimeout はAPI呼び出しのタイムアウトを上書きする
func WithTimeout(timeout time.Duration) RerankerOption {
	return func(o *rerankerOptions) {
		o.timeout = timeout
	}
}

// NewReranker は新しい Reranker を作成する
func NewReranker(apiKey string, opts ...RerankerOption) *Reranker {
	options := rerankerOptions{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Reranker{
		baseURL: options.baseURL,
		apiKey:  apiKey,
		model:   options.model,
		client:  &http.Client{Timeout: options.timeout},
	}
}

// Enabled はAPIキーが設定されているかどうかを返す
func (r *Reranker) Enabled() bool {
	return r.apiKey != ""
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank はクエリとの関連度で候補を並べ替え、スコア降順で返す。
// 429と5xxはRetry-Afterを尊重してリトライする。
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]retrieval.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := r.baseURL + "/v1/rerank"

	var lastErr error
	waitedRetryAfter := false
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		// Retry-Afterを待った直後の反復では一般のバックオフを重ねない
		if attempt > 0 && !waitedRetryAfter {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		waitedRetryAfter = false

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+r.apiKey)

		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					_ = resp.Body.Close()
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(time.Duration(secs) * time.Second):
					}
					waitedRetryAfter = true
					lastErr = fmt.Errorf("rerank failed: %s", resp.Status)
					continue
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("rerank failed: %s", resp.Status)
			continue
		}

		if resp.StatusCode >= 300 {
			payload, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("rerank failed: %s: %s", resp.Status, string(payload))
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		var out rerankResponse
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("decode rerank response: %w", err)
		}

		results := make([]retrieval.RerankResult, 0, len(out.Results))
		for _, res := range out.Results {
			results = append(results, retrieval.RerankResult{
				Index: res.Index,
				Score: res.RelevanceScore,
			})
		}

		return results, nil
	}

	return nil, fmt.Errorf("rerank failed after %d retries: %w", MaxRetries, lastErr)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 500 * time.Millisecond << (attempt - 1)
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
