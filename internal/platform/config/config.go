package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します。
// プロセス起動時に一度だけ構築し、各コンポーネントのコンストラクタへ渡す。
// 呼び出し時点での暗黙的な環境変数参照は行わない。
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings用）
	OpenAI OpenAIConfig

	// Reranker設定（任意。APIキー未設定の場合はNopRerankerが選択される）
	Reranker RerankerConfig

	// チャンク分割設定
	Chunker ChunkerConfig

	// 検索設定
	Retrieval RetrievalConfig

	// ログ設定
	LogLevel  string
	LogFormat string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定（Embeddings用）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
}

// RerankerConfig はリランカーAPI設定
type RerankerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ChunkerConfig はチャンク分割のサイズ設定
type ChunkerConfig struct {
	MaxChunkChars int // 1チャンクの最大文字数
	OverlapChars  int // フラッシュ後に引き継ぐ文字数
}

// RetrievalConfig は検索時の調整可能パラメータ
type RetrievalConfig struct {
	DefaultLimit    int     // limit未指定時のデフォルト件数
	DefaultMinScore float64 // minScore未指定時のデフォルト閾値
	OverfetchFactor int     // リランク時の初期候補の倍率
	MaxCandidates   int     // リランク時の初期候補の上限
	RerankMinScore  float64 // リランクスコアの足切り閾値
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "inkdesk"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "inkdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
		},
		Reranker: RerankerConfig{
			APIKey:  getEnv("RERANK_API_KEY", ""),
			BaseURL: getEnv("RERANK_BASE_URL", "https://api.cohere.com"),
			Model:   getEnv("RERANK_MODEL", "rerank-v3.5"),
		},
		Chunker: ChunkerConfig{
			MaxChunkChars: getEnvAsInt("CHUNK_MAX_CHARS", 6000),
			OverlapChars:  getEnvAsInt("CHUNK_OVERLAP_CHARS", 200),
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:    getEnvAsInt("RETRIEVAL_DEFAULT_LIMIT", 10),
			DefaultMinScore: getEnvAsFloat("RETRIEVAL_DEFAULT_MIN_SCORE", 0.8),
			OverfetchFactor: getEnvAsInt("RETRIEVAL_OVERFETCH_FACTOR", 2),
			MaxCandidates:   getEnvAsInt("RETRIEVAL_MAX_CANDIDATES", 50),
			RerankMinScore:  getEnvAsFloat("RETRIEVAL_RERANK_MIN_SCORE", 0.2),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	return cfg, nil
}

// Validate は必須項目の欠落を起動時に検出します。
// パイプライン実行中に初めて欠落が発覚する事態を避けるため、
// コンテナ構築前に必ず呼び出すこと。
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		return fmt.Errorf("OPENAI_EMBEDDING_DIMENSION must be positive: %d", c.OpenAI.EmbeddingDimension)
	}
	if c.Chunker.MaxChunkChars <= 0 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be positive: %d", c.Chunker.MaxChunkChars)
	}
	if c.Chunker.OverlapChars < 0 || c.Chunker.OverlapChars >= c.Chunker.MaxChunkChars {
		return fmt.Errorf("CHUNK_OVERLAP_CHARS must be in [0, maxChunkChars): %d", c.Chunker.OverlapChars)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
