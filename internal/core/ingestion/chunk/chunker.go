package chunk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultMaxChunkChars は1チャンクの最大文字数（約1500トークン相当）
	DefaultMaxChunkChars = 6000
	// DefaultOverlapChars はフラッシュ後に次のバッファへ引き継ぐ文字数
	DefaultOverlapChars = 200
	// boundaryDedupeWindow 文字以内に密集した境界は最初の1つへ集約する。
	// 密集は誤検出か、同じ見出しが複数パターンにマッチしたケースがほとんど。
	boundaryDedupeWindow = 50
)

// Chunk は分割されたテキスト断片を表します
type Chunk struct {
	Index   int     // ドキュメント内で0から単調増加する通し番号
	Content string  // トリム済みのチャンク本文
	Section *string // 所属セクションの見出しラベル（見出しが無い場合はnil）
	Tokens  int     // cl100k_base換算のトークン数
}

// Chunker はテキストをEmbedding向けの有界チャンクへ分割します
type Chunker struct {
	encoder *tiktoken.Tiktoken

	maxChunkChars int
	overlapChars  int
}

// Option はChunkerのオプション設定
type Option func(*Chunker)

// WithMaxChunkChars は最大チャンク文字数を上書きする
func WithMaxChunkChars(n int) Option {
	return func(c *Chunker) {
		c.maxChunkChars = n
	}
}

// WithOverlapChars はオーバーラップ文字数を上書きする
func WithOverlapChars(n int) Option {
	return func(c *Chunker) {
		c.overlapChars = n
	}
}

// NewChunker は新しいChunkerを作成します
func NewChunker(opts ...Option) (*Chunker, error) {
	// cl100k_baseエンコーダを使用（OpenAIのtext-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	c := &Chunker{
		encoder:       encoder,
		maxChunkChars: DefaultMaxChunkChars,
		overlapChars:  DefaultOverlapChars,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxChunkChars <= 0 {
		return nil, fmt.Errorf("maxChunkChars must be positive: %d", c.maxChunkChars)
	}
	if c.overlapChars < 0 || c.overlapChars >= c.maxChunkChars {
		return nil, fmt.Errorf("overlapChars must be in [0, maxChunkChars): %d", c.overlapChars)
	}

	return c, nil
}

// headingPattern は見出し検出のパターンと、マッチからラベルを取り出す定義
type headingPattern struct {
	name string
	re   *regexp.Regexp
}

// headingPatterns は優先度順の固定パターンリスト。
// 全パターンを適用し、結果はオフセット順にマージされる。
var headingPatterns = []headingPattern{
	{name: "markdown", re: regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+)$`)},
	{name: "chapter", re: regexp.MustCompile(`(?mi)^chapter[ \t]+\d+\b.*$`)},
	{name: "part", re: regexp.MustCompile(`(?mi)^part[ \t]+\d+\b.*$`)},
	{name: "section", re: regexp.MustCompile(`(?mi)^section[ \t]+\d+(?:\.\d+)*\b.*$`)},
	{name: "numbered", re: regexp.MustCompile(`(?m)^\d+(?:\.\d+)*[.)]?[ \t]+\S.*$`)},
	{name: "allcaps", re: regexp.MustCompile(`(?m)^[A-Z][A-Z0-9 \t:,\-]{4,}$`)},
}

// boundary はセクション境界を表します
type boundary struct {
	offset int
	label  string // トリム済みの見出しテキスト。空はラベルなし
}

// ChunkText はテキストをチャンク列に分割します。
// 返されるチャンクのIndexは出現順で0から連番（セクションをまたいでもリセットしない）。
func (c *Chunker) ChunkText(text string) []*Chunk {
	var chunks []*Chunk

	boundaries := c.detectBoundaries(text)
	if len(boundaries) > 1 {
		// セクション化されたドキュメント: 境界から次の境界（またはEOF）までを1スパンとする
		for i, b := range boundaries {
			end := len(text)
			if i+1 < len(boundaries) {
				end = boundaries[i+1].offset
			}
			span := text[b.offset:end]
			var section *string
			if b.label != "" {
				label := b.label
				section = &label
			}
			c.emitSpan(&chunks, span, section)
		}
	} else {
		c.emitSpan(&chunks, text, nil)
	}

	return chunks
}

// detectBoundaries は全パターンで見出し境界を検出し、
// オフセット順にソートした上で密集した境界を集約します
func (c *Chunker) detectBoundaries(text string) []boundary {
	// 暗黙の境界を先頭に含める
	found := []boundary{{offset: 0}}

	for _, p := range headingPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			label := text[m[0]:m[1]]
			// キャプチャグループがあればそれを見出しテキストとして使う
			if len(m) > 3 && m[2] >= 0 {
				label = text[m[2]:m[3]]
			}
			found = append(found, boundary{
				offset: m[0],
				label:  strings.TrimSpace(label),
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].offset < found[j].offset
	})

	// boundaryDedupeWindow 以内の境界を最初の1つへ集約する。
	// 集約時、グループ内で最初に見つかった非空ラベルを残す
	// （暗黙の境界0と先頭見出しが重なるケースで見出しを失わないため）。
	deduped := make([]boundary, 0, len(found))
	for _, b := range found {
		if len(deduped) == 0 {
			deduped = append(deduped, b)
			continue
		}
		last := &deduped[len(deduped)-1]
		if b.offset-last.offset < boundaryDedupeWindow {
			if last.label == "" && b.label != "" {
				last.label = b.label
			}
			continue
		}
		deduped = append(deduped, b)
	}

	return deduped
}

// emitSpan はスパンを1つ以上のチャンクとして出力します
func (c *Chunker) emitSpan(chunks *[]*Chunk, span string, section *string) {
	trimmed := strings.TrimSpace(span)
	if trimmed == "" {
		return
	}

	if len(trimmed) <= c.maxChunkChars {
		c.emit(chunks, trimmed, section)
		return
	}

	c.splitByParagraphs(chunks, trimmed, section)
}

// paragraphSep は空行区切りの段落境界
var paragraphSep = regexp.MustCompile(`\n[ \t]*\n+`)

// splitByParagraphs は段落単位の貪欲な詰め込みでテキストを分割します。
// 次の段落を足すと最大文字数を超える場合はバッファをフラッシュし、
// 直前チャンクの末尾 overlapChars 文字を次のバッファの先頭へ引き継ぐ。
func (c *Chunker) splitByParagraphs(chunks *[]*Chunk, text string, section *string) {
	paragraphs := paragraphSep.Split(text, -1)

	// 段落区切りが全く無い巨大な塊は固定幅スライスへフォールバック
	if len(paragraphs) == 1 {
		c.sliceFixedWidth(chunks, text, section)
		return
	}

	const sep = "\n\n"
	var buffer string
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if buffer == "" {
			buffer = para
			continue
		}

		if len(buffer)+len(sep)+len(para) > c.maxChunkChars {
			flushed := strings.TrimSpace(buffer)
			c.emit(chunks, flushed, section)
			// フラッシュしたチャンクの末尾を引き継いで文脈を保つ
			buffer = tailChars(flushed, c.overlapChars) + sep + para
			continue
		}

		buffer += sep + para
	}

	if strings.TrimSpace(buffer) != "" {
		c.emit(chunks, strings.TrimSpace(buffer), section)
	}
}

// sliceFixedWidth は maxChunkChars 幅・overlapChars 戻りの固定ストライドで分割します
func (c *Chunker) sliceFixedWidth(chunks *[]*Chunk, text string, section *string) {
	stride := c.maxChunkChars - c.overlapChars
	for start := 0; start < len(text); start += stride {
		// マルチバイト文字の途中で切らない
		from := start
		for from < len(text) && !utf8.RuneStart(text[from]) {
			from++
		}

		end := start + c.maxChunkChars
		if end >= len(text) {
			c.emit(chunks, strings.TrimSpace(text[from:]), section)
			break
		}
		for end > from && !utf8.RuneStart(text[end]) {
			end--
		}
		c.emit(chunks, strings.TrimSpace(text[from:end]), section)
	}
}

// emit はトリム済みテキストをチャンクとして追加します。空文字列は捨てる
func (c *Chunker) emit(chunks *[]*Chunk, content string, section *string) {
	if content == "" {
		return
	}
	*chunks = append(*chunks, &Chunk{
		Index:   len(*chunks),
		Content: content,
		Section: section,
		Tokens:  c.countTokens(content),
	})
}

// countTokens はテキストのトークン数をカウントします
func (c *Chunker) countTokens(text string) int {
	tokens := c.encoder.Encode(text, nil, nil)
	return len(tokens)
}

// tailChars は文字列の末尾n文字（バイト換算、ルーン境界調整あり）を返します
func tailChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
