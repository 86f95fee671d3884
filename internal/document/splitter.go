package document

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChunkConfig 分块参数不合法
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// DefaultSeparators 切分边界的优先级：段落、行、句子、单词
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// SplitterConfig 分块器配置
// 长度单位为Unicode码点
type SplitterConfig struct {
	ChunkSize    int      // 每块最大长度
	ChunkOverlap int      // 相邻块的重叠长度
	Separators   []string // 为空时使用 DefaultSeparators
}

// DefaultSplitterConfig 返回默认分块配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 150,
		Separators:   DefaultSeparators,
	}
}

// Chunk 切分后的文本块
type Chunk struct {
	ID     string // 块标识
	Index  int    // 在整个文档中的顺序
	Page   int    // 来源页码
	Source string // 来源文档
	Text   string // 块内容
}

// Splitter 文本分块器接口
type Splitter interface {
	Split(pages []Page) ([]Chunk, error)
}

// RecursiveSplitter 按边界优先级切分的重叠分块器
//
// 同一页内相邻两块恰好共享 ChunkOverlap 个字符：后一块从前一块末尾回退
// ChunkOverlap 处开始。去掉重叠后按顺序拼接可以还原整页文本。
type RecursiveSplitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// NewRecursiveSplitter 创建分块器
func NewRecursiveSplitter(cfg SplitterConfig) (*RecursiveSplitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			ErrInvalidChunkConfig, cfg.ChunkSize, cfg.ChunkOverlap)
	}

	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	runeSeps := make([][]rune, 0, len(seps))
	for _, s := range seps {
		if s != "" {
			runeSeps = append(runeSeps, []rune(s))
		}
	}

	return &RecursiveSplitter{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: runeSeps,
	}, nil
}

// Split 按页切分，保持阅读顺序；空白页不产生文本块
func (s *RecursiveSplitter) Split(pages []Page) ([]Chunk, error) {
	var chunks []Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, text := range s.SplitText(page.Text) {
			chunks = append(chunks, Chunk{
				ID:    fmt.Sprintf("chunk-%05d", len(chunks)),
				Index: len(chunks),
				Page:  page.Number,
				Text:  text,
			})
		}
	}
	return chunks, nil
}

// SplitText 切分单页文本
func (s *RecursiveSplitter) SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var parts []string
	start := 0
	for len(runes)-start > s.size {
		end := s.cutPoint(runes, start)
		parts = append(parts, string(runes[start:end]))
		start = end - s.overlap
	}
	return append(parts, string(runes[start:]))
}

// cutPoint 在 (start+overlap, start+size] 内寻找最靠后的边界
// 下界保证下一块的起点严格前进
func (s *RecursiveSplitter) cutPoint(runes []rune, start int) int {
	lo := start + s.overlap + 1
	hi := start + s.size

	for _, sep := range s.separators {
		for end := hi; end >= lo; end-- {
			if end-len(sep) < start {
				break
			}
			if hasSuffixAt(runes, end, sep) {
				return end
			}
		}
	}
	return hi
}

func hasSuffixAt(runes []rune, end int, sep []rune) bool {
	for i := range sep {
		if runes[end-len(sep)+i] != sep[i] {
			return false
		}
	}
	return true
}
