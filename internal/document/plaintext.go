package document

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PlainTextLoader 纯文本加载器
// 换页符 \f 视为分页
type PlainTextLoader struct{}

// NewPlainTextLoader 创建新的纯文本加载器
func NewPlainTextLoader() Loader {
	return &PlainTextLoader{}
}

// Load 读取文本文件并按换页符分页
func (l *PlainTextLoader) Load(ctx context.Context, path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	parts := strings.Split(text, "\f")

	pages := make([]Page, len(parts))
	for i, part := range parts {
		pages[i] = Page{Number: i + 1, Text: part}
	}

	if !HasText(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}
