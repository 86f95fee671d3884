package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// 常用错误定义
var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrNoText          = errors.New("no text content found in document")
)

// Page 文档中的一页文本
type Page struct {
	Number int    // 页码，从1开始
	Text   string // 页面纯文本
}

// Loader 文档加载器接口
// 负责把源文档解析为按阅读顺序排列的页面
type Loader interface {
	Load(ctx context.Context, path string) ([]Page, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	PDF       ContentType = "pdf"
	Markdown  ContentType = "markdown"
	PlainText ContentType = "plaintext"
	Unknown   ContentType = "unknown"
)

// PDF 解析引擎
const (
	EngineLedongthuc = "ledongthuc"
	EnginePDFCPU     = "pdfcpu"
)

// NewLoader 根据文件类型创建对应的加载器
// engine 只对PDF生效，为空时使用 ledongthuc
func NewLoader(path string, engine string) (Loader, error) {
	switch DetectContentType(path) {
	case PDF:
		switch engine {
		case "", EngineLedongthuc:
			return NewPDFLoader(), nil
		case EnginePDFCPU:
			return NewPDFCPULoader(), nil
		default:
			return nil, fmt.Errorf("unknown pdf engine %q", engine)
		}
	case Markdown:
		return NewMarkdownLoader(), nil
	case PlainText:
		return NewPlainTextLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(path string) ContentType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// HasText 判断页面中是否有非空白文本
func HasText(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
