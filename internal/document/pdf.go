package document

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFLoader 基于 ledongthuc/pdf 的逐页文本提取
type PDFLoader struct{}

// NewPDFLoader 创建PDF加载器
func NewPDFLoader() Loader {
	return &PDFLoader{}
}

// Load 按页提取PDF文本，保留空白页的页码占位
func (l *PDFLoader) Load(ctx context.Context, path string) (pages []Page, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	// 解析器在畸形字体表上会panic
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("failed to parse pdf %s: %v", path, rec)
		}
	}()

	total := r.NumPage()
	pages = make([]Page, 0, total)
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}

		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if !HasText(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}
