package document

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownLoader Markdown文档加载器
// Markdown没有分页，整个文件作为第1页
type MarkdownLoader struct{}

// NewMarkdownLoader 创建新的Markdown加载器
func NewMarkdownLoader() Loader {
	return &MarkdownLoader{}
}

// Load 读取Markdown并提取纯文本
func (l *MarkdownLoader) Load(ctx context.Context, path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}

	pages := []Page{{Number: 1, Text: MarkdownToText(content)}}
	if !HasText(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}

// MarkdownToText 遍历Markdown语法树收集文本
// 块级元素之间用空行分隔，便于分块器按段落切分
func MarkdownToText(content []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(content)

	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				sb.Write(n.Literal)
			}
		case *ast.Code:
			if entering {
				sb.Write(n.Literal)
			}
		case *ast.CodeBlock:
			if entering {
				sb.Write(n.Literal)
				sb.WriteString("\n")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				sb.WriteString("\n")
			}
		case *ast.ListItem:
			if entering {
				sb.WriteString("- ")
			} else {
				sb.WriteString("\n")
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				if _, inList := n.GetParent().(*ast.ListItem); !inList {
					sb.WriteString("\n\n")
				}
			}
		}
		return ast.GoToNext
	})

	return strings.TrimSpace(sb.String())
}
