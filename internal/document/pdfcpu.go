package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPULoader 使用 pdfcpu 导出每页内容流，再从中提取文本操作数
// 适合 ledongthuc 无法处理的文件
type PDFCPULoader struct{}

// NewPDFCPULoader 创建 pdfcpu 加载器
func NewPDFCPULoader() Loader {
	return &PDFCPULoader{}
}

var pageFileRe = regexp.MustCompile(`_page_(\d+)\.txt$`)

// Load 导出内容流到临时目录并逐页解析
func (l *PDFCPULoader) Load(ctx context.Context, path string) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract content from pdf: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content dir: %w", err)
	}

	var pages []Page
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}

		number := i + 1
		if m := pageFileRe.FindStringSubmatch(e.Name()); m != nil {
			number, _ = strconv.Atoi(m[1])
		}

		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d content: %w", number, err)
		}
		pages = append(pages, Page{Number: number, Text: textFromContentStream(data)})
	}

	// 目录顺序是字典序，page_10 会排在 page_2 前面
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Number < pages[j].Number
	})

	if !HasText(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}

// textFromContentStream 从PDF内容流中收集文本显示操作的字符串
func textFromContentStream(data []byte) string {
	var out strings.Builder
	var pending []string

	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			s, next := readLiteralString(data, i+1)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			s, next := readHexString(data, i+1)
			pending = append(pending, s)
			i = next
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case isRegularByte(c):
			start := i
			for i < len(data) && isRegularByte(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				out.WriteString(strings.Join(pending, ""))
			case "'", "\"":
				newline()
				out.WriteString(strings.Join(pending, ""))
			case "Td", "TD", "T*", "ET":
				newline()
			}
			if op := string(data[start:i]); op != "" && !isNumber(op) {
				pending = pending[:0]
			}
		default:
			i++
		}
	}
	return out.String()
}

func readLiteralString(data []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 1
	for i < len(data) {
		c := data[i]
		switch c {
		case '\\':
			i++
			if i >= len(data) {
				return sb.String(), i
			}
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// 续行
			default:
				if e >= '0' && e <= '7' {
					v := 0
					n := 0
					for n < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7' {
						v = v*8 + int(data[i]-'0')
						i++
						n++
					}
					sb.WriteRune(rune(byte(v)))
					continue
				}
				sb.WriteRune(rune(e))
			}
			i++
		case '(':
			depth++
			sb.WriteByte(c)
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			// 标准字体按 Latin-1 解码
			sb.WriteRune(rune(c))
			i++
		}
	}
	return sb.String(), i
}

func readHexString(data []byte, i int) (string, int) {
	var digits []byte
	for i < len(data) && data[i] != '>' {
		if c := data[i]; (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	var sb strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		v, _ := strconv.ParseUint(string(digits[j:j+2]), 16, 8)
		sb.WriteRune(rune(byte(v)))
	}
	return sb.String(), i + 1
}

func isRegularByte(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
