package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding 默认分词编码
const DefaultEncoding = "cl100k_base"

// TokenCounter 估算提示词token数
// 编码表首次使用时加载；加载失败时按字符数估算
type TokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	err      error
}

// NewTokenCounter 创建token计数器
func NewTokenCounter(encoding string) *TokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TokenCounter{encoding: encoding}
}

// Count 返回 text 的token数，exact 表示是否为精确值
func (c *TokenCounter) Count(text string) (n int, exact bool) {
	if text == "" {
		return 0, true
	}

	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(c.encoding)
	})
	if c.err != nil || c.enc == nil {
		// 粗略估算：平均约4个字符一个token
		return (utf8.RuneCountInString(text) + 3) / 4, false
	}
	return len(c.enc.Encode(text, nil, nil)), true
}
