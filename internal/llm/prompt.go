package llm

import (
	"strings"

	"github.com/fyerfyer/lgpd-explica/internal/document"
)

// CueMarker 提示词末尾的回答提示符，后处理据此截取回答
const CueMarker = "Resposta:"

// DefaultPromptTemplate TinyLlama 对话格式的默认模板
// 包含变量：
// {{.Context}} - 检索到的文本块
// {{.Question}} - 用户问题
const DefaultPromptTemplate = `<|system|>
Você é um assistente especializado na Lei Geral de Proteção de Dados (LGPD) do Brasil.
Use o contexto fornecido para responder à pergunta do usuário de forma clara e objetiva.
Responda apenas em português.</s>
<|user|>
Contexto: {{.Context}}
Pergunta: {{.Question}}</s>
<|assistant|>
` + CueMarker + "\n"

// PromptTemplate 提示词模板
type PromptTemplate struct {
	Text string
}

// NewPromptTemplate 创建模板，为空时使用默认模板
func NewPromptTemplate(text string) PromptTemplate {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	return PromptTemplate{Text: text}
}

// Fill 按检索顺序拼接文本块并填充模板
// 没有文本块时上下文为空，问题原样填入
func (p PromptTemplate) Fill(question string, chunks []document.Chunk) string {
	text := p.Text
	if text == "" {
		text = DefaultPromptTemplate
	}
	r := strings.NewReplacer(
		"{{.Context}}", FormatContext(chunks),
		"{{.Question}}", question,
	)
	return r.Replace(text)
}

// FormatContext 以空行分隔文本块
func FormatContext(chunks []document.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
