package llm

import (
	"fmt"
	"strings"
)

// PostProcessor 把模型原始输出转换为最终回答
type PostProcessor interface {
	Process(raw string) string
}

// MarkerPostProcessor 截取最后一个提示符之后的文本
// 适用于会回显提示词的后端
type MarkerPostProcessor struct {
	Marker string
}

// NewMarkerPostProcessor 创建提示符后处理器
func NewMarkerPostProcessor(marker string) MarkerPostProcessor {
	return MarkerPostProcessor{Marker: marker}
}

// Process 没有提示符时返回去除首尾空白的原文
func (p MarkerPostProcessor) Process(raw string) string {
	if p.Marker == "" {
		return strings.TrimSpace(raw)
	}
	if i := strings.LastIndex(raw, p.Marker); i >= 0 {
		raw = raw[i+len(p.Marker):]
	}
	return strings.TrimSpace(raw)
}

// TrimPostProcessor 只去除首尾空白
type TrimPostProcessor struct{}

// Process 实现 PostProcessor
func (TrimPostProcessor) Process(raw string) string {
	return strings.TrimSpace(raw)
}

// NewPostProcessor 按名称创建后处理器："marker" 或 "trim"
func NewPostProcessor(name string) (PostProcessor, error) {
	switch name {
	case "", "marker":
		return NewMarkerPostProcessor(CueMarker), nil
	case "trim":
		return TrimPostProcessor{}, nil
	default:
		return nil, fmt.Errorf("unknown post processor %q", name)
	}
}
