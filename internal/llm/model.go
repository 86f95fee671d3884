package llm

import "time"

// 常用模型名称
const (
	ModelTinyLlamaChat = "TinyLlama/TinyLlama-1.1B-Chat-v1.0" // 本地默认模型
	ModelOllamaDefault = "tinyllama"                          // Ollama 中的对应模型
)

// 设备选择
const (
	DeviceAuto = "auto" // 有GPU时使用GPU
	DeviceCPU  = "cpu"
)

// DecodingConfig 解码参数，进程内固定不变
type DecodingConfig struct {
	MaxNewTokens int     // 最大生成Token数
	DoSample     bool    // 是否采样；为 false 时贪心解码
	Temperature  float32 // 采样温度
	TopK         int     // 生成候选集大小
	Device       string  // "auto" 或 "cpu"
}

// DefaultDecodingConfig 返回默认解码参数
func DefaultDecodingConfig() DecodingConfig {
	return DecodingConfig{
		MaxNewTokens: 1024,
		DoSample:     true,
		Temperature:  0.7,
		TopK:         50,
		Device:       DeviceAuto,
	}
}

// Response 统一的响应结构
type Response struct {
	Text             string    // 原始生成文本，可能包含回显的提示词
	PromptTokens     int       // 提示词token数，后端未返回时为0
	CompletionTokens int       // 生成token数
	ModelName        string    // 使用的模型名称
	FinishTime       time.Time // 完成时间
}
