package services

import (
	"errors"
	"fmt"
)

// Stage 问答流水线阶段
type Stage string

const (
	StageIdle           Stage = "idle"
	StageRetrieving     Stage = "retrieving"
	StagePrompting      Stage = "prompting"
	StageGenerating     Stage = "generating"
	StagePostProcessing Stage = "post_processing"
	StageDone           Stage = "done"
	StageError          Stage = "error"
)

// 流水线错误类别，配合 errors.Is 使用
var (
	ErrEmptyQuestion    = errors.New("empty question")
	ErrNotInitialized   = errors.New("pipeline not initialized")
	ErrRetrievalFailed  = errors.New("retrieval failed")
	ErrGenerationFailed = errors.New("generation failed")
)

// 面向用户的提示信息
const (
	MsgEmptyQuestion    = "Por favor, digite uma pergunta."
	MsgNotInitialized   = "A cadeia de RAG não foi inicializada corretamente. Verifique os logs."
	MsgRetrievalFailed  = "Ocorreu um erro ao buscar os trechos relevantes da lei."
	MsgGenerationFailed = "Ocorreu um erro ao gerar a resposta."
)

// PipelineError 问答流水线错误
// Message 可以直接展示给用户，Detail 只用于排查
type PipelineError struct {
	Kind    error  // 错误类别
	Stage   Stage  // 出错阶段
	Message string // 用户提示
	Detail  string // 技术细节
	Err     error  // 原始错误
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%v at %s", e.Kind, e.Stage)
}

// Unwrap 同时暴露错误类别和原始错误
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsWarning 空问题只是提示，不算失败
func (e *PipelineError) IsWarning() bool {
	return errors.Is(e.Kind, ErrEmptyQuestion)
}

func newPipelineError(kind error, stage Stage, message string, err error) *PipelineError {
	pe := &PipelineError{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
	if err != nil {
		pe.Detail = err.Error()
	}
	return pe
}
