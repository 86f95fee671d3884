package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyerfyer/lgpd-explica/internal/services"
)

// 界面文案
const (
	Heading     = "⚖️ LGPD-Explica: Seu Assistente Inteligente para a LGPD"
	Intro       = "Pergunte sobre a Lei Geral de Proteção de Dados. Enter envia, Tab mostra as fontes, Ctrl+C sai."
	Placeholder = "Ex: Quais são os direitos do titular dos dados?"
	Thinking    = "Pensando... (o carregamento inicial do modelo pode levar alguns minutos)"
)

// Answerer 终端界面使用的问答能力
type Answerer interface {
	Answer(ctx context.Context, question string) (*services.Answer, error)
}

// answerMsg 异步问答的结果
type answerMsg struct {
	answer *services.Answer
	err    error
}

// Model 终端问答界面
type Model struct {
	ctx         context.Context
	service     Answerer
	input       textinput.Model
	viewport    viewport.Model
	answer      *services.Answer
	warning     string
	errMsg      string
	detail      string
	status      string
	busy        bool
	showSources bool
	ready       bool
}

// New 创建终端界面
func New(ctx context.Context, service Answerer) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = Placeholder
	ti.CharLimit = 2000
	ti.Focus()

	return Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Faça sua pergunta sobre a LGPD aqui.",
	}
}

// Init 光标闪烁
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update 处理按键、窗口和问答结果消息
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1 // 标题、说明、状态和间隔
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		m.answer, m.warning, m.errMsg, m.detail = nil, "", "", ""
		if msg.err != nil {
			m.applyError(msg.err)
		} else {
			m.answer = msg.answer
			m.status = fmt.Sprintf("Resposta Gerada! (%d ms)", msg.answer.Elapsed.Milliseconds())
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			if m.answer != nil {
				m.showSources = !m.showSources
				m.refresh()
			}
			return m, nil
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.showSources = false
			m.status = Thinking
			return m, m.ask(m.input.Value())
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask 在后台调用问答服务，生成可能耗时数分钟
func (m Model) ask(question string) tea.Cmd {
	service, ctx := m.service, m.ctx
	return func() tea.Msg {
		answer, err := service.Answer(ctx, question)
		return answerMsg{answer: answer, err: err}
	}
}

func (m *Model) applyError(err error) {
	var pe *services.PipelineError
	if !errors.As(err, &pe) {
		m.errMsg = services.MsgGenerationFailed
		m.detail = err.Error()
		m.status = "Erro"
		return
	}
	if pe.IsWarning() {
		m.warning = pe.Message
		m.status = "Aviso"
		return
	}
	m.errMsg = pe.Message
	m.detail = pe.Detail
	m.status = "Erro"
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderBody())
	m.viewport.GotoTop()
}

// View 渲染界面
func (m Model) View() string {
	if !m.ready {
		return "Carregando..."
	}
	header := headerStyle.Render(Heading)
	intro := introStyle.Render(Intro)
	body := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + intro + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderBody() string {
	width := max(20, m.viewport.Width-2)
	wrap := lipgloss.NewStyle().Width(width)

	switch {
	case m.warning != "":
		return warningStyle.Render(m.warning)
	case m.errMsg != "":
		out := errorStyle.Render(m.errMsg)
		if m.detail != "" {
			out += "\n\n" + detailStyle.Render("Detalhes técnicos:") + "\n" + wrap.Render(m.detail)
		}
		return out
	case m.answer == nil:
		return introStyle.Render("Nenhuma pergunta ainda.")
	}

	var b strings.Builder
	b.WriteString(wrap.Render(m.answer.Text))
	b.WriteString("\n\n")
	if !m.showSources {
		b.WriteString(detailStyle.Render(fmt.Sprintf("[Tab] Ver fontes consultadas (%d)", len(m.answer.Sources))))
		return b.String()
	}

	for i, src := range m.answer.Sources {
		title := fmt.Sprintf("Fonte %d:", i+1)
		if src.Page > 0 {
			title += fmt.Sprintf(" (página %d)", src.Page)
		}
		b.WriteString(sourceTitleStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(wrap.Render(src.Text))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	headerStyle      = lipgloss.NewStyle().Bold(true)
	introStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	detailStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	sourceTitleStyle = lipgloss.NewStyle().Bold(true)
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
