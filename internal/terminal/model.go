// Package terminal is the full-screen catalog front end. It renders the
// screen machine with Bubble Tea and polls the machine on every half delay
// tick so the counting screen can move on without input.
package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/eigenbahn/dynix/internal/render"
	"github.com/eigenbahn/dynix/internal/screen"
)

const defaultHalfDelay = 500 * time.Millisecond

type tickMsg time.Time

type Model struct {
	ctx       context.Context
	machine   *screen.Machine
	renderer  *render.Renderer
	input     textinput.Model
	halfDelay time.Duration
	height    int
	logger    *slog.Logger
}

func New(ctx context.Context, m *screen.Machine, r *render.Renderer, halfDelay time.Duration) Model {
	if halfDelay <= 0 {
		halfDelay = defaultHalfDelay
	}
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 120
	ti.Width = 40
	ti.Focus()

	return Model{
		ctx:       ctx,
		machine:   m,
		renderer:  r,
		input:     ti,
		halfDelay: halfDelay,
		logger:    slog.Default().With("component", "terminal"),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.halfDelay, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.renderer.SetWidth(msg.Width)
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.machine.Advance(m.ctx) {
			m.logger.Debug("screen advanced", "screen", m.machine.Current().ID)
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			cmd := m.input.Value()
			m.input.Reset()
			m.machine.Handle(m.ctx, cmd)
			if m.machine.Done() {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	page := m.renderer.Render(m.machine.Frame())
	width := m.renderer.Width()

	var b strings.Builder
	for _, l := range page.Header {
		b.WriteString(headerStyle.Width(width).Render(l))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(bodyStyle.Render(strings.Join(page.Body, "\n")))
	b.WriteString("\n\n")

	// Keep the prompt near the bottom of the screen like the original
	// terminals did.
	used := len(page.Header) + len(page.Body) + 6
	if pad := m.height - used; pad > 0 {
		b.WriteString(strings.Repeat("\n", pad))
	}
	if page.Notice != "" {
		b.WriteString(noticeStyle.Render(page.Notice))
	}
	b.WriteByte('\n')
	b.WriteString(commandStyle.Render(page.Commands))
	b.WriteByte('\n')
	b.WriteString(promptStyle.Render(page.Prompt))
	b.WriteByte(' ')
	b.WriteString(m.input.View())
	return b.String()
}

// Run shows the catalog full screen until the patron quits or ctx ends.
func Run(ctx context.Context, m *screen.Machine, r *render.Renderer, halfDelay time.Duration) error {
	p := tea.NewProgram(New(ctx, m, r, halfDelay), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	return nil
}
