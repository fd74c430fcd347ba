package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/session"
	"github.com/go-go-golems/chatsurface/pkg/shell"
)

const (
	compactHeight = 14
	inputHeight   = 3
)

// refreshMsg asks the model to re-read the shell, optionally reporting an error.
type refreshMsg struct {
	err error
}

type updateMsg session.Update

// Model renders a shell.Shell in a terminal.
type Model struct {
	ctx      context.Context
	shell    *shell.Shell
	registry *actions.Registry
	updates  <-chan session.Update

	input    textarea.Model
	viewport viewport.Model
	md       *markdownRenderer

	view   shell.View
	width  int
	height int
	err    error
}

// NewModel builds the UI. updates may be nil; when set, every session update
// triggers a redraw.
func NewModel(ctx context.Context, sh *shell.Shell, reg *actions.Registry, updates <-chan session.Update) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	if reg == nil {
		reg = actions.NewRegistry("")
	}
	m := Model{
		ctx:      ctx,
		shell:    sh,
		registry: reg,
		updates:  updates,
		input:    ta,
		viewport: viewport.New(80, compactHeight),
		md:       &markdownRenderer{},
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func waitForUpdate(ch <-chan session.Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForUpdate(m.updates))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = ev.Width, ev.Height
		m.refresh()
		return m, nil

	case updateMsg:
		m.refresh()
		return m, waitForUpdate(m.updates)

	case refreshMsg:
		m.err = ev.err
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(ev)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, keys.Quit):
		if err := m.shell.Close(); err != nil {
			log.Warn().Err(err).Msg("close on quit")
		}
		return m, tea.Quit

	case key.Matches(k, keys.Start):
		sh, ctx := m.shell, m.ctx
		return m, func() tea.Msg {
			return refreshMsg{err: sh.Start(ctx)}
		}

	case key.Matches(k, keys.Close):
		err := m.shell.Close()
		m.input.Reset()
		return m, func() tea.Msg { return refreshMsg{err: err} }

	case key.Matches(k, keys.Minimize):
		m.shell.ToggleMinimize()
		m.refresh()
		return m, nil

	case key.Matches(k, keys.Expand):
		m.shell.ToggleExpand()
		m.refresh()
		return m, nil

	case key.Matches(k, keys.OpenAuxLink):
		if msg, ok := latestWith(m.view.Messages, hasAuxLink); ok {
			m.shell.OpenAuxLink(m.ctx, msg)
		}
		return m, nil

	case isSubmitKey(k):
		if m.view.State != shell.Open {
			return m, nil
		}
		if m.shell.Submit(m.ctx, m.input.Value()) {
			m.input.Reset()
		}
		m.refresh()
		return m, nil
	}

	if i, ok := optionIndex(k); ok {
		if m.view.State != shell.Open {
			return m, nil
		}
		if msg, found := latestWith(m.view.Messages, hasOptions); found && i < len(msg.Options) {
			m.shell.Select(m.ctx, msg.Options[i])
			m.refresh()
		}
		return m, nil
	}

	if m.view.State != shell.Open {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

// refresh re-reads the shell and lays out the transcript.
func (m *Model) refresh() {
	v, err := m.shell.Snapshot(m.ctx)
	if err != nil {
		m.err = err
	}
	m.view = v

	contentWidth := m.width - frameStyle.GetHorizontalFrameSize()
	if contentWidth < 20 {
		contentWidth = 20
	}
	vpHeight := compactHeight
	if v.Expanded {
		vpHeight = m.height - inputHeight - 6
	}
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = contentWidth
	m.viewport.Height = vpHeight
	m.input.SetWidth(contentWidth)

	if v.CanSend {
		m.input.Focus()
	} else {
		m.input.Blur()
	}

	optionsFor := ""
	if latest, ok := latestWith(v.Messages, hasOptions); ok {
		optionsFor = latest.ID
	}
	m.viewport.SetContent(renderTranscript(v.Messages, optionsFor, m.registry, m.md, contentWidth))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var body string
	switch m.view.State {
	case shell.Closed:
		body = headerStyle.Render("Chat closed") + "\n" + helpStyle.Render("ctrl+s start  ctrl+c quit")
	case shell.OpenMinimized:
		body = headerStyle.Render("Chat") + "  " + connectionLabel(m.view.Connection) + "  " +
			helpStyle.Render("(minimized, ctrl+n restore)")
	case shell.Open:
		header := headerStyle.Render("Chat") + "  " + connectionLabel(m.view.Connection)
		body = lipgloss.JoinVertical(lipgloss.Left,
			header,
			m.viewport.View(),
			m.input.View(),
			helpStyle.Render(helpLine()),
		)
	}
	if m.err != nil {
		body += "\n" + errorStyle.Render("Error: "+m.err.Error())
	}
	return frameStyle.Render(body)
}

// Selectable returns the options currently bound to alt+1..9.
func (m Model) Selectable() []chat.QuickOption {
	msg, ok := latestWith(m.view.Messages, hasOptions)
	if !ok {
		return nil
	}
	return msg.Options
}
