package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/session"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	optionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	linkStyle      = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	connectionStyles = map[session.ConnectionState]lipgloss.Style{
		session.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color("118")),
		session.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		session.Errored:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		session.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("246")),
	}

	frameStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
)

func connectionLabel(s session.ConnectionState) string {
	return connectionStyles[s].Render("● " + s.Label())
}

// formatClock renders the time of day of a message in local time.
func formatClock(t time.Time) string {
	return t.Local().Format("15:04")
}

func optionBadge(opt chat.QuickOption, reg *actions.Registry) string {
	switch opt.Kind() {
	case chat.OptionLink:
		return "↗"
	case chat.OptionAction:
		switch reg.Resolve(opt.Action).Kind {
		case actions.Call:
			return "☎"
		case actions.RedirectPromo:
			return "%"
		case actions.Unknown:
			return "?"
		}
		return "?"
	case chat.OptionReply:
		return "›"
	}
	return "›"
}

// markdownRenderer renders message bodies as rich text, falling back to the
// raw body when glamour fails.
type markdownRenderer struct {
	width int
	r     *glamour.TermRenderer
}

func (m *markdownRenderer) render(body string, width int) string {
	if width < 20 {
		width = 20
	}
	if m.r == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return body
		}
		m.r, m.width = r, width
	}
	out, err := m.r.Render(body)
	if err != nil {
		return body
	}
	return strings.Trim(out, "\n")
}

// renderTranscript lays out every message. Only the options of optionsFor
// get key hints; older options stay visible but are not selectable.
func renderTranscript(msgs []chat.Message, optionsFor string, reg *actions.Registry, md *markdownRenderer, width int) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		who := userStyle.Render("You")
		if m.FromAssistant() {
			who = assistantStyle.Render("Assistant")
		}
		sb.WriteString(who + " " + timeStyle.Render(formatClock(m.SentAt)) + "\n")
		sb.WriteString(md.render(m.Body, width))

		for j, opt := range m.Options {
			hint := "      "
			if m.ID == optionsFor && j < 9 {
				hint = fmt.Sprintf("alt+%d ", j+1)
			}
			sb.WriteString("\n" + optionStyle.Render(hint+optionBadge(opt, reg)+" "+opt.Label))
		}
		if m.AuxLink != "" {
			sb.WriteString("\n" + linkStyle.Render(m.AuxLink))
		}
	}
	return sb.String()
}

// latestWith returns the most recent assistant message accepted by keep.
func latestWith(msgs []chat.Message, keep func(chat.Message) bool) (chat.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].FromAssistant() && keep(msgs[i]) {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}

func hasOptions(m chat.Message) bool { return len(m.Options) > 0 }

func hasAuxLink(m chat.Message) bool { return m.AuxLink != "" }
