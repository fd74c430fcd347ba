package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Start       key.Binding
	Close       key.Binding
	Minimize    key.Binding
	Expand      key.Binding
	OpenAuxLink key.Binding
	Newline     key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	Start:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "start")),
	Close:       key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "close")),
	Minimize:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "minimize")),
	Expand:      key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "expand")),
	OpenAuxLink: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "open link")),
	// terminals do not report shift+enter; these are the modified enters they do report
	Newline: key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"), key.WithHelp("alt+enter", "newline")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

// isSubmitKey reports whether k is an unmodified enter.
func isSubmitKey(k tea.KeyMsg) bool {
	return k.Type == tea.KeyEnter && !k.Alt && len(k.Runes) == 0
}

// optionIndex maps alt+1 .. alt+9 to a zero-based option index.
func optionIndex(k tea.KeyMsg) (int, bool) {
	if k.Type != tea.KeyRunes || !k.Alt || len(k.Runes) != 1 {
		return 0, false
	}
	r := k.Runes[0]
	if r < '1' || r > '9' {
		return 0, false
	}
	return int(r - '1'), true
}

func helpLine() string {
	bindings := []key.Binding{keys.Start, keys.Close, keys.Minimize, keys.Expand, keys.OpenAuxLink, keys.Newline, keys.Quit}
	out := ""
	for i, b := range bindings {
		if i > 0 {
			out += "  "
		}
		out += b.Help().Key + " " + b.Help().Desc
	}
	return out + "  alt+1..9 option"
}
