package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/session"
	"github.com/go-go-golems/chatsurface/pkg/shell"
	"github.com/go-go-golems/chatsurface/pkg/transport"
)

type recordingEffects struct {
	mu     sync.Mutex
	opened []string
	dialed []string
}

func (r *recordingEffects) OpenURL(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, url)
	return nil
}

func (r *recordingEffects) Dial(_ context.Context, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialed = append(r.dialed, number)
	return nil
}

type harness struct {
	model Model
	ch    *transport.MemoryChannel
	fx    *recordingEffects
	sh    *shell.Shell
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fx: &recordingEffects{}}
	reg := actions.NewRegistry("https://promo")
	h.sh = shell.New(func(context.Context) (*session.Session, error) {
		h.ch = transport.NewMemoryChannel()
		return session.New(session.Options{Channel: h.ch, Registry: reg, Effects: h.fx})
	})
	t.Cleanup(func() { _ = h.sh.Close() })
	h.model = NewModel(context.Background(), h.sh, reg, nil)
	return h
}

// send feeds msg to the model and runs any command it returns once.
func (h *harness) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	m, cmd := h.model.Update(msg)
	h.model = m.(Model)
	if cmd == nil {
		return
	}
	if next := cmd(); next != nil {
		if _, ok := next.(refreshMsg); ok {
			m, _ = h.model.Update(next)
			h.model = m.(Model)
		}
	}
}

func (h *harness) typeText(t *testing.T, s string) {
	t.Helper()
	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestIsSubmitKey(t *testing.T) {
	require.True(t, isSubmitKey(tea.KeyMsg{Type: tea.KeyEnter}))
	require.False(t, isSubmitKey(tea.KeyMsg{Type: tea.KeyEnter, Alt: true}))
	require.False(t, isSubmitKey(tea.KeyMsg{Type: tea.KeyCtrlJ}))
	require.False(t, isSubmitKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}))
}

func TestOptionIndex(t *testing.T) {
	i, ok := optionIndex(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1"), Alt: true})
	require.True(t, ok)
	require.Equal(t, 0, i)

	i, ok = optionIndex(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("9"), Alt: true})
	require.True(t, ok)
	require.Equal(t, 8, i)

	_, ok = optionIndex(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	require.False(t, ok)
	_, ok = optionIndex(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0"), Alt: true})
	require.False(t, ok)
}

func TestOptionBadge(t *testing.T) {
	reg := actions.NewRegistry("https://promo")
	require.Equal(t, "↗", optionBadge(chat.QuickOption{Label: "a", Link: "https://x"}, reg))
	require.Equal(t, "☎", optionBadge(chat.QuickOption{Label: "a", Action: "call_1900633070"}, reg))
	require.Equal(t, "%", optionBadge(chat.QuickOption{Label: "a", Action: "redirect_to_promo_page"}, reg))
	require.Equal(t, "?", optionBadge(chat.QuickOption{Label: "a", Action: "fly"}, reg))
	require.Equal(t, "›", optionBadge(chat.QuickOption{Label: "a"}, reg))
}

func TestFormatClock(t *testing.T) {
	at := time.Date(2024, 4, 5, 9, 7, 59, 0, time.Local)
	require.Equal(t, "09:07", formatClock(at))
}

func TestRenderTranscript_HintsOnlyLatestOptions(t *testing.T) {
	reg := actions.NewRegistry("")
	older := chat.NewAssistantMessage("first", time.Now(), []chat.QuickOption{{ID: "1", Label: "Old choice"}}, "")
	latest := chat.NewAssistantMessage("second", time.Now(), []chat.QuickOption{{ID: "1", Label: "New choice"}}, "https://aux")

	out := renderTranscript([]chat.Message{older, latest}, latest.ID, reg, &markdownRenderer{}, 60)
	require.Contains(t, out, "Old choice")
	require.Contains(t, out, "alt+1 › New choice")
	require.NotContains(t, out, "alt+1 › Old choice")
	require.Contains(t, out, "https://aux")
}

func TestModel_StartsClosed(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, shell.Closed, h.model.view.State)
	require.Contains(t, h.model.View(), "Chat closed")

	// typing while closed goes nowhere
	h.typeText(t, "hi")
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, h.ch)
}

func TestModel_StartSubmitAndClose(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, shell.Open, h.model.view.State)
	require.Equal(t, session.Connected, h.model.view.Connection)
	require.Len(t, h.model.view.Messages, 1)
	require.Contains(t, h.model.View(), "Online")

	h.typeText(t, "Hello")
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, h.model.view.Messages, 2)
	require.Equal(t, "Hello", h.model.view.Messages[1].Body)
	require.Empty(t, h.model.input.Value())
	require.Len(t, h.ch.SentEvents(chat.EventSendMessage), 1)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlW})
	require.Equal(t, shell.Closed, h.model.view.State)
	require.False(t, h.ch.Connected())
}

func TestModel_ModifiedEnterInsertsNewline(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})

	h.typeText(t, "line one")
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	h.typeText(t, "line two")
	require.Equal(t, "line one\nline two", h.model.input.Value())
	require.Len(t, h.model.view.Messages, 1)

	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "line one\nline two", h.model.view.Messages[1].Body)
}

func TestModel_SelectsWelcomeOption(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Len(t, h.model.Selectable(), 3)

	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2"), Alt: true})
	msgs := h.model.view.Messages
	require.Len(t, msgs, 2)
	require.Equal(t, chat.DefaultWelcome().Options[1], msgs[1].Body)
}

func TestModel_ActionOptionAndAuxLink(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NoError(t, h.ch.Deliver(chat.EventReceiveMessage, map[string]any{
		"id":        1,
		"text":      "Need help?",
		"sender":    "bot",
		"timestamp": chat.FormatTimestamp(time.Now()),
		"link":      "https://faq",
		"options": []map[string]any{
			{"id": "a", "label": "Call", "action": "call_1900633070"},
			{"id": "b", "label": "Deals", "action": "redirect_to_promo_page"},
		},
	}))
	h.send(t, updateMsg{})

	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1"), Alt: true})
	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2"), Alt: true})
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlL})

	require.Equal(t, []string{"1900633070"}, h.fx.dialed)
	require.Equal(t, []string{"https://promo", "https://faq"}, h.fx.opened)
	require.Len(t, h.model.view.Messages, 2)
}

func TestModel_MinimizeAndExpand(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.WindowSizeMsg{Width: 100, Height: 40})
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, compactHeight, h.model.viewport.Height)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Equal(t, shell.OpenMinimized, h.model.view.State)
	require.Contains(t, h.model.View(), "minimized")

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlE})
	require.Equal(t, shell.Open, h.model.view.State)
	require.True(t, h.model.view.Expanded)
	require.Greater(t, h.model.viewport.Height, compactHeight)
}
