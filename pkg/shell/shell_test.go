package shell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/session"
	"github.com/go-go-golems/chatsurface/pkg/transport"
)

type nopEffects struct {
	mu     sync.Mutex
	opened []string
}

func (n *nopEffects) OpenURL(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, url)
	return nil
}

func (n *nopEffects) Dial(context.Context, string) error { return nil }

type harness struct {
	shell    *Shell
	channels []*transport.MemoryChannel
	fx       *nopEffects
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fx: &nopEffects{}, clock: time.UnixMilli(1712345678000)}
	h.shell = New(func(context.Context) (*session.Session, error) {
		ch := transport.NewMemoryChannel()
		h.channels = append(h.channels, ch)
		h.clock = h.clock.Add(time.Millisecond)
		return session.New(session.Options{
			Channel: ch,
			Effects: h.fx,
			Now:     func() time.Time { return h.clock },
		})
	})
	t.Cleanup(func() { _ = h.shell.Close() })
	return h
}

func (h *harness) lastChannel() *transport.MemoryChannel {
	return h.channels[len(h.channels)-1]
}

func snapshot(t *testing.T, s *Shell) View {
	t.Helper()
	v, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return v
}

func TestShell_StartsClosed(t *testing.T) {
	h := newHarness(t)
	v := snapshot(t, h.shell)
	require.Equal(t, Closed, v.State)
	require.False(t, v.Visible())
	require.Empty(t, v.SessionID)
	require.Equal(t, session.Disconnected, v.Connection)

	// controls do nothing while closed
	h.shell.ToggleMinimize()
	h.shell.ToggleExpand()
	require.False(t, h.shell.Submit(context.Background(), "hi"))
	require.Equal(t, View{State: Closed, Connection: session.Disconnected}, snapshot(t, h.shell))
	require.NoError(t, h.shell.Close())
}

func TestShell_StartOpensSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.shell.Start(context.Background()))

	v := snapshot(t, h.shell)
	require.Equal(t, Open, v.State)
	require.True(t, v.Visible())
	require.NotEmpty(t, v.SessionID)
	require.Equal(t, session.Connected, v.Connection)
	require.True(t, v.CanSend)
	require.Len(t, v.Messages, 1)
	require.Len(t, h.lastChannel().SentEvents(chat.EventJoin), 1)
}

func TestShell_StartWhileOpenKeepsSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.shell.Start(context.Background()))
	id := snapshot(t, h.shell).SessionID

	h.shell.ToggleMinimize()
	require.Equal(t, OpenMinimized, h.shell.State())

	require.NoError(t, h.shell.Start(context.Background()))
	v := snapshot(t, h.shell)
	require.Equal(t, Open, v.State)
	require.Equal(t, id, v.SessionID)
	require.Len(t, h.channels, 1)
}

func TestShell_MinimizeRemembersExpanded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.shell.Start(context.Background()))

	h.shell.ToggleExpand()
	require.True(t, snapshot(t, h.shell).Expanded)

	h.shell.ToggleMinimize()
	v := snapshot(t, h.shell)
	require.Equal(t, OpenMinimized, v.State)
	require.True(t, v.Minimized)
	require.True(t, v.Expanded)

	h.shell.ToggleMinimize()
	v = snapshot(t, h.shell)
	require.Equal(t, Open, v.State)
	require.True(t, v.Expanded)

	h.shell.ToggleExpand()
	require.False(t, snapshot(t, h.shell).Expanded)
}

func TestShell_ExpandFromMinimizedRestores(t *testing.T) {
	for _, expandedBefore := range []bool{false, true} {
		h := newHarness(t)
		require.NoError(t, h.shell.Start(context.Background()))
		if expandedBefore {
			h.shell.ToggleExpand()
		}
		h.shell.ToggleMinimize()

		h.shell.ToggleExpand()
		v := snapshot(t, h.shell)
		require.Equal(t, Open, v.State)
		require.False(t, v.Minimized)
		require.True(t, v.Expanded)
	}
}

func TestShell_CloseThenStartGivesFreshSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.shell.Start(context.Background()))
	require.True(t, h.shell.Submit(context.Background(), "Hello"))
	h.shell.ToggleExpand()
	first := snapshot(t, h.shell)
	require.Len(t, first.Messages, 2)
	firstChannel := h.lastChannel()

	require.NoError(t, h.shell.Close())
	v := snapshot(t, h.shell)
	require.Equal(t, Closed, v.State)
	require.False(t, v.Expanded)
	require.False(t, v.Minimized)
	require.False(t, firstChannel.Connected())
	require.Equal(t, 1, firstChannel.Closes())
	require.NoError(t, h.shell.Close())

	require.NoError(t, h.shell.Start(context.Background()))
	second := snapshot(t, h.shell)
	require.NotEqual(t, first.SessionID, second.SessionID)
	require.Len(t, second.Messages, 1, "only the new welcome")
	require.Equal(t, chat.SenderAssistant, second.Messages[0].Sender)
	require.Len(t, h.channels, 2)
}

func TestShell_FactoryError(t *testing.T) {
	s := New(func(context.Context) (*session.Session, error) {
		return nil, errors.New("no endpoint")
	})
	err := s.Start(context.Background())
	require.ErrorContains(t, err, "no endpoint")
	require.Equal(t, Closed, s.State())
}

func TestShell_ForwardsDispatch(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.shell.Start(context.Background()))

	h.shell.Select(context.Background(), chat.QuickOption{ID: "1", Label: "Docs", Link: "https://docs"})
	msg := chat.NewAssistantMessage("read this", time.Now(), nil, "https://aux")
	h.shell.OpenAuxLink(context.Background(), msg)
	require.Equal(t, []string{"https://docs", "https://aux"}, h.fx.opened)

	h.shell.Select(context.Background(), chat.QuickOption{ID: "2", Label: "Loans"})
	v := snapshot(t, h.shell)
	require.Len(t, v.Messages, 2)
	require.Equal(t, "Loans", v.Messages[1].Body)
}
