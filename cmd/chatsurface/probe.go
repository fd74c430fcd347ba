package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/redisstream"
	"github.com/go-go-golems/chatsurface/pkg/session"
	"github.com/go-go-golems/chatsurface/pkg/shell"
)

type probeFlags struct {
	connectTimeout time.Duration
	wait           time.Duration
	stdin          bool
}

func newProbeCmd() *cobra.Command {
	f := &probeFlags{}
	cmd := &cobra.Command{
		Use:   "probe [message...]",
		Short: "Connect headlessly, send messages and print the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if f.stdin {
				read, err := readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				lines = append(lines, read...)
			}
			return runProbe(cmd.Context(), f, lines, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&f.connectTimeout, "connect-timeout", 10*time.Second, "how long to wait for the connection")
	cmd.Flags().DurationVar(&f.wait, "wait", 2*time.Second, "how long to wait for replies after the last message")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "also send every line read from stdin")
	return cmd
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read stdin")
	}
	return out, nil
}

// connectWatcher closes ready on the first connected update and fails on a
// connection error.
type connectWatcher struct {
	once  sync.Once
	ready chan struct{}
	err   error
}

func (w *connectWatcher) observe(u session.Update) {
	if u.Kind != session.UpdateConnection {
		return
	}
	switch u.State {
	case session.Connected.String():
		w.once.Do(func() { close(w.ready) })
	case session.Errored.String():
		w.once.Do(func() {
			w.err = errors.New("connection error")
			close(w.ready)
		})
	}
}

func runProbe(ctx context.Context, f *probeFlags, lines []string, out io.Writer) error {
	bus, err := redisstream.BuildBus(ctx, settings.Redis)
	if err != nil {
		return errors.Wrap(err, "build update bus")
	}
	defer func() { _ = bus.Close() }()

	subCtx, stopUpdates := context.WithCancel(ctx)
	defer stopUpdates()
	updates, err := bus.Subscribe(subCtx)
	if err != nil {
		return err
	}

	reg := actions.NewRegistry(settings.PromoURL)
	sh := shell.New(newSessionFactory(settings, reg, actions.SystemEffects{}, bus))
	defer func() { _ = sh.Close() }()

	watcher := &connectWatcher{ready: make(chan struct{})}
	eg, egCtx := errgroup.WithContext(subCtx)
	eg.Go(func() error {
		for u := range updates {
			log.Debug().Str("kind", string(u.Kind)).Str("state", u.State).Str("message_id", u.MessageID).Msg("session update")
			watcher.observe(u)
		}
		return nil
	})

	eg.Go(func() error {
		defer stopUpdates()
		if err := sh.Start(egCtx); err != nil {
			return err
		}
		select {
		case <-watcher.ready:
			if watcher.err != nil {
				return errors.Wrapf(watcher.err, "connect to %s", settings.Endpoint)
			}
		case <-time.After(f.connectTimeout):
			return errors.Errorf("timed out connecting to %s", settings.Endpoint)
		case <-egCtx.Done():
			return egCtx.Err()
		}

		for _, line := range lines {
			if !sh.Submit(egCtx, line) {
				log.Warn().Str("text", line).Msg("message not sent")
			}
		}
		select {
		case <-time.After(f.wait):
		case <-egCtx.Done():
		}

		v, err := sh.Snapshot(context.WithoutCancel(egCtx))
		if err != nil {
			return err
		}
		printTranscript(out, v.Messages)
		return nil
	})

	return eg.Wait()
}

func printTranscript(out io.Writer, msgs []chat.Message) {
	for _, m := range msgs {
		who := "you"
		if m.FromAssistant() {
			who = "assistant"
		}
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), who, strings.TrimSpace(m.Body))
		for _, o := range m.Options {
			detail := ""
			switch o.Kind() {
			case chat.OptionLink:
				detail = " -> " + o.Link
			case chat.OptionAction:
				detail = " (" + o.Action + ")"
			case chat.OptionReply:
			}
			_, _ = fmt.Fprintf(out, "    - %s%s\n", o.Label, detail)
		}
		if m.AuxLink != "" {
			_, _ = fmt.Fprintf(out, "    link: %s\n", m.AuxLink)
		}
	}
}
