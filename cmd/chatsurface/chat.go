package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/redisstream"
	"github.com/go-go-golems/chatsurface/pkg/shell"
	"github.com/go-go-golems/chatsurface/pkg/ui"
)

func newChatCmd() *cobra.Command {
	var startOpen bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bus, err := redisstream.BuildBus(ctx, settings.Redis)
			if err != nil {
				return errors.Wrap(err, "build update bus")
			}
			defer func() {
				if err := bus.Close(); err != nil {
					log.Warn().Err(err).Msg("close update bus")
				}
			}()
			updates, err := bus.Subscribe(ctx)
			if err != nil {
				return err
			}

			reg := actions.NewRegistry(settings.PromoURL)
			sh := shell.New(newSessionFactory(settings, reg, actions.SystemEffects{}, bus))
			defer func() { _ = sh.Close() }()

			if startOpen {
				if err := sh.Start(ctx); err != nil {
					return err
				}
			}

			p := tea.NewProgram(ui.NewModel(ctx, sh, reg, updates), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return errors.Wrap(err, "run ui")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&startOpen, "open", true, "start with the chat open")
	return cmd
}
