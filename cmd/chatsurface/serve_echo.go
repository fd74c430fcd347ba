package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatsurface/pkg/peer"
)

func newServeEchoCmd() *cobra.Command {
	var (
		addr string
		path string
	)
	cmd := &cobra.Command{
		Use:   "serve-echo",
		Short: "Serve a local assistant that echoes every message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveEcho(cmd.Context(), addr, path)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&path, "path", "/ws", "websocket path")
	return cmd
}

func serveEcho(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, peer.NewEchoHandler(peer.EchoReply))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", addr).Str("path", path).Msg("echo assistant listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down echo assistant")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
