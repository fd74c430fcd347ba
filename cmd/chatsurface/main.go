package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/chatsurface/pkg/config"
	"github.com/go-go-golems/chatsurface/pkg/logging"
)

var (
	settings  config.Settings
	logCloser io.Closer
)

type rootFlags struct {
	configFile string
	endpoint   string
	transcript string
	redis      bool
	redisAddr  string
	logLevel   string
	logFile    string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "chatsurface",
		Short:         "chatsurface is a terminal client for a real-time chat assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(config.LoadOptions{File: flags.configFile})
			if err != nil {
				return err
			}
			flags.apply(cmd, &s)
			// the TUI owns the terminal, so its logs go to a file unless told otherwise
			if cmd.Name() == "chat" && s.Log.File == "" {
				s.Log.File = filepath.Join(os.TempDir(), "chatsurface.log")
			}
			if err := config.Validate(s); err != nil {
				return err
			}
			closer, err := logging.Init(s.Log)
			if err != nil {
				return errors.Wrap(err, "init logging")
			}
			settings, logCloser = s, closer
			log.Debug().Str("endpoint", s.Endpoint).Str("transcript", s.Transcript).Bool("redis", s.Redis.Enabled).Msg("configuration loaded")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (default $CHATSURFACE_CONFIG)")
	pf.StringVar(&flags.endpoint, "endpoint", "", "websocket endpoint of the assistant (ws:// or wss://)")
	pf.StringVar(&flags.transcript, "transcript", "", "transcript backend: memory or sqlite")
	pf.BoolVar(&flags.redis, "redis-enabled", false, "carry session updates over Redis Streams")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "Redis address host:port")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&flags.logFile, "log-file", "", "write logs to a rotated file")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(
		newChatCmd(),
		newProbeCmd(),
		newServeEchoCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// apply overrides s with every flag set on the command line.
func (f *rootFlags) apply(cmd *cobra.Command, s *config.Settings) {
	changed := cmd.Flags().Changed
	if changed("endpoint") {
		s.Endpoint = f.endpoint
	}
	if changed("transcript") {
		s.Transcript = f.transcript
	}
	if changed("redis-enabled") {
		s.Redis.Enabled = f.redis
	}
	if changed("redis-addr") {
		s.Redis.Addr = f.redisAddr
	}
	if changed("log-level") {
		s.Log.Level = f.logLevel
	}
	if changed("log-file") {
		s.Log.File = f.logFile
	}
	if changed("log-json") {
		s.Log.JSON = f.logJSON
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	cobra.CheckErr(err)
}
