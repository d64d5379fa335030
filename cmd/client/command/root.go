// Package command defines the yeet client command line.
package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/client"
	"github.com/yeet-socket/yeet/internal/config"
	"github.com/yeet-socket/yeet/internal/logging"
	"github.com/yeet-socket/yeet/internal/transcript"
)

// flags override the values loaded from the environment.
type flags struct {
	url         string
	identity    string
	maxAttempts int
	record      string
	verbose     bool
}

// NewRootCommand builds the client command.
func NewRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "yeet",
		Short: "yeet - send prompts to a yeet server",
		Long: `yeet connects to a yeet server over WebSocket, announces an identity
and sends every line typed on standard input as a prompt. Replies are printed
as they arrive. The connection is re-established with exponential backoff.

Configuration is read from the environment (and .env) and overridden by flags.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.url, "url", "", "server URL (default $CLIENT_URL or ws://localhost:8080)")
	cmd.Flags().StringVar(&f.identity, "identity", "", "identity announced to the server (default $CLIENT_IDENTITY or TOM)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "consecutive failed connection attempts before giving up (default $CLIENT_MAX_ATTEMPTS or 30)")
	cmd.Flags().StringVar(&f.record, "record", "", "write an asciinema transcript of the session to this file")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// Execute runs the client command with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rec, err := openTranscript(cfg.Client.RecordPath, cfg.Client.Identity)
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		URL:      cfg.Client.URL,
		Identity: cfg.Client.Identity,
		Backoff:  backoffFromConfig(cfg.Client),
	}, cmd.InOrStdin(), client.NewTerminal(cmd.OutOrStdout(), rec), logger)

	if err := c.Run(ctx); err != nil {
		logging.Module(logger, "client").Error("Client stopped", zap.Error(err))
		return err
	}
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	if cmd.Flags().Changed("url") {
		cfg.Client.URL = f.url
	}
	if cmd.Flags().Changed("identity") {
		cfg.Client.Identity = f.identity
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.Client.MaxAttempts = f.maxAttempts
	}
	if cmd.Flags().Changed("record") {
		cfg.Client.RecordPath = f.record
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

func backoffFromConfig(c config.ClientConfig) client.Backoff {
	b := client.DefaultBackoff()
	b.Base = c.BackoffBase
	b.MaxAttempts = c.MaxAttempts
	b.Cap = c.BackoffCap
	return b
}

func openTranscript(path, identity string) (*transcript.Recorder, error) {
	if path == "" {
		return nil, nil
	}
	rec, err := transcript.Create(path, fmt.Sprintf("yeet session (%s)", identity))
	if err != nil {
		return nil, err
	}
	return rec, nil
}
