package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/internal/app"
	"github.com/YaganovValera/universe-client/internal/config"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "universe-client: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "universe-client",
		Short:         "Universe discovery and fetch client for the market data gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

type runFlags struct {
	configPath string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "config/config.yaml", "path to config file (empty for env only)")
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session: handshake, universe discovery and fetch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func run(parent context.Context, flags runFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.ServiceVersion == "" || version != "dev" {
		cfg.ServiceVersion = version
	}
	if err := cfg.Print(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "failed to print config: %v\n", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting client",
		zap.String("service.name", cfg.ServiceName),
		zap.String("service.version", cfg.ServiceVersion),
		zap.String("gateway", cfg.Gateway.URL),
	)
	if err := app.Run(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("interrupted")
			return nil
		}
		log.Error("client exited with error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}
