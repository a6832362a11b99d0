// Command coin-ingest pulls CoinGecko data, stages it as JSON artifacts and
// uploads them to a cloud object store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/coin-ingest/internal/config"
	"github.com/Sternrassler/coin-ingest/pkg/logging"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("coin-ingest failed")
		os.Exit(1)
	}
}

// rootOptions are shared by every subcommand.
type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "coin-ingest",
		Short:         "Extract CoinGecko data into a cloud object store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			logCfg := cfg.Logging()
			logCfg.Output = cmd.ErrOrStderr()
			logging.Setup(logCfg)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default $CONFIG_PATH)")

	cmd.AddCommand(
		newRunCmd(opts),
		newScheduleCmd(opts),
		newListCmd(opts),
		newDownloadCmd(opts),
	)
	return cmd
}
