package main

import (
	"context"
	"fmt"
	"os"

	// Airport-local civil days need IANA zone data wherever the binary lands.
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/config"
	"github.com/aeroshield/stormrisk-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stormrisk",
	Short: "Storm-track exposure analysis for travel insurance",
	Long: "Turns probabilistic storm-track forecasts into expected travel-insurance payouts: " +
		"wind-threshold impact zones around ensemble tracks, airport disruption windows, " +
		"travelers at risk per civil day, and dollar exposure.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
