package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "chibanzu",
	Short: "Kyoto City land parcel (chiban) address converter",
	Long: `Downloads the Kyoto City land parcel map, joins every parcel polygon to its
ward and town name, reduces it to a centroid and writes one address record
per parcel.`,
	SilenceUsage: true,
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

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
