package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/chibanzu/internal/config"
	"github.com/sells-group/chibanzu/internal/dataset"
	"github.com/sells-group/chibanzu/internal/fetcher"
	"github.com/sells-group/chibanzu/internal/license"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and extract the Kyoto parcel archive",
	Long: `Shows the dataset license, then downloads the archive into input.download_dir
(skipped when it is already there) and extracts it into input.extract_dir.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("download"); err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")

		m, err := dataset.Kyoto()
		if err != nil {
			return err
		}
		if err := license.Confirm(m.License, license.StdPrompt(), yes); err != nil {
			return err
		}
		return download(ctx, cfg, m, newFetcher(cfg.Download))
	},
}

func init() {
	downloadCmd.Flags().Bool("yes", false, "accept the dataset license without prompting")
	rootCmd.AddCommand(downloadCmd)
}

func newFetcher(c config.DownloadConfig) *fetcher.HTTPFetcher {
	opts := fetcher.HTTPOptions{
		UserAgent:  c.UserAgent,
		Timeout:    time.Duration(c.TimeoutSecs) * time.Second,
		MaxRetries: c.MaxRetries,
	}
	if c.RequestsPerS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(c.RequestsPerS), 1)
	}
	return fetcher.NewHTTPFetcher(opts)
}

// download fetches the archive and extracts it. The license must already be accepted.
func download(ctx context.Context, c *config.Config, m dataset.Manifest, f fetcher.Fetcher) error {
	log := zap.L().With(zap.String("command", "download"), zap.String("dataset", m.ID))

	archive, skipped, err := dataset.Fetch(ctx, f, m, c.Input.DownloadDir)
	if err != nil {
		return err
	}

	files, err := fetcher.ExtractZIP(archive, c.Input.ExtractDir)
	if err != nil {
		return eris.Wrapf(err, "download: extract %s", archive)
	}

	log.Info("download complete",
		zap.String("archive", archive),
		zap.Bool("archive_reused", skipped),
		zap.Int("files", len(files)),
		zap.String("extract_dir", c.Input.ExtractDir),
	)
	return nil
}
