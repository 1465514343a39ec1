package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/chibanzu/internal/dataset"
	"github.com/sells-group/chibanzu/internal/license"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, extract and convert in one step",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyConvertFlags(cmd, cfg)
		if err := cfg.Validate("run"); err != nil {
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
		if err := download(ctx, cfg, m, newFetcher(cfg.Download)); err != nil {
			return err
		}

		in, err := resolveInputs(cmd, cfg)
		if err != nil {
			return err
		}
		_, err = convert(ctx, cfg, in)
		return err
	},
}

func init() {
	runCmd.Flags().Bool("yes", false, "accept the dataset license without prompting")
	addConvertFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
