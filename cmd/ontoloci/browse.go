package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/store"
	"github.com/waabox/ontoloci/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored build results in the terminal",
	Long: `Browse opens an interactive view of the stored builds, their test cases
and the computed and expected shape maps of each test case.

When a GitHub App and a validator are configured, a build can be run again
with "r".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.StorePathOrDefault())
		if err != nil {
			return err
		}
		defer db.Close()

		// The terminal belongs to the TUI, so only errors are logged.
		quiet := logger.WithOptions(zap.IncreaseLevel(zap.ErrorLevel))

		var rerun tui.RerunFunc
		if exec, err := newExecutor(cfg, "", db, nil, cfg.WorkersOrDefault(), quiet); err == nil {
			rerun = exec.ExecuteBuild
		} else {
			logger.Debug("rerun disabled", zap.Error(err))
		}
		return tui.Run(db, rerun)
	},
}
