package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/config"
	"github.com/waabox/ontoloci/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "ontoloci",
	Short: "Continuous integration for ontologies",
	Long: `ontoloci validates the ontology test cases of a GitHub repository
against a shape validation service and reports the outcome as a check run.

Test cases are declared in a manifest referenced by the .oci.yml file at the
repository root. Every build result is kept in a local database that can be
served over HTTP or browsed from the terminal.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, err = logging.New(cfg.Log.Level, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate("ontoloci {{.Version}}\n")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
