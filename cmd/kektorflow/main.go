package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorflow/internal/config"
	"github.com/sanonone/kektorflow/internal/logging"
	mcpserver "github.com/sanonone/kektorflow/internal/mcp"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	logLevel   string
	logFormat  string
	clusterArg string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kektorflow",
	Short: "Node-routed retrieval and speech tasks over a data cluster",
	Long: `kektorflow keeps embeddings of a data cluster (messages, files, code
executions) in sync, retrieves the chunks most similar to a prompt with an
adaptive threshold, and converts text to speech.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if clusterArg != "" {
			cfg.Cluster = clusterArg
		}
		logging.Init(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	pf.StringVar(&clusterArg, "cluster", "", "data cluster JSON file (overrides config)")

	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
	mcpserver.Version = version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "kektorflow", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
