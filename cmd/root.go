package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-reply/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "autoreply",
	Short: "Automated customer conversation replies",
	Long: `Auto Reply answers customer messages arriving over web chat and WhatsApp.
Company workflows run first; replies are generated from the company's
product catalog and chatbot personality when no workflow handles a message.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".autoreply.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupLogging applies the configured log level; --verbose forces debug.
func setupLogging(level, format string) {
	if verbose {
		level = "debug"
	}
	if err := logging.Init(level, format); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
