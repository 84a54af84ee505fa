package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-reply/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize autoreply configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure providers, channels and workers, and writes the result to the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		if cfgFile == config.DefaultPath {
			return nil
		}
		if err := cfg.Save(cfgFile); err != nil {
			return err
		}
		fmt.Printf("Configuration also written to %s\n", cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
