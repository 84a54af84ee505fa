package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-reply/internal/workflows"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Work with workflow definitions",
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a workflow JSON file compiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var wf workflows.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		if err := workflows.Validate(&wf); err != nil {
			return err
		}
		fmt.Printf("%s: %s (except case %s)\n", args[0], wf.Status, wf.ExceptCase)
		return nil
	},
}

func init() {
	workflowCmd.AddCommand(workflowValidateCmd)
	rootCmd.AddCommand(workflowCmd)
}
