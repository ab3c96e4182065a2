package commands

import (
	"fmt"

	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/internal/scaffold"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a starter keyhunt.yml and sample message",
		Long: `Create a starter project in DIR (default the current directory).

Creates:
  • keyhunt.yml - search and blackboard configuration
  • message.txt - sample text to plant a key in

Use --force to overwrite existing files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			if !force {
				if err := scaffold.CheckExisting(dir); err != nil {
					return printer.Error("project already initialized", err.Error(), nil)
				}
			}

			if err := scaffold.Initialize(dir); err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}

			scaffold.PrintSuccess(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing keyhunt.yml and message.txt")
	return cmd
}
