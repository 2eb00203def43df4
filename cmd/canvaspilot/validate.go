package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/canvaspilot/internal/config"
)

func newValidateCmd() *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plan file without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.ParsePlan(planPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %q is valid: %d steps, window %q\n",
				plan.Name, len(plan.Steps), plan.Window.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Path to the plan file")
	cmd.MarkFlagRequired("plan") //nolint:errcheck

	return cmd
}
