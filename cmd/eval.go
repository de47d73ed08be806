package cmd

import (
	"github.com/cardfolio/cardscan/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Recognition accuracy evaluation tools",
		Long: `Evaluation tools for measuring recognition accuracy against labeled scans.

Supports running labeled datasets through the recognition pipeline, scoring
recognized text field by field against human transcriptions and rendering
saved results as reports.`,
	}

	// Add eval subcommands
	cmd.AddCommand(evalcmd.NewRunCmd())
	cmd.AddCommand(evalcmd.NewReportCmd())
	cmd.AddCommand(evalcmd.NewInspectCmd())

	return cmd
}
