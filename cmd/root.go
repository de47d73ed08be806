package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardscan",
		Short: "Card label recognition tool with batched OCR and detection matching",
		Long: `Cardscan reads text off trading card scans and graded slab labels.

Batches of images are preprocessed, stitched into composites where that saves
provider calls, recognized through a cloud or local OCR chain and matched
against a card database. It also ships a CLI for one-off scans and for
evaluating recognition accuracy against labeled datasets.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}
