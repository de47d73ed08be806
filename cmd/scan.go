package cmd

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardfolio/cardscan/internal/config"
	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/pipeline"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var configPath string
	var cardType string
	var langHints []string
	var stitch bool
	var multiCard bool
	var concurrent bool
	var advanced bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [images...]",
		Short: "Recognize card labels from image files",
		Long: `Runs one or more card images through the recognition pipeline and prints
the recognized text, confidence and any matched card detection.

Results come back in the same order as the arguments. A failed image is
reported in its slot without affecting the others.`,
		Example: `  # Scan a single graded slab label
  cardscan scan --card-type psa-label slab.jpg

  # Scan a box of slabs as one stitched composite
  cardscan scan --card-type psa-label --stitch box/*.jpg

  # Scan Japanese cards concurrently and print JSON
  cardscan scan --card-type japanese --lang ja --concurrent --json cards/*.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			orch, err := pipeline.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("failed to build pipeline: %w", err)
			}

			opts := models.ProcessOptions{
				LanguageHints:   langHints,
				EnableStitching: stitch,
				MultiCard:       multiCard,
				Concurrent:      concurrent,
				AdvancedMode:    advanced,
			}

			tasks := make([]models.RecognitionTask, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				tasks = append(tasks, models.NewRecognitionTask(data, mime.TypeByExtension(filepath.Ext(path)), models.CardType(cardType), opts))
			}

			results, err := orch.ProcessBatch(cmd.Context(), tasks)
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(results)
			}

			// Results align with the argument order
			for i, result := range results {
				printScanResult(args[i], result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to cardscan config file")
	cmd.Flags().StringVar(&cardType, "card-type", "", "Card type hint (psa-label, english, japanese, generic)")
	cmd.Flags().StringSliceVar(&langHints, "lang", nil, "Language hints passed to the recognition provider")
	cmd.Flags().BoolVar(&stitch, "stitch", false, "Stitch the batch into one composite before recognition")
	cmd.Flags().BoolVar(&multiCard, "multi-card", false, "Treat generic images as multi-card sheets for stitching")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "Fan the batch out across concurrent provider calls")
	cmd.Flags().BoolVar(&advanced, "advanced", false, "Use the vision-LLM recognition chain")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func printScanResult(path string, result models.RecognitionResult) {
	fmt.Printf("%s\n", path)

	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
		return
	}

	fmt.Printf("  confidence: %.2f  provenance: %s  elapsed: %s\n", result.Confidence, result.Provenance, result.Elapsed)
	if result.DetectedType != "" {
		fmt.Printf("  detected type: %s\n", result.DetectedType)
	}
	if result.Detection != nil {
		fmt.Printf("  matched: %s (%.2f)\n", result.Detection.Label, result.Detection.Confidence)
	}

	if strings.TrimSpace(result.Text) == "" {
		fmt.Println("  (no text recognized)")
		return
	}
	for _, line := range strings.Split(result.Text, "\n") {
		fmt.Printf("  | %s\n", line)
	}
}
