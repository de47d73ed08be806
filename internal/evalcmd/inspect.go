package evalcmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cardfolio/cardscan/internal/eval/dataset"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var datasetPath string
	var imagesDir string
	var limit int
	var interactive bool
	var showText bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect labeled scan records (useful for checking ground truth)",
		Long: `Inspect records from a parquet or jsonl dataset file.

This command is useful for examining ground truth transcriptions and checking
that the image files a dataset references exist on disk.`,
		Example: `  # Inspect first 5 records interactively
  cardscan eval inspect --dataset ./scans/labels.jsonl --limit 5 --interactive

  # Check that every referenced image exists
  cardscan eval inspect --dataset ./scans/labels.jsonl --images ./scans --limit 0 --text=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if datasetPath == "" {
				return fmt.Errorf("--dataset is required")
			}

			// Create a context that gets canceled on an interrupt signal (Ctrl+C)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop() // Ensure the signal handler is cleaned up

			return executeInspect(ctx, datasetPath, imagesDir, limit, interactive, showText)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Directory to resolve image paths against (enables existence checks)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to inspect (0 for all)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Pause after each record (press Enter to continue)")
	cmd.Flags().BoolVar(&showText, "text", true, "Show the expected transcription")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func executeInspect(ctx context.Context, datasetPath, imagesDir string, limit int, interactive, showText bool) error {
	loader := dataset.NewLoader(datasetPath)

	var records []dataset.LabeledScan
	var err error

	if limit > 0 {
		records, err = loader.LoadSample(limit)
	} else {
		records, err = loader.Load()
	}

	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	fmt.Printf("Loaded %d records from %s\n", len(records), datasetPath)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	missingImages := 0

	for i, record := range records {
		// Check for context cancellation (e.g., Ctrl+C) at the start of each iteration
		select {
		case <-ctx.Done():
			fmt.Println("\nInspection interrupted.")
			return nil
		default:
		}

		fmt.Printf("SCAN %d/%d\n", i+1, len(records))
		fmt.Println(strings.Repeat("-", 80))

		fmt.Printf("ID:             %s\n", record.ID)
		fmt.Printf("Image Path:     %s\n", record.ImagePath)
		fmt.Printf("Card Type:      %s\n", record.CardType)
		if len(record.LanguageHints) > 0 {
			fmt.Printf("Language Hints: %s\n", strings.Join(record.LanguageHints, ", "))
		}
		fmt.Printf("Expected Name:  %s\n", record.ExpectedName)
		fmt.Printf("Expected Year:  %s\n", record.ExpectedYear)
		fmt.Printf("Expected Grade: %s\n", record.ExpectedGrade)
		fmt.Printf("Expected Cert:  %s\n", record.ExpectedCert)
		fmt.Printf("Ground Truth:   %v\n", record.HasGroundTruth())

		if imagesDir != "" {
			imagePath := record.ResolveImagePath(imagesDir)
			if info, statErr := os.Stat(imagePath); statErr != nil {
				fmt.Printf("Image:          MISSING (%s)\n", imagePath)
				missingImages++
			} else {
				fmt.Printf("Image:          %s (%d bytes)\n", imagePath, info.Size())
			}
		}
		fmt.Println()

		if showText {
			expectedText := record.ExpectedText
			fmt.Printf("Expected Text Length: %d characters\n", len(expectedText))
			fmt.Println()

			// Show first 500 characters with indicator if truncated
			displayText := expectedText
			truncated := false
			maxChars := 500
			if len(displayText) > maxChars {
				displayText = displayText[:maxChars]
				truncated = true
			}

			fmt.Println("EXPECTED TEXT:")
			fmt.Println(strings.Repeat("-", 80))
			fmt.Println(displayText)
			if truncated {
				fmt.Printf("\n[... truncated, showing first %d of %d characters ...]\n", maxChars, len(expectedText))
			}
			fmt.Println(strings.Repeat("-", 80))
		}

		fmt.Println()

		if interactive {
			fmt.Print("Press Enter to continue to next record (or Ctrl+C to quit)...")

			// Channel to signal user input
			inputCh := make(chan struct{})
			// Goroutine to wait for Enter key
			go func() {
				_, _ = reader.ReadString('\n')
				close(inputCh)
			}()

			// Wait for either user input (Enter) or context cancellation (Ctrl+C)
			select {
			case <-ctx.Done():
				fmt.Println("\nInspection interrupted.")
				return nil
			case <-inputCh:
				fmt.Println()
			}
		} else {
			fmt.Println()
		}
	}

	if imagesDir != "" {
		fmt.Printf("Missing images: %d/%d\n", missingImages, len(records))
	}

	return nil
}
