package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cardfolio/cardscan/internal/eval/metrics"
	"github.com/spf13/cobra"
)

// Field order for report columns
var reportFields = []string{"text", "name", "year", "grade", "cert"}

// NewReportCmd creates the report command for rendering saved results
func NewReportCmd() *cobra.Command {
	var resultsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved evaluation results file",
		Example: `  # Print a text report
  cardscan eval report --results eval_results.json

  # Export scores as CSV
  cardscan eval report --results eval_results.json --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(resultsPath, format)
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "eval_results.json", "Path to results JSON saved by eval run")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, csv)")

	return cmd
}

func executeReport(resultsPath, format string) error {
	// Load results
	results, err := metrics.LoadFromJSON(resultsPath)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}

	switch format {
	case "text":
		return printTextReport(results)
	case "json":
		return printJSONReport(results)
	case "csv":
		return printCSVReport(results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(results *metrics.AggregateResults) error {
	results.PrintSummary()

	// Print detailed results
	fmt.Println("\nDetailed Results:")
	fmt.Println("========================================")

	for i, result := range results.Results {
		fmt.Printf("\n[%d] Scan ID: %s\n", i+1, result.ScanID)

		if result.Error != "" {
			fmt.Printf("  ❌ Error: %s\n", result.Error)
			continue
		}

		if result.Comparison == nil {
			continue
		}

		fmt.Printf("  Provenance: %s\n", result.Provenance)
		fmt.Printf("  Overall Score: %.2f%%\n", result.Comparison.OverallScore*100)

		fmt.Println("  Field Scores:")
		var fields []string
		for field := range result.Comparison.FieldLevelScores {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			score := result.Comparison.FieldLevelScores[field]
			fmt.Printf("    %s: %.2f%%\n", field, score*100)
		}

		// Show field differences with low scores
		fmt.Println("  Significant Differences:")
		for _, fm := range fieldMatches(result.Comparison) {
			if fm.match.Score < 0.8 && fm.match.Method != "both_missing" {
				fmt.Printf("    %s (%.0f%% match, %s):\n", fm.name, fm.match.Score*100, fm.match.Method)
				fmt.Printf("      Expected:   %s\n", truncate(fm.match.Expected, 80))
				fmt.Printf("      Recognized: %s\n", truncate(fm.match.Actual, 80))
			}
		}
	}

	return nil
}

type namedMatch struct {
	name  string
	match metrics.FieldMatch
}

func fieldMatches(c *metrics.ScanComparison) []namedMatch {
	return []namedMatch{
		{"text", c.TextMatch},
		{"name", c.NameMatch},
		{"year", c.YearMatch},
		{"grade", c.GradeMatch},
		{"cert", c.CertMatch},
	}
}

func printJSONReport(results *metrics.AggregateResults) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func printCSVReport(results *metrics.AggregateResults) error {
	writer := csv.NewWriter(os.Stdout)
	defer writer.Flush()

	// Write header
	header := []string{"ID", "Card Type", "Provenance", "Overall Score", "Error"}
	for _, field := range reportFields {
		header = append(header, fmt.Sprintf("Field_%s", field))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	// Write rows
	for _, result := range results.Results {
		row := []string{
			result.ScanID,
			result.CardType,
			result.Provenance,
		}

		if result.Error != "" || result.Comparison == nil {
			row = append(row, "0", result.Error)
		} else {
			row = append(row, fmt.Sprintf("%.4f", result.Comparison.OverallScore), "")
		}

		// Add field scores
		for _, field := range reportFields {
			if result.Error != "" || result.Comparison == nil {
				row = append(row, "0")
			} else if score, ok := result.Comparison.FieldLevelScores[field]; ok {
				row = append(row, fmt.Sprintf("%.4f", score))
			} else {
				row = append(row, "0")
			}
		}

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
