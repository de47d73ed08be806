package evalcmd

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cardfolio/cardscan/internal/config"
	"github.com/cardfolio/cardscan/internal/eval/dataset"
	"github.com/cardfolio/cardscan/internal/eval/metrics"
	resultsutil "github.com/cardfolio/cardscan/internal/eval/results"
	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command for evaluating recognition accuracy
func NewRunCmd() *cobra.Command {
	var datasetPath string
	var imagesDir string
	var configPath string
	var outputJSON string
	var outputReport string
	var sampleSize int
	var cardType string
	var concurrency int
	var advanced bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate recognition accuracy against a labeled scan dataset",
		Long: `Run every scan of a labeled dataset through the recognition pipeline and
score the recognized text against the human transcription.

The dataset is a parquet or JSONL file of labeled scans. Each record names an
image file plus the expected text, card name, year, grade and certification
number. Scores are reported per field and aggregated across the dataset.`,
		Example: `  # Evaluate 10 scans against ./scans/labels.jsonl
  cardscan eval run --dataset ./scans/labels.jsonl --images ./scans --sample 10

  # Evaluate only slab labels, four scans at a time
  cardscan eval run --dataset ./scans/labels.parquet --images ./scans --card-type psa-label --concurrency 4

  # Evaluate the full dataset with the vision-LLM chain
  cardscan eval run --dataset ./scans/labels.jsonl --images ./scans --sample -1 --advanced`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check if dataset file exists
			if _, err := os.Stat(datasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", datasetPath)
			}

			return executeRun(cmd.Context(), datasetPath, imagesDir, configPath, outputJSON, outputReport,
				sampleSize, cardType, concurrency, advanced, verbose)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to labeled scan parquet or JSONL file (required)")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Directory that relative image paths are resolved against")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to cardscan config file")
	cmd.Flags().StringVar(&outputJSON, "output-json", "eval_results.json", "Path to output JSON results file")
	cmd.Flags().StringVar(&outputReport, "output-report", "eval_report.txt", "Path to output detailed report file")
	cmd.Flags().IntVar(&sampleSize, "sample", 10, "Number of scans to evaluate (-1 for all)")
	cmd.Flags().StringVar(&cardType, "card-type", "", "Only evaluate scans of this card type")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Number of scans to process in parallel")
	cmd.Flags().BoolVar(&advanced, "advanced", false, "Use the vision-LLM recognition chain")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func executeRun(ctx context.Context, datasetPath, imagesDir, configPath, outputJSON, outputReport string,
	sampleSize int, cardType string, concurrency int, advanced, verbose bool) error {
	// Set up logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mode := "standard"
	if advanced {
		mode = "advanced"
	}

	slog.Info("Starting scan evaluation",
		"dataset", datasetPath,
		"sample_size", sampleSize,
		"provider", cfg.Provider.Cloud,
		"mode", mode)

	// Load dataset
	loader := dataset.NewLoader(datasetPath)

	var records []dataset.LabeledScan

	if sampleSize > 0 {
		slog.Info("Loading sample from dataset", "limit", sampleSize)
		records, err = loader.LoadSample(sampleSize)
	} else {
		slog.Info("Loading full dataset")
		records, err = loader.Load()
	}

	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	// Keep only the requested card type
	if cardType != "" {
		filtered := records[:0]
		for _, record := range records {
			if record.CardType == cardType {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	slog.Info("Dataset loaded", "records", len(records))

	// Build the recognition pipeline
	orch, err := pipeline.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	// Process scans with concurrency control
	if concurrency < 1 {
		concurrency = 1
	}
	slog.Info("Processing scans", "concurrency", concurrency)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)
	resultsChan := make(chan metrics.EvaluationResult, len(records))

	for i, record := range records {
		wg.Add(1)
		go func(idx int, record dataset.LabeledScan) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			slog.Info("Processing scan", "id", record.Label(), "progress", fmt.Sprintf("%d/%d", idx+1, len(records)))

			resultsChan <- evaluateScan(ctx, record, orch, imagesDir, advanced)
		}(i, record)
	}

	// Wait for all goroutines to finish
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results
	results := make([]metrics.EvaluationResult, 0, len(records))
	for result := range resultsChan {
		results = append(results, result)
	}

	// Aggregate results
	slog.Info("Aggregating results")
	aggregated := metrics.AggregateScanResults(results, cfg.Provider.Cloud, mode)

	// Print summary
	aggregated.PrintSummary()

	// Save results
	slog.Info("Saving results", "json", outputJSON, "report", outputReport)

	if err := aggregated.SaveToJSON(outputJSON); err != nil {
		fmt.Printf("Warning: Failed to save JSON results: %v\n", err)
	} else {
		fmt.Printf("\nResults saved to: %s\n", outputJSON)
	}

	if err := aggregated.SaveDetailedReport(outputReport); err != nil {
		fmt.Printf("Warning: Failed to save detailed report: %v\n", err)
	} else {
		fmt.Printf("Detailed report saved to: %s\n", outputReport)
	}

	if err := resultsutil.SaveToYAML(cfg.Provider.Cloud, mode, datasetPath, sampleSize, aggregated.Results); err != nil {
		fmt.Printf("Warning: Failed to save YAML results: %v\n", err)
	}

	fmt.Printf("\nGenerate a report with:\n")
	fmt.Printf("  cardscan eval report --results %s\n", outputJSON)

	slog.Info("Evaluation complete")
	return nil
}

// evaluateScan runs a single labeled scan through the pipeline and scores it
func evaluateScan(ctx context.Context, record dataset.LabeledScan, orch *pipeline.Orchestrator, imagesDir string, advanced bool) metrics.EvaluationResult {
	startTime := time.Now()

	result := metrics.EvaluationResult{
		ScanID:   record.Label(),
		CardType: record.CardType,
	}

	imagePath := record.ResolveImagePath(imagesDir)
	if imagePath == "" {
		result.Error = "no image available for scan"
		result.ProcessingTime = time.Since(startTime)
		return result
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read image: %v", err)
		result.ProcessingTime = time.Since(startTime)
		return result
	}

	task := models.NewRecognitionTask(data, mime.TypeByExtension(filepath.Ext(imagePath)), models.CardType(record.CardType), models.ProcessOptions{
		LanguageHints: record.LanguageHints,
		AdvancedMode:  advanced,
	})

	recognition, err := orch.ProcessSingle(ctx, task)
	if err != nil {
		result.Error = fmt.Sprintf("recognition failed: %v", err)
		result.ProcessingTime = time.Since(startTime)
		return result
	}

	result.RecognizedText = recognition.Text
	result.Confidence = recognition.Confidence
	result.Provenance = string(recognition.Provenance)
	result.ProcessingTime = time.Since(startTime)

	if recognition.Error != "" {
		result.Error = recognition.Error
		return result
	}

	slog.Debug("Recognition complete",
		"id", record.Label(),
		"provenance", result.Provenance,
		"confidence", recognition.Confidence)

	// Field-by-field comparison against the ground truth
	parser := metrics.NewLabelParser()
	expected := metrics.ExtractedFields{
		Text:  record.ExpectedText,
		Name:  record.ExpectedName,
		Year:  record.ExpectedYear,
		Grade: record.ExpectedGrade,
		Cert:  record.ExpectedCert,
	}

	result.Comparison = metrics.CompareScanFields(parser.ExtractAll(recognition.Text), expected)

	slog.Info("Comparison complete",
		"id", record.Label(),
		"overall_score", result.Comparison.OverallScore,
		"text_score", result.Comparison.TextMatch.Score)

	return result
}
