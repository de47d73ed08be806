package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// EvaluationResult represents the results for a single scan evaluation
type EvaluationResult struct {
	ScanID         string
	CardType       string
	Provenance     string // Which recognition strategy produced the text
	RecognizedText string
	Confidence     float64
	Comparison     *ScanComparison
	ProcessingTime time.Duration
	Error          string // If recognition failed
}

// AggregateResults represents aggregated evaluation metrics
type AggregateResults struct {
	TotalRecords int
	SuccessCount int
	FailureCount int

	// Field-level statistics
	TextAccuracy  FieldStats
	NameAccuracy  FieldStats
	YearAccuracy  FieldStats
	GradeAccuracy FieldStats
	CertAccuracy  FieldStats

	// Overall
	OverallAccuracy float64

	// Timing
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	// Detailed results
	Results []EvaluationResult

	// Metadata
	EvaluationDate time.Time
	Provider       string
	Mode           string // standard or advanced
	SampleSize     int
}

// FieldStats contains statistics for a specific card field
type FieldStats struct {
	ExactMatches  int
	FuzzyMatches  int
	NoMatches     int
	MissingFields int
	AverageScore  float64
	Scores        []float64
}

// AggregateScanResults aggregates multiple evaluation results
func AggregateScanResults(results []EvaluationResult, provider, mode string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Results:        results,
		EvaluationDate: time.Now(),
		Provider:       provider,
		Mode:           mode,
		SampleSize:     len(results),
	}

	// Initialize field stats
	agg.TextAccuracy = FieldStats{Scores: []float64{}}
	agg.NameAccuracy = FieldStats{Scores: []float64{}}
	agg.YearAccuracy = FieldStats{Scores: []float64{}}
	agg.GradeAccuracy = FieldStats{Scores: []float64{}}
	agg.CertAccuracy = FieldStats{Scores: []float64{}}

	totalOverallScore := 0.0
	var totalDuration time.Duration
	var successDuration time.Duration

	for _, result := range results {
		totalDuration += result.ProcessingTime

		if result.Error != "" {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += result.ProcessingTime

		if result.Comparison == nil {
			continue
		}

		aggregateFieldStats(&agg.TextAccuracy, result.Comparison.TextMatch)
		aggregateFieldStats(&agg.NameAccuracy, result.Comparison.NameMatch)
		aggregateFieldStats(&agg.YearAccuracy, result.Comparison.YearMatch)
		aggregateFieldStats(&agg.GradeAccuracy, result.Comparison.GradeMatch)
		aggregateFieldStats(&agg.CertAccuracy, result.Comparison.CertMatch)

		// Overall score
		totalOverallScore += result.Comparison.OverallScore
	}

	// Calculate averages
	if agg.SuccessCount > 0 {
		agg.TextAccuracy.AverageScore = calculateAverage(agg.TextAccuracy.Scores)
		agg.NameAccuracy.AverageScore = calculateAverage(agg.NameAccuracy.Scores)
		agg.YearAccuracy.AverageScore = calculateAverage(agg.YearAccuracy.Scores)
		agg.GradeAccuracy.AverageScore = calculateAverage(agg.GradeAccuracy.Scores)
		agg.CertAccuracy.AverageScore = calculateAverage(agg.CertAccuracy.Scores)
		agg.OverallAccuracy = totalOverallScore / float64(agg.SuccessCount)
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}

	agg.TotalProcessingTime = totalDuration

	return agg
}

// aggregateFieldStats updates field statistics
func aggregateFieldStats(stats *FieldStats, match FieldMatch) {
	stats.Scores = append(stats.Scores, match.Score)

	switch match.Method {
	case "exact":
		stats.ExactMatches++
	case "fuzzy_high", "fuzzy_medium", "substring":
		stats.FuzzyMatches++
	case "no_match":
		stats.NoMatches++
	case "actual_missing", "expected_missing", "both_missing":
		stats.MissingFields++
	}
}

// calculateAverage calculates the average of a slice of scores
func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

// PrintSummary prints a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary() {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("CARD SCAN EVALUATION SUMMARY")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Provider: %s\n", a.Provider)
	fmt.Printf("Mode: %s\n", a.Mode)
	fmt.Printf("Sample Size: %d scans\n", a.SampleSize)
	fmt.Println()

	if a.TotalRecords == 0 {
		fmt.Println("No scans evaluated")
		fmt.Println(strings.Repeat("=", 70))
		return
	}

	fmt.Println("PROCESSING STATISTICS")
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Total Scans: %d\n", a.TotalRecords)
	fmt.Printf("Successful: %d (%.1f%%)\n", a.SuccessCount, float64(a.SuccessCount)/float64(a.TotalRecords)*100)
	fmt.Printf("Failed: %d (%.1f%%)\n", a.FailureCount, float64(a.FailureCount)/float64(a.TotalRecords)*100)
	fmt.Printf("Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Printf("Total Processing Time: %s\n", a.TotalProcessingTime)
	fmt.Println()

	fmt.Println("FIELD-LEVEL ACCURACY")
	fmt.Println(strings.Repeat("-", 70))
	printFieldStats("Text", a.TextAccuracy)
	printFieldStats("Name", a.NameAccuracy)
	printFieldStats("Year", a.YearAccuracy)
	printFieldStats("Grade", a.GradeAccuracy)
	printFieldStats("Cert", a.CertAccuracy)
	fmt.Println()

	fmt.Println("OVERALL SCORE")
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Overall Accuracy: %.2f%% (%.3f)\n", a.OverallAccuracy*100, a.OverallAccuracy)
	fmt.Println(strings.Repeat("=", 70))
}

// printFieldStats prints statistics for a single field
func printFieldStats(fieldName string, stats FieldStats) {
	fmt.Printf("\n%s:\n", fieldName)
	fmt.Printf("  Average Score: %.2f%% (%.3f)\n", stats.AverageScore*100, stats.AverageScore)
	fmt.Printf("  Exact Matches: %d\n", stats.ExactMatches)
	fmt.Printf("  Fuzzy Matches: %d\n", stats.FuzzyMatches)
	fmt.Printf("  No Matches: %d\n", stats.NoMatches)
	fmt.Printf("  Missing Fields: %d\n", stats.MissingFields)
}

// SaveToJSON saves the aggregate results to a JSON file
func (a *AggregateResults) SaveToJSON(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("failed to encode results to JSON: %w", err)
	}

	return nil
}

// LoadFromJSON loads aggregate results saved by SaveToJSON
func LoadFromJSON(filepath string) (*AggregateResults, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var agg AggregateResults
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}

	return &agg, nil
}

// SaveDetailedReport saves a detailed report with individual results
func (a *AggregateResults) SaveDetailedReport(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	// Write header
	fmt.Fprintf(file, "CARD SCAN EVALUATION DETAILED REPORT\n")
	fmt.Fprintf(file, "Generated: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Provider: %s, Mode: %s\n", a.Provider, a.Mode)
	separator := strings.Repeat("=", 80)
	fmt.Fprintf(file, "%s\n\n", separator)

	// Write individual results
	dash := strings.Repeat("-", 80)
	for i, result := range a.Results {
		fmt.Fprintf(file, "SCAN %d: %s\n", i+1, result.ScanID)
		fmt.Fprintf(file, "%s\n", dash)
		fmt.Fprintf(file, "Card Type: %s\n", result.CardType)
		fmt.Fprintf(file, "Provenance: %s\n", result.Provenance)
		fmt.Fprintf(file, "Confidence: %.2f\n", result.Confidence)
		fmt.Fprintf(file, "Processing Time: %s\n", result.ProcessingTime)

		if result.Error != "" {
			fmt.Fprintf(file, "ERROR: %s\n", result.Error)
		} else if result.Comparison != nil {
			fmt.Fprintf(file, "\nField Comparisons:\n")
			fmt.Fprintf(file, "  Text:  %.2f (%s) - Expected: %s, Actual: %s\n",
				result.Comparison.TextMatch.Score,
				result.Comparison.TextMatch.Method,
				result.Comparison.TextMatch.Expected,
				result.Comparison.TextMatch.Actual)

			fmt.Fprintf(file, "  Name:  %.2f (%s) - Expected: %s, Actual: %s\n",
				result.Comparison.NameMatch.Score,
				result.Comparison.NameMatch.Method,
				result.Comparison.NameMatch.Expected,
				result.Comparison.NameMatch.Actual)

			fmt.Fprintf(file, "  Year:  %.2f (%s) - Expected: %s, Actual: %s\n",
				result.Comparison.YearMatch.Score,
				result.Comparison.YearMatch.Method,
				result.Comparison.YearMatch.Expected,
				result.Comparison.YearMatch.Actual)

			fmt.Fprintf(file, "  Grade: %.2f (%s) - Expected: %s, Actual: %s\n",
				result.Comparison.GradeMatch.Score,
				result.Comparison.GradeMatch.Method,
				result.Comparison.GradeMatch.Expected,
				result.Comparison.GradeMatch.Actual)

			fmt.Fprintf(file, "  Cert:  %.2f (%s) - Expected: %s, Actual: %s\n",
				result.Comparison.CertMatch.Score,
				result.Comparison.CertMatch.Method,
				result.Comparison.CertMatch.Expected,
				result.Comparison.CertMatch.Actual)

			fmt.Fprintf(file, "\nOverall Score: %.2f%%\n", result.Comparison.OverallScore*100)
		}

		fmt.Fprintf(file, "\n%s\n\n", separator)
	}

	return nil
}
