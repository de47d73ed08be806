package metrics

import (
	"fmt"
	"regexp"
	"strings"
)

// ScanComparison represents field-level comparison results for one scan
type ScanComparison struct {
	TextMatch  FieldMatch
	NameMatch  FieldMatch
	YearMatch  FieldMatch
	GradeMatch FieldMatch
	CertMatch  FieldMatch

	// Overall scores
	FieldLevelScores map[string]float64
	OverallScore     float64
}

// FieldMatch represents the comparison result for a single field
type FieldMatch struct {
	Expected string
	Actual   string
	Score    float64 // 0.0 to 1.0
	Method   string  // "exact", "substring", "fuzzy_high", "fuzzy_medium", "no_match"
	Notes    string
}

// ExtractedFields holds the card fields pulled out of recognized label text
type ExtractedFields struct {
	Text  string
	Name  string
	Year  string
	Grade string
	Cert  string
}

var (
	yearToken  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	certToken  = regexp.MustCompile(`\b\d{8,10}\b`)
	gradeToken = regexp.MustCompile(`(?i)\b(?:GEM\s?MT|MINT|NM(?:-MT)?|EX(?:-MT)?|AUTHENTIC)(?:\s?(?:10|[1-9](?:\.5)?))?\b|\b(?:PSA|BGS|CGC)\s?(?:10|[1-9](?:\.5)?)\b`)
	graderName = regexp.MustCompile(`(?i)^(PSA|BGS|CGC)\s*`)
)

// Grader names and grade vocabulary never belong to a card name
var nameStopwords = map[string]bool{
	"PSA": true, "BGS": true, "CGC": true,
	"GEM": true, "MT": true, "MINT": true,
	"NM": true, "NM-MT": true, "EX": true, "EX-MT": true,
	"AUTHENTIC": true,
}

// LabelParser extracts card fields from recognized label text
type LabelParser struct{}

// NewLabelParser creates a new label parser
func NewLabelParser() *LabelParser {
	return &LabelParser{}
}

// ExtractYear extracts the release year from label text
func (p *LabelParser) ExtractYear(text string) string {
	return yearToken.FindString(text)
}

// ExtractGrade extracts the grade from label text. A grader prefix like
// "PSA 10" is reduced to the grade itself.
func (p *LabelParser) ExtractGrade(text string) string {
	match := gradeToken.FindString(text)
	if match == "" {
		return ""
	}
	match = graderName.ReplaceAllString(match, "")
	match = strings.ToUpper(strings.Join(strings.Fields(match), " "))
	return match
}

// ExtractCert extracts the certification number from label text
func (p *LabelParser) ExtractCert(text string) string {
	return certToken.FindString(text)
}

// ExtractName returns the words of the label that can belong to the card
// name. Years, certification numbers, grades and grader names are dropped,
// what survives is the set and card name region of the label.
func (p *LabelParser) ExtractName(text string) string {
	var words []string
	for _, token := range strings.Fields(text) {
		if isNameToken(token) {
			words = append(words, token)
		}
	}
	return strings.Join(words, " ")
}

// ExtractAll extracts every comparable field from label text
func (p *LabelParser) ExtractAll(text string) ExtractedFields {
	return ExtractedFields{
		Text:  strings.TrimSpace(text),
		Name:  p.ExtractName(text),
		Year:  p.ExtractYear(text),
		Grade: p.ExtractGrade(text),
		Cert:  p.ExtractCert(text),
	}
}

func isNameToken(token string) bool {
	trimmed := strings.Trim(token, ".,#()")
	if trimmed == "" {
		return false
	}
	if nameStopwords[strings.ToUpper(trimmed)] {
		return false
	}
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	return true
}

// CompareScanFields compares recognized fields against ground truth
func CompareScanFields(actual, expected ExtractedFields) *ScanComparison {
	comparison := &ScanComparison{
		FieldLevelScores: make(map[string]float64),
	}

	// Compare full text
	comparison.TextMatch = compareField(expected.Text, actual.Text)
	comparison.FieldLevelScores["text"] = comparison.TextMatch.Score

	// Compare card name
	comparison.NameMatch = compareField(expected.Name, actual.Name)
	comparison.FieldLevelScores["name"] = comparison.NameMatch.Score

	// Compare year
	comparison.YearMatch = compareField(expected.Year, actual.Year)
	comparison.FieldLevelScores["year"] = comparison.YearMatch.Score

	// Compare grade
	comparison.GradeMatch = compareField(expected.Grade, actual.Grade)
	comparison.FieldLevelScores["grade"] = comparison.GradeMatch.Score

	// Compare certification number
	comparison.CertMatch = compareField(expected.Cert, actual.Cert)
	comparison.FieldLevelScores["cert"] = comparison.CertMatch.Score

	// Calculate overall score (weighted average)
	// The full transcription and the card name are most important
	weights := map[string]float64{
		"text":  0.30,
		"name":  0.25,
		"year":  0.15,
		"grade": 0.15,
		"cert":  0.15,
	}

	totalScore := 0.0
	for field, weight := range weights {
		totalScore += comparison.FieldLevelScores[field] * weight
	}
	comparison.OverallScore = totalScore

	return comparison
}

// compareField performs detailed field comparison with fuzzy matching
func compareField(expected, actual string) FieldMatch {
	match := FieldMatch{
		Expected: expected,
		Actual:   actual,
	}

	// Normalize for comparison
	expNorm := normalizeForComparison(expected)
	actNorm := normalizeForComparison(actual)

	// Handle missing fields
	if expected == "" && actual == "" {
		match.Score = 0.5
		match.Method = "both_missing"
		match.Notes = "Both fields are empty"
		return match
	}

	if expected == "" {
		match.Score = 0.0
		match.Method = "expected_missing"
		match.Notes = "Expected value is empty (no ground truth)"
		return match
	}

	if actual == "" {
		match.Score = 0.0
		match.Method = "actual_missing"
		match.Notes = "Recognized text missing this field"
		return match
	}

	// Exact match
	if expNorm == actNorm {
		match.Score = 1.0
		match.Method = "exact"
		match.Notes = "Exact match"
		return match
	}

	// Fuzzy match, check for substring containment
	if strings.Contains(actNorm, expNorm) || strings.Contains(expNorm, actNorm) {
		match.Score = 0.8
		match.Method = "substring"
		match.Notes = "Partial match (substring found)"
		return match
	}

	// Levenshtein-based similarity
	similarity := calculateSimilarity(expNorm, actNorm)
	match.Score = similarity
	if similarity > 0.7 {
		match.Method = "fuzzy_high"
		match.Notes = fmt.Sprintf("High similarity (%.2f)", similarity)
	} else if similarity > 0.4 {
		match.Method = "fuzzy_medium"
		match.Notes = fmt.Sprintf("Medium similarity (%.2f)", similarity)
	} else {
		match.Method = "no_match"
		match.Notes = fmt.Sprintf("Low similarity (%.2f)", similarity)
	}

	return match
}

// normalizeForComparison normalizes text for comparison. Letters and digits
// of any script are kept so Japanese card names survive normalization.
func normalizeForComparison(text string) string {
	// Convert to lowercase
	text = strings.ToLower(text)

	// Remove punctuation
	re := regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	text = re.ReplaceAllString(text, "")

	// Remove extra whitespace
	text = strings.Join(strings.Fields(text), " ")

	return strings.TrimSpace(text)
}

// calculateSimilarity calculates similarity ratio (0.0 to 1.0) using Levenshtein distance
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}

	// Convert distance to similarity (0.0 to 1.0)
	return 1.0 - (float64(distance) / float64(maxLen))
}

// levenshteinDistance calculates the Levenshtein distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	if len(s1) == 0 {
		return len(s2)
	}

	if len(s2) == 0 {
		return len(s1)
	}

	// Create a 2D slice for dynamic programming
	rows := len(s1) + 1
	cols := len(s2) + 1
	matrix := make([][]int, rows)
	for i := range matrix {
		matrix[i] = make([]int, cols)
	}

	// Initialize first row and column
	for i := 0; i < rows; i++ {
		matrix[i][0] = i
	}
	for j := 0; j < cols; j++ {
		matrix[0][j] = j
	}

	// Fill the matrix
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			deletion := matrix[i-1][j] + 1
			insertion := matrix[i][j-1] + 1
			substitution := matrix[i-1][j-1] + cost

			matrix[i][j] = min(deletion, insertion, substitution)
		}
	}

	return matrix[rows-1][cols-1]
}
