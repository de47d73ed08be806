package dataset

import "path/filepath"

// LabeledScan is one entry of a labeled scan dataset: the path to a card
// image plus the ground truth a human transcribed from it.
type LabeledScan struct {
	// Core identifiers
	ID        string `json:"id" parquet:"id"` // Primary key
	ImagePath string `json:"image_path" parquet:"image_path"`

	// How the image should be scanned
	CardType      string   `json:"card_type" parquet:"card_type"` // psa-label, english, japanese or generic
	LanguageHints []string `json:"language_hints" parquet:"language_hints,list"`

	// Ground truth for field comparison
	ExpectedText  string `json:"expected_text" parquet:"expected_text"` // Full transcription
	ExpectedName  string `json:"expected_name" parquet:"expected_name"`
	ExpectedYear  string `json:"expected_year" parquet:"expected_year"`
	ExpectedGrade string `json:"expected_grade" parquet:"expected_grade"`
	ExpectedCert  string `json:"expected_cert" parquet:"expected_cert"`
}

// ResolveImagePath returns where the scan image lives on disk.
// Relative paths are resolved against baseDir.
func (s *LabeledScan) ResolveImagePath(baseDir string) string {
	if s.ImagePath == "" || baseDir == "" || filepath.IsAbs(s.ImagePath) {
		return s.ImagePath
	}
	return filepath.Join(baseDir, s.ImagePath)
}

// HasGroundTruth reports whether the record carries anything to score against.
func (s *LabeledScan) HasGroundTruth() bool {
	return s.ExpectedText != "" || s.ExpectedName != "" || s.ExpectedYear != "" ||
		s.ExpectedGrade != "" || s.ExpectedCert != ""
}

// Label returns a short identifier for log lines.
func (s *LabeledScan) Label() string {
	if s.ID != "" {
		return s.ID
	}
	return filepath.Base(s.ImagePath)
}
