package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoader(t *testing.T) {
	path := "./test.parquet"
	loader := NewLoader(path)

	if loader.datasetPath != path {
		t.Errorf("Expected path %s, got %s", path, loader.datasetPath)
	}
}

func TestResolveImagePath(t *testing.T) {
	tests := []struct {
		name     string
		scan     LabeledScan
		baseDir  string
		expected string
	}{
		{
			name:     "joins relative path with base dir",
			scan:     LabeledScan{ImagePath: "labels/001.jpg"},
			baseDir:  "/data/scans",
			expected: "/data/scans/labels/001.jpg",
		},
		{
			name:     "keeps absolute path",
			scan:     LabeledScan{ImagePath: "/mnt/cards/001.jpg"},
			baseDir:  "/data/scans",
			expected: "/mnt/cards/001.jpg",
		},
		{
			name:     "keeps relative path without base dir",
			scan:     LabeledScan{ImagePath: "001.jpg"},
			baseDir:  "",
			expected: "001.jpg",
		},
		{
			name:     "returns empty for missing path",
			scan:     LabeledScan{},
			baseDir:  "/data/scans",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.scan.ResolveImagePath(tt.baseDir)
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestHasGroundTruth(t *testing.T) {
	tests := []struct {
		name     string
		scan     LabeledScan
		expected bool
	}{
		{
			name:     "full transcription counts",
			scan:     LabeledScan{ExpectedText: "1999 POKEMON CHARIZARD"},
			expected: true,
		},
		{
			name:     "single field counts",
			scan:     LabeledScan{ExpectedCert: "12345678"},
			expected: true,
		},
		{
			name:     "image path alone does not",
			scan:     LabeledScan{ID: "scan-1", ImagePath: "001.jpg"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.scan.HasGroundTruth()
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name     string
		scan     LabeledScan
		expected string
	}{
		{
			name:     "prefers the record ID",
			scan:     LabeledScan{ID: "scan-42", ImagePath: "labels/042.jpg"},
			expected: "scan-42",
		},
		{
			name:     "falls back to image basename",
			scan:     LabeledScan{ImagePath: "labels/042.jpg"},
			expected: "042.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.scan.Label()
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestLoadJSONLSample(t *testing.T) {
	// Create temporary JSONL file
	tmpDir := t.TempDir()
	jsonlPath := filepath.Join(tmpDir, "test.jsonl")

	// Write test data
	testData := `{"id":"scan-1","image_path":"001.jpg","card_type":"psa-label","expected_text":"1999 POKEMON CHARIZARD","expected_cert":"12345678"}
{"id":"scan-2","image_path":"002.jpg","card_type":"english","expected_name":"BLASTOISE"}
{"id":"scan-3","image_path":"003.jpg","card_type":"japanese","expected_year":"1996"}
`
	err := os.WriteFile(jsonlPath, []byte(testData), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	loader := NewLoader(jsonlPath)

	// Test loading sample
	records, err := loader.LoadSample(2)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}

	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}

	if records[0].ID != "scan-1" {
		t.Errorf("Expected id scan-1, got %s", records[0].ID)
	}

	if records[0].ExpectedText != "1999 POKEMON CHARIZARD" {
		t.Errorf("Expected text '1999 POKEMON CHARIZARD', got %s", records[0].ExpectedText)
	}

	if records[1].CardType != "english" {
		t.Errorf("Expected card type english, got %s", records[1].CardType)
	}
}

func TestLoadJSONL(t *testing.T) {
	// Create temporary JSONL file
	tmpDir := t.TempDir()
	jsonlPath := filepath.Join(tmpDir, "test.jsonl")

	testData := `{"id":"scan-1","image_path":"001.jpg","expected_text":"CHARIZARD PSA 10"}

{"id":"scan-2","image_path":"002.jpg","expected_text":"BLASTOISE PSA 9"}
`
	err := os.WriteFile(jsonlPath, []byte(testData), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	loader := NewLoader(jsonlPath)

	// Blank lines are skipped
	records, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	tmpDir := t.TempDir()
	jsonlPath := filepath.Join(tmpDir, "test.jsonl")

	testData := `{"id":"scan-1","image_path":"001.jpg"}
{not json}
{"id":"scan-3","image_path":"003.jpg"}
`
	err := os.WriteFile(jsonlPath, []byte(testData), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	loader := NewLoader(jsonlPath)

	// Load is strict
	if _, err := loader.Load(); err == nil {
		t.Error("Expected error for malformed line, got nil")
	}

	// LoadSample skips bad lines and keeps going
	records, err := loader.LoadSample(10)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}

	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	loader := NewLoader("test.txt")

	_, err := loader.Load()
	if err == nil {
		t.Error("Expected error for unsupported format, got nil")
	}

	_, err = loader.LoadSample(10)
	if err == nil {
		t.Error("Expected error for unsupported format in LoadSample, got nil")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	loader := NewLoader("/nonexistent/path/file.jsonl")

	_, err := loader.Load()
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}

	_, err = loader.LoadSample(10)
	if err == nil {
		t.Error("Expected error for non-existent file in LoadSample, got nil")
	}
}
