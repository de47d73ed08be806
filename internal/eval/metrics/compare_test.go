package metrics

import (
	"testing"
)

func TestCompareScanFields(t *testing.T) {
	parser := NewLabelParser()

	tests := []struct {
		name         string
		recognized   string
		expected     ExtractedFields
		minTextScore float64
		minOverall   float64
	}{
		{
			name:       "exact matches",
			recognized: "1999 POKEMON GAME CHARIZARD GEM MT 10 12345678",
			expected: ExtractedFields{
				Text:  "1999 POKEMON GAME CHARIZARD GEM MT 10 12345678",
				Name:  "POKEMON GAME CHARIZARD",
				Year:  "1999",
				Grade: "GEM MT 10",
				Cert:  "12345678",
			},
			minTextScore: 0.9,
			minOverall:   0.9,
		},
		{
			name:       "fuzzy matches",
			recognized: "1999 POKEMON CHARIZARD GEM MT 10 12345678",
			expected: ExtractedFields{
				Text:  "1999 POKEMON GAME CHARIZARD GEM MT 10 12345678",
				Name:  "CHARIZARD",
				Year:  "1999",
				Grade: "GEM MT 10",
				Cert:  "12345678",
			},
			minTextScore: 0.7,
			minOverall:   0.7,
		},
		{
			name:       "no matches",
			recognized: "TOTALLY DIFFERENT TEXT",
			expected: ExtractedFields{
				Text: "1999 POKEMON CHARIZARD GEM MT 10",
				Name: "CHARIZARD",
				Year: "1999",
			},
			minTextScore: 0.0,
			minOverall:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comparison := CompareScanFields(parser.ExtractAll(tt.recognized), tt.expected)

			if comparison == nil {
				t.Fatal("Expected non-nil comparison")
			}

			// Check text score
			if comparison.TextMatch.Score < tt.minTextScore {
				t.Errorf("Text score %.2f below minimum %.2f",
					comparison.TextMatch.Score, tt.minTextScore)
			}

			// Check overall score
			if comparison.OverallScore < tt.minOverall {
				t.Errorf("Overall score %.2f below minimum %.2f",
					comparison.OverallScore, tt.minOverall)
			}

			// Verify field level scores exist
			if len(comparison.FieldLevelScores) == 0 {
				t.Error("Expected field level scores to be populated")
			}

			// Verify matches carry the expected values through
			if comparison.TextMatch.Expected != tt.expected.Text {
				t.Errorf("Text expected mismatch: got %q, want %q",
					comparison.TextMatch.Expected, tt.expected.Text)
			}

			if comparison.NameMatch.Expected != tt.expected.Name {
				t.Errorf("Name expected mismatch: got %q, want %q",
					comparison.NameMatch.Expected, tt.expected.Name)
			}
		})
	}
}

func TestCompareScanFields_WeightedScoring(t *testing.T) {
	// Text and name are weighted at 30% and 25%, so they should dominate
	actual := ExtractedFields{
		Text:  "DARK CHARIZARD TEAM ROCKET",
		Name:  "DARK CHARIZARD TEAM ROCKET",
		Year:  "1999",
		Grade: "9",
		Cert:  "11112222",
	}
	expected := ExtractedFields{
		Text:  "DARK CHARIZARD TEAM ROCKET",
		Name:  "DARK CHARIZARD TEAM ROCKET",
		Year:  "2001",      // Wrong
		Grade: "GEM MT 10", // Wrong
		Cert:  "99990000",  // Wrong
	}

	comparison := CompareScanFields(actual, expected)

	// Even with year/grade/cert wrong, text+name perfect should give
	// Text (30%) + Name (25%) = 55% minimum
	if comparison.OverallScore < 0.5 {
		t.Errorf("Expected overall score >= 0.5 with perfect text+name, got %.2f",
			comparison.OverallScore)
	}

	if comparison.OverallScore > 0.6 {
		t.Errorf("Expected overall score <= 0.6 with wrong year/grade/cert, got %.2f",
			comparison.OverallScore)
	}
}

func TestCompareScanFields_MissingFields(t *testing.T) {
	actual := ExtractedFields{Text: "SHINING MAGIKARP"}
	expected := ExtractedFields{Text: "SHINING MAGIKARP"}

	comparison := CompareScanFields(actual, expected)

	// Name, year, grade, cert should be marked as "both_missing"
	if comparison.NameMatch.Method != "both_missing" {
		t.Errorf("Expected name method='both_missing', got %q", comparison.NameMatch.Method)
	}

	// Both missing should give partial credit (0.5)
	if comparison.NameMatch.Score != 0.5 {
		t.Errorf("Expected name score=0.5 for both_missing, got %.2f", comparison.NameMatch.Score)
	}

	if comparison.TextMatch.Method != "exact" {
		t.Errorf("Expected text method='exact', got %q", comparison.TextMatch.Method)
	}
}

func TestCompareField_ActualMissing(t *testing.T) {
	match := compareField("12345678", "")

	if match.Method != "actual_missing" {
		t.Errorf("Expected method='actual_missing', got %q", match.Method)
	}

	if match.Score != 0.0 {
		t.Errorf("Expected score=0.0, got %.2f", match.Score)
	}
}

func TestLabelParser_ExtractAll(t *testing.T) {
	parser := NewLabelParser()

	tests := []struct {
		name     string
		text     string
		expected ExtractedFields
	}{
		{
			name: "full slab label",
			text: "1999 POKEMON GAME #4 CHARIZARD-HOLO GEM MT 10 22334455",
			expected: ExtractedFields{
				Text:  "1999 POKEMON GAME #4 CHARIZARD-HOLO GEM MT 10 22334455",
				Name:  "POKEMON GAME CHARIZARD-HOLO",
				Year:  "1999",
				Grade: "GEM MT 10",
				Cert:  "22334455",
			},
		},
		{
			name: "grader prefix reduced to grade",
			text: "CHARIZARD HOLO PSA 9",
			expected: ExtractedFields{
				Text:  "CHARIZARD HOLO PSA 9",
				Name:  "CHARIZARD HOLO",
				Grade: "9",
			},
		},
		{
			name: "japanese label",
			text: "リザードン ポケモン 1996",
			expected: ExtractedFields{
				Text: "リザードン ポケモン 1996",
				Name: "リザードン ポケモン",
				Year: "1996",
			},
		},
		{
			name: "grade and cert only",
			text: "MINT 9 87654321",
			expected: ExtractedFields{
				Text:  "MINT 9 87654321",
				Grade: "MINT 9",
				Cert:  "87654321",
			},
		},
		{
			name:     "empty text",
			text:     "",
			expected: ExtractedFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.ExtractAll(tt.text)
			if result != tt.expected {
				t.Errorf("ExtractAll(%q) = %+v, want %+v", tt.text, result, tt.expected)
			}
		})
	}
}

func TestNormalizeForComparison(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "lowercases and strips punctuation",
			text:     "DARK Charizard, Holo!",
			expected: "dark charizard holo",
		},
		{
			name:     "collapses whitespace",
			text:     "  spaced   out  ",
			expected: "spaced out",
		},
		{
			name:     "keeps japanese text",
			text:     "リザードン (1996)",
			expected: "リザードン 1996",
		},
		{
			name:     "empty input",
			text:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeForComparison(tt.text)
			if result != tt.expected {
				t.Errorf("normalizeForComparison(%q) = %q, want %q", tt.text, result, tt.expected)
			}
		})
	}
}

func TestCalculateSimilarity(t *testing.T) {
	if sim := calculateSimilarity("charizard", "charizard"); sim != 1.0 {
		t.Errorf("Expected similarity 1.0 for identical strings, got %.2f", sim)
	}

	if sim := calculateSimilarity("", "charizard"); sim != 0.0 {
		t.Errorf("Expected similarity 0.0 for empty string, got %.2f", sim)
	}

	// One dropped letter should stay a near match
	if sim := calculateSimilarity("charizard", "charizrd"); sim < 0.8 {
		t.Errorf("Expected similarity >= 0.8 for one dropped letter, got %.2f", sim)
	}

	if sim := calculateSimilarity("charizard", "xyz"); sim > 0.3 {
		t.Errorf("Expected low similarity for unrelated strings, got %.2f", sim)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name     string
		s1       string
		s2       string
		expected int
	}{
		{name: "identical", s1: "pikachu", s2: "pikachu", expected: 0},
		{name: "empty to word", s1: "", s2: "abc", expected: 3},
		{name: "word to empty", s1: "abc", s2: "", expected: 3},
		{name: "kitten sitting", s1: "kitten", s2: "sitting", expected: 3},
		{name: "single substitution", s1: "charizard", s2: "charizord", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := levenshteinDistance(tt.s1, tt.s2)
			if result != tt.expected {
				t.Errorf("levenshteinDistance(%q, %q) = %d, want %d",
					tt.s1, tt.s2, result, tt.expected)
			}
		})
	}
}
