package cards

import (
	"regexp"
	"strings"

	"github.com/cardfolio/cardscan/internal/models"
)

var (
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	gradePattern = regexp.MustCompile(`(?i)\b(GEM\s?MT|MINT|NM(-MT)?|EX(-MT)?|VG(-EX)?|GOOD|FAIR|POOR|AUTHENTIC|(PSA|BGS|CGC)\s?(10|[1-9](\.5)?))\b`)
	certPattern  = regexp.MustCompile(`\b\d{8,10}\b`)
	namePattern  = regexp.MustCompile(`\b[A-Z][A-Za-z'.-]{3,}(\s+[A-Z][A-Za-z'.-]{1,})*\b`)
)

// ValidateText grades recognized text without touching the network: how
// complete does it look, and what should the user do to improve a weak scan.
func ValidateText(text string) models.TextValidationResult {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 4 {
		return models.TextValidationResult{
			Quality: "poor",
			Recommendations: []string{
				"No usable text was recognized; retake the photo closer to the label with even lighting.",
			},
		}
	}

	years := yearPattern.FindAllString(trimmed, -1)
	names := candidateNames(trimmed)
	hasGrade := gradePattern.MatchString(trimmed)
	hasCert := certPattern.MatchString(trimmed)

	signals := 0
	if len(years) > 0 {
		signals++
	}
	if len(names) > 0 {
		signals++
	}
	if hasGrade {
		signals++
	}
	if hasCert {
		signals++
	}

	var quality string
	switch {
	case signals >= 3:
		quality = "excellent"
	case signals == 2:
		quality = "good"
	case signals == 1:
		quality = "fair"
	default:
		quality = "poor"
	}

	var recs []string
	if len(years) == 0 {
		recs = append(recs, "No 4-digit year found; include the set year printed on the label.")
	}
	if len(names) == 0 {
		recs = append(recs, "No card name detected; make sure the name line is in frame and in focus.")
	}
	if !hasGrade {
		recs = append(recs, "No grade token found; for graded cards include the grade line.")
	}
	if !hasCert {
		recs = append(recs, "No certificate number found; the 8-10 digit cert improves match precision.")
	}

	return models.TextValidationResult{
		Quality:         quality,
		CandidateNames:  names,
		CandidateYears:  dedupe(years),
		Recommendations: recs,
	}
}

// candidateNames pulls capitalized word runs that are not grade vocabulary.
func candidateNames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		for _, m := range namePattern.FindAllString(line, -1) {
			m = strings.TrimSpace(m)
			if gradePattern.MatchString(m) || seen[strings.ToLower(m)] {
				continue
			}
			seen[strings.ToLower(m)] = true
			names = append(names, m)
		}
	}
	return names
}

func dedupe(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
