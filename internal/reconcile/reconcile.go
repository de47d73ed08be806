// Package reconcile splits a composite recognition text block back into
// per-label results. The line allocation is a best-effort approximation, not
// per-region OCR: it assumes the provider read the grid roughly row by row
// and divides the lines evenly across labels. The package boundary keeps this
// heuristic replaceable by true per-region recognition.
package reconcile

import (
	"math"
	"regexp"
	"strings"

	"github.com/cardfolio/cardscan/internal/images"
	"github.com/cardfolio/cardscan/internal/models"
)

// Confidence heuristics. Base plus one bonus per label-shaped pattern found,
// capped at 1. These thresholds are load-bearing for downstream consumers;
// keep them stable.
const (
	baseConfidence  = 0.7
	patternBonus    = 0.1
	emptyConfidence = 0.1
)

var (
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	gradeWords  = regexp.MustCompile(`(?i)\b(GEM\s?MT|MINT|NM(-MT)?|EX(-MT)?|VG(-EX)?|GOOD|FAIR|POOR|AUTHENTIC)\b`)
	gradeScale  = regexp.MustCompile(`(?i)\b(PSA|BGS|CGC)\s?(10|[1-9](\.5)?)\b`)
	certPattern = regexp.MustCompile(`\b\d{8,10}\b`)
)

// LabelText is the text recovered for one label, keyed to its original batch
// index.
type LabelText struct {
	Index      int
	Text       string
	Confidence float64
}

// Reconciler divides composite text among stitched labels.
type Reconciler struct {
	// MinLineLength drops shorter lines as noise before allocation.
	MinLineLength int
}

// New returns a reconciler with the default noise threshold.
func New() *Reconciler {
	return &Reconciler{MinLineLength: 4}
}

// Split reconstructs per-label text from one composite recognition. Lines are
// allocated evenly in placement order (row-major on the composite) and mapped
// back to each placement's original batch index. A label allocated zero lines
// still yields an explicit empty slot.
func (r *Reconciler) Split(text string, placements []images.Placement) []LabelText {
	n := len(placements)
	if n == 0 {
		return nil
	}

	lines := r.usableLines(text)
	perLabel := 0
	if len(lines) > 0 {
		perLabel = int(math.Ceil(float64(len(lines)) / float64(n)))
	}

	out := make([]LabelText, n)
	for pos, p := range placements {
		var chunk []string
		if perLabel > 0 {
			start := pos * perLabel
			if start < len(lines) {
				end := start + perLabel
				if end > len(lines) {
					end = len(lines)
				}
				chunk = lines[start:end]
			}
		}
		labelText := strings.Join(chunk, "\n")
		out[p.Index] = LabelText{
			Index:      p.Index,
			Text:       labelText,
			Confidence: Score(labelText),
		}
	}
	return out
}

// usableLines trims, drops empties, and drops lines below the noise
// threshold.
func (r *Reconciler) usableLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) < r.MinLineLength {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Score rates recognized label text. Empty text scores the explicit low
// value; otherwise the base score gains a bonus for each of a 4-digit year, a
// grade token, and an 8 to 10 digit certificate number.
func Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return emptyConfidence
	}
	score := baseConfidence
	if yearPattern.MatchString(text) {
		score += patternBonus
	}
	if gradeWords.MatchString(text) || gradeScale.MatchString(text) {
		score += patternBonus
	}
	if certPattern.MatchString(text) {
		score += patternBonus
	}
	return models.ClampConfidence(score)
}
