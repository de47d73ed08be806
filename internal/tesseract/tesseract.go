// Package tesseract wraps the local Tesseract OCR engine. It is the fallback
// when cloud recognition is unavailable and is never used for batch calls.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/providers"
)

// langCodes maps BCP-47 style hints to Tesseract traineddata names.
var langCodes = map[string]string{
	"en": "eng",
	"ja": "jpn",
	"zh": "chi_sim",
	"ko": "kor",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
}

// Engine runs Tesseract through gosseract. A fresh client is created per call
// because gosseract clients are not safe for concurrent use.
type Engine struct {
	DefaultLanguages []string
}

// New returns a Tesseract engine. With no languages given it reads English.
func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{DefaultLanguages: languages}
}

// Name implements providers.Engine.
func (e *Engine) Name() string { return "tesseract" }

// Recognize implements providers.Engine.
func (e *Engine) Recognize(ctx context.Context, in providers.Input) (providers.Result, error) {
	if err := ctx.Err(); err != nil {
		return providers.Result{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	langs := e.DefaultLanguages
	if hinted := mapLanguages(in.LanguageHints); len(hinted) > 0 {
		langs = hinted
	}
	if err := client.SetLanguage(langs...); err != nil {
		return providers.Result{}, &models.ProviderError{Provider: e.Name(), Err: fmt.Errorf("failed to set languages %v: %w", langs, err)}
	}
	if err := client.SetImageFromBytes(in.Image); err != nil {
		return providers.Result{}, &models.ProviderError{Provider: e.Name(), Err: fmt.Errorf("failed to load image: %w", err)}
	}

	text, err := client.Text()
	if err != nil {
		return providers.Result{}, &models.ProviderError{Provider: e.Name(), Err: fmt.Errorf("text extraction failed: %w", err)}
	}

	return providers.Result{
		Text:       strings.TrimSpace(text),
		Confidence: meanWordConfidence(client),
	}, nil
}

// meanWordConfidence averages per-word confidences, scaled from Tesseract's
// 0..100 range to 0..1. Zero when no word boxes are available.
func meanWordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes)) / 100
}

func mapLanguages(hints []string) []string {
	var langs []string
	for _, h := range hints {
		code := strings.ToLower(strings.SplitN(h, "-", 2)[0])
		if lang, ok := langCodes[code]; ok {
			langs = append(langs, lang)
		}
	}
	return langs
}
