package models

import (
	"time"

	"github.com/google/uuid"
)

// CardType is the caller-declared hint for what kind of card an image shows.
type CardType string

const (
	CardTypePSALabel CardType = "psa-label"
	CardTypeEnglish  CardType = "english"
	CardTypeJapanese CardType = "japanese"
	CardTypeGeneric  CardType = "generic"
)

// Provenance identifies which provider and strategy produced a result.
type Provenance string

const (
	ProvenancePrimaryCloud      Provenance = "primary-cloud"
	ProvenancePrimaryCloudBatch Provenance = "primary-cloud-batch"
	ProvenancePrimaryCloudAsync Provenance = "primary-cloud-async"
	ProvenanceSecondaryLocal    Provenance = "secondary-local"
	ProvenanceStitchedComposite Provenance = "stitched-composite"
	ProvenanceError             Provenance = "error"
)

// ProcessOptions carries per-request processing preferences.
type ProcessOptions struct {
	LanguageHints   []string `json:"language_hints,omitempty"`
	EnableStitching bool     `json:"enable_stitching"`
	MultiCard       bool     `json:"multi_card"`
	Concurrent      bool     `json:"concurrent"`
	AdvancedMode    bool     `json:"advanced_mode"`
}

// RecognitionTask is one input image submitted to the pipeline. Tasks are
// immutable after creation and consumed once.
type RecognitionTask struct {
	ID        string         `json:"id"`
	Image     []byte         `json:"-"`
	MediaType string         `json:"media_type"`
	Size      int64          `json:"size"`
	CardType  CardType       `json:"card_type"`
	Options   ProcessOptions `json:"options"`
}

// NewRecognitionTask builds a task for a single image payload.
func NewRecognitionTask(image []byte, mediaType string, cardType CardType, opts ProcessOptions) RecognitionTask {
	if cardType == "" {
		cardType = CardTypeGeneric
	}
	return RecognitionTask{
		ID:        uuid.NewString(),
		Image:     image,
		MediaType: mediaType,
		Size:      int64(len(image)),
		CardType:  cardType,
		Options:   opts,
	}
}

// RecognitionResult is the per-image outcome of a pipeline run.
type RecognitionResult struct {
	TaskID     string        `json:"task_id"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Provenance Provenance    `json:"provenance"`
	Elapsed    time.Duration `json:"elapsed_ns"`

	// DetectedType and Features hold the heuristic card-type classification
	// derived from the recognized text, when one could be made.
	DetectedType CardType `json:"detected_type,omitempty"`
	Features     []string `json:"features,omitempty"`

	// Detection is the structured card lookup attached when the matcher
	// service found a plausible card for the recognized text.
	Detection *CardDetectionResult `json:"detection,omitempty"`

	// Error holds the failure description for degraded slots (provenance
	// "error"); other slots in the same batch are unaffected.
	Error string `json:"error,omitempty"`
}

// CardFields are the structured values extracted from a label by the matcher.
// Extraction quality varies, so every field is optional.
type CardFields struct {
	Name       string `json:"name,omitempty"`
	SetName    string `json:"set_name,omitempty"`
	Year       string `json:"year,omitempty"`
	Number     string `json:"number,omitempty"`
	Grade      string `json:"grade,omitempty"`
	CertNumber string `json:"cert_number,omitempty"`
}

// CardSuggestion is one ranked candidate from the card-matching service.
type CardSuggestion struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Name     string  `json:"name"`
	SetName  string  `json:"set_name,omitempty"`
	Year     string  `json:"year,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// CardDetectionResult is the matcher's structured answer for one piece of
// recognized text.
type CardDetectionResult struct {
	Label       string           `json:"label"`
	Fields      CardFields       `json:"fields"`
	Suggestions []CardSuggestion `json:"suggestions,omitempty"`
	Confidence  float64          `json:"confidence"`
}

// TextValidationResult grades recognized text without any network calls.
type TextValidationResult struct {
	Quality         string   `json:"quality"` // excellent, good, fair, poor
	CandidateNames  []string `json:"candidate_names,omitempty"`
	CandidateYears  []string `json:"candidate_years,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// ClampConfidence bounds a confidence score to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
