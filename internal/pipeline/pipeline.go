// Package pipeline drives the full scan flow: input validation, image
// preparation, recognition dispatch, text classification, and card detection.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cardfolio/cardscan/internal/cache"
	"github.com/cardfolio/cardscan/internal/cards"
	"github.com/cardfolio/cardscan/internal/images"
	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/ocr"
	"github.com/cardfolio/cardscan/internal/telemetry"
)

// DefaultMaxImageBytes caps a single upload. Phone photos of slabs stay well
// under this.
const DefaultMaxImageBytes = 10 << 20

// Matcher resolves recognized text to a structured card.
type Matcher interface {
	Match(ctx context.Context, text string, hint models.CardType) (*models.CardDetectionResult, error)
}

// Orchestrator wires the pipeline stages together. It is safe for concurrent
// use.
type Orchestrator struct {
	preprocessor *images.Preprocessor
	stitcher     *images.Stitcher
	standard     *ocr.Dispatcher
	// advanced dispatches through a vision-LLM-first chain. Nil when no such
	// engine is configured; requests asking for advanced mode then use the
	// standard chain.
	advanced      *ocr.Dispatcher
	matcher       Matcher
	detections    *cache.Cache
	maxImageBytes int64
}

// New assembles an orchestrator. advanced may be nil; matcher may be nil to
// disable card detection; a nil detections cache gets the defaults.
func New(standard, advanced *ocr.Dispatcher, matcher Matcher, detections *cache.Cache) *Orchestrator {
	if detections == nil {
		detections = cache.New(0, 0)
	}
	return &Orchestrator{
		preprocessor:  images.NewPreprocessor(),
		stitcher:      images.NewStitcher(),
		standard:      standard,
		advanced:      advanced,
		matcher:       matcher,
		detections:    detections,
		maxImageBytes: DefaultMaxImageBytes,
	}
}

// ProcessSingle runs one image through the pipeline. Invalid input fails fast
// with a *models.ValidationError.
func (o *Orchestrator) ProcessSingle(ctx context.Context, task models.RecognitionTask) (*models.RecognitionResult, error) {
	if err := o.validateTask(task); err != nil {
		return nil, err
	}
	results := o.run(ctx, []models.RecognitionTask{task})
	return &results[0], nil
}

// ProcessBatch runs a batch through the pipeline. The output always has the
// same length and order as the input: invalid or failed members occupy their
// slot with error provenance instead of removing it. The only error returned
// is a *models.ValidationError for an empty batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, tasks []models.RecognitionTask) ([]models.RecognitionResult, error) {
	if len(tasks) == 0 {
		return nil, models.NewValidationError("batch contains no images")
	}
	telemetry.RecordBatch(len(tasks))

	results := make([]models.RecognitionResult, len(tasks))
	valid := make([]models.RecognitionTask, 0, len(tasks))
	slots := make([]int, 0, len(tasks))
	for i, task := range tasks {
		if err := o.validateTask(task); err != nil {
			slog.Warn("Rejected batch member", "task_id", task.ID, "err", err)
			results[i] = models.RecognitionResult{
				TaskID:     task.ID,
				Provenance: models.ProvenanceError,
				Error:      err.Error(),
			}
			continue
		}
		valid = append(valid, task)
		slots = append(slots, i)
	}
	if len(valid) == 0 {
		return results, nil
	}

	for i, res := range o.run(ctx, valid) {
		results[slots[i]] = res
	}
	return results, nil
}

// ValidateText grades recognized text offline, without provider calls.
func (o *Orchestrator) ValidateText(text string) models.TextValidationResult {
	return cards.ValidateText(text)
}

// CacheStats reports detection cache occupancy.
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.detections.Stats()
}

// ClearCache drops all cached detections.
func (o *Orchestrator) ClearCache() {
	o.detections.Clear()
}

// run processes validated tasks: preprocess, stitch when the batch qualifies,
// dispatch, then classify and attach detections per result.
func (o *Orchestrator) run(ctx context.Context, tasks []models.RecognitionTask) []models.RecognitionResult {
	start := time.Now()

	prepared := make([]images.Processed, len(tasks))
	for i, task := range tasks {
		prepared[i] = o.preprocessor.Prepare(task.Image, task.MediaType, task.CardType)
	}

	batch := ocr.Batch{Tasks: tasks, Prepared: prepared}
	if o.stitcher.ShouldStitch(tasks) {
		imgs := make([][]byte, len(prepared))
		for i, p := range prepared {
			imgs[i] = p.Data
		}
		comp, err := o.stitcher.Stitch(imgs)
		if err != nil {
			slog.Warn("Stitching failed, dispatching images individually", "err", err)
		} else {
			batch.Composite = comp
			telemetry.RecordStitch(comp.CompressionRatio)
		}
	}

	results := o.dispatcherFor(tasks).Dispatch(ctx, batch)
	for i := range results {
		o.finalize(ctx, &results[i], tasks[i])
	}

	slog.Info("Pipeline run complete", "tasks", len(tasks), "elapsed", time.Since(start))
	return results
}

// dispatcherFor returns the advanced dispatcher when every task in the batch
// asks for advanced mode and one is configured.
func (o *Orchestrator) dispatcherFor(tasks []models.RecognitionTask) *ocr.Dispatcher {
	if o.advanced == nil {
		return o.standard
	}
	for _, t := range tasks {
		if !t.Options.AdvancedMode {
			return o.standard
		}
	}
	return o.advanced
}

// finalize classifies the recognized text and attaches a card detection.
// Error slots and empty text are left as is.
func (o *Orchestrator) finalize(ctx context.Context, res *models.RecognitionResult, task models.RecognitionTask) {
	if res.Provenance == models.ProvenanceError || strings.TrimSpace(res.Text) == "" {
		return
	}
	res.DetectedType, res.Features = Classify(res.Text, task.CardType)
	res.Detection = o.detect(ctx, res.Text, task.CardType)
}

// detect looks the text up in the cache, then the matcher. A miss from the
// matcher or any matcher failure yields a nil detection; only successful
// matches are cached.
func (o *Orchestrator) detect(ctx context.Context, text string, hint models.CardType) *models.CardDetectionResult {
	if o.matcher == nil {
		return nil
	}

	key := cache.Key(text, hint)
	if detection, ok := o.detections.Get(key); ok {
		telemetry.RecordCacheLookup(true)
		return detection
	}
	telemetry.RecordCacheLookup(false)

	detection, err := o.matcher.Match(ctx, text, hint)
	if err != nil {
		if !errors.Is(err, cards.ErrNotFound) {
			slog.Warn("Card match failed", "err", err)
		}
		return nil
	}
	o.detections.Set(key, detection)
	return detection
}

func (o *Orchestrator) validateTask(task models.RecognitionTask) error {
	if len(task.Image) == 0 {
		return models.NewValidationError("image payload is empty")
	}
	if task.Size > o.maxImageBytes {
		return models.NewValidationError("image is %d bytes, the limit is %d", task.Size, o.maxImageBytes)
	}
	if task.MediaType != "" && !strings.HasPrefix(task.MediaType, "image/") {
		return models.NewValidationError("unsupported media type %q", task.MediaType)
	}
	return nil
}
