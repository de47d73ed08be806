// Package ocr chooses and executes a recognition strategy for a batch of
// card images.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cardfolio/cardscan/internal/images"
	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/providers"
	"github.com/cardfolio/cardscan/internal/reconcile"
	"github.com/cardfolio/cardscan/internal/telemetry"
)

const (
	DefaultBatchCeiling = 50
	DefaultFanout       = 4
)

// Batch couples tasks with their preprocessed payloads and, when stitching
// succeeded, the composite to recognize instead.
type Batch struct {
	Tasks    []models.RecognitionTask
	Prepared []images.Processed
	// Composite selects the stitched strategy when non-nil.
	Composite *images.Composite
}

// Dispatcher executes one of four strategies per batch, in priority order:
// stitched composite, provider-native batch, concurrent fan-out, sequential.
// Every strategy runs each call through the provider fallback chain; a batch
// of N tasks always yields N results.
type Dispatcher struct {
	chain        *providers.Chain
	reconciler   *reconcile.Reconciler
	batchCeiling int
	fanout       int
}

// NewDispatcher builds a dispatcher. Non-positive ceiling or fanout select
// the defaults.
func NewDispatcher(chain *providers.Chain, reconciler *reconcile.Reconciler, batchCeiling, fanout int) *Dispatcher {
	if batchCeiling <= 0 {
		batchCeiling = DefaultBatchCeiling
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &Dispatcher{
		chain:        chain,
		reconciler:   reconciler,
		batchCeiling: batchCeiling,
		fanout:       fanout,
	}
}

// Dispatch recognizes every task in the batch. Failed strategies degrade to
// per-image dispatch; failed images degrade to error result slots. The
// returned slice matches the task order.
func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch) []models.RecognitionResult {
	n := len(batch.Tasks)
	if n == 0 {
		return nil
	}

	if batch.Composite != nil {
		results, err := d.dispatchStitched(ctx, batch)
		if err == nil {
			return results
		}
		slog.Warn("Stitched dispatch failed, retrying per image", "err", err)
	}

	if n >= 2 && n <= d.batchCeiling {
		if _, ok := d.chain.PrimaryBatch(); ok {
			results, err := d.dispatchBatch(ctx, batch)
			if err == nil {
				return results
			}
			slog.Warn("Provider batch dispatch failed, retrying per image", "err", err)
		}
	}

	if n >= 3 && concurrencyRequested(batch.Tasks) {
		return d.dispatchFanout(ctx, batch)
	}

	return d.dispatchSequential(ctx, batch)
}

// dispatchStitched makes one chain call against the composite and splits the
// returned text back into per-task results.
func (d *Dispatcher) dispatchStitched(ctx context.Context, batch Batch) ([]models.RecognitionResult, error) {
	comp := batch.Composite
	if len(comp.Placements) != len(batch.Tasks) {
		return nil, fmt.Errorf("composite has %d placements for %d tasks", len(comp.Placements), len(batch.Tasks))
	}

	start := time.Now()
	res, served, err := d.chain.Recognize(ctx, providers.Input{
		Image:         comp.Data,
		MediaType:     "image/png",
		LanguageHints: collectHints(batch.Tasks),
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	parts := d.reconciler.Split(res.Text, comp.Placements)
	results := make([]models.RecognitionResult, len(batch.Tasks))
	for _, part := range parts {
		task := batch.Tasks[part.Index]
		results[part.Index] = models.RecognitionResult{
			TaskID:     task.ID,
			Text:       part.Text,
			Confidence: models.ClampConfidence(part.Confidence),
			Provenance: models.ProvenanceStitchedComposite,
			Elapsed:    elapsed,
		}
		telemetry.RecordRecognition(served, string(models.ProvenanceStitchedComposite), elapsed)
	}
	slog.Info("Recognized stitched composite", "tasks", len(batch.Tasks), "engine", served, "elapsed", elapsed)
	return results, nil
}

// dispatchBatch makes one provider-native batch call against the primary
// engine.
func (d *Dispatcher) dispatchBatch(ctx context.Context, batch Batch) ([]models.RecognitionResult, error) {
	ins := make([]providers.Input, len(batch.Tasks))
	for i := range batch.Tasks {
		ins[i] = d.inputFor(batch, i)
	}

	start := time.Now()
	raw, err := d.chain.RecognizeBatch(ctx, ins)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	engine := d.chain.Primary().Name()
	results := make([]models.RecognitionResult, len(batch.Tasks))
	for i, r := range raw {
		results[i] = d.successResult(batch.Tasks[i], r, models.ProvenancePrimaryCloudBatch, elapsed)
		telemetry.RecordRecognition(engine, string(models.ProvenancePrimaryCloudBatch), elapsed)
	}
	slog.Info("Recognized provider-native batch", "tasks", len(batch.Tasks), "engine", engine, "elapsed", elapsed)
	return results, nil
}

// dispatchFanout recognizes every image in its own goroutine, bounded by a
// semaphore. Each slot is written by exactly one goroutine, so results come
// back in submission order regardless of completion order.
func (d *Dispatcher) dispatchFanout(ctx context.Context, batch Batch) []models.RecognitionResult {
	results := make([]models.RecognitionResult, len(batch.Tasks))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, d.fanout)
	for i := range batch.Tasks {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			results[idx] = d.recognizeOne(ctx, batch, idx, models.ProvenancePrimaryCloudAsync)
		}(i)
	}
	wg.Wait()

	slog.Info("Recognized batch with concurrent fan-out", "tasks", len(batch.Tasks), "fanout", d.fanout)
	return results
}

func (d *Dispatcher) dispatchSequential(ctx context.Context, batch Batch) []models.RecognitionResult {
	results := make([]models.RecognitionResult, len(batch.Tasks))
	for i := range batch.Tasks {
		results[i] = d.recognizeOne(ctx, batch, i, models.ProvenancePrimaryCloud)
	}
	return results
}

// recognizeOne runs a single image through the fallback chain. primaryProv is
// the provenance to record when the primary engine serves; fallback service
// is tagged secondary-local, and total failure synthesizes an error slot.
func (d *Dispatcher) recognizeOne(ctx context.Context, batch Batch, idx int, primaryProv models.Provenance) models.RecognitionResult {
	task := batch.Tasks[idx]

	start := time.Now()
	res, served, err := d.chain.Recognize(ctx, d.inputFor(batch, idx))
	elapsed := time.Since(start)
	if err != nil {
		slog.Error("Recognition failed for image", "task", task.ID, "err", err)
		telemetry.RecordRecognition("none", string(models.ProvenanceError), elapsed)
		return models.RecognitionResult{
			TaskID:     task.ID,
			Provenance: models.ProvenanceError,
			Elapsed:    elapsed,
			Error:      err.Error(),
		}
	}

	prov := primaryProv
	if served != d.chain.Primary().Name() {
		prov = models.ProvenanceSecondaryLocal
	}
	result := d.successResult(task, res, prov, elapsed)
	telemetry.RecordRecognition(served, string(prov), elapsed)
	return result
}

// successResult assembles a result from a raw engine response. Engines that
// report no confidence get the text-pattern heuristic score instead.
func (d *Dispatcher) successResult(task models.RecognitionTask, res providers.Result, prov models.Provenance, elapsed time.Duration) models.RecognitionResult {
	conf := res.Confidence
	if conf == 0 && res.Text != "" {
		conf = reconcile.Score(res.Text)
	}
	return models.RecognitionResult{
		TaskID:     task.ID,
		Text:       res.Text,
		Confidence: models.ClampConfidence(conf),
		Provenance: prov,
		Elapsed:    elapsed,
	}
}

// inputFor prefers the preprocessed payload, falling back to the original
// upload when preprocessing was degraded or absent.
func (d *Dispatcher) inputFor(batch Batch, idx int) providers.Input {
	task := batch.Tasks[idx]
	in := providers.Input{
		Image:         task.Image,
		MediaType:     task.MediaType,
		LanguageHints: task.Options.LanguageHints,
	}
	if idx < len(batch.Prepared) && len(batch.Prepared[idx].Data) > 0 {
		in.Image = batch.Prepared[idx].Data
		in.MediaType = batch.Prepared[idx].MediaType
	}
	return in
}

func concurrencyRequested(tasks []models.RecognitionTask) bool {
	for _, t := range tasks {
		if !t.Options.Concurrent {
			return false
		}
	}
	return true
}

func collectHints(tasks []models.RecognitionTask) []string {
	var hints []string
	seen := make(map[string]bool)
	for _, t := range tasks {
		for _, h := range t.Options.LanguageHints {
			if seen[h] {
				continue
			}
			seen[h] = true
			hints = append(hints, h)
		}
	}
	return hints
}
