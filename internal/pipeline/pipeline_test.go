package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/cardfolio/cardscan/internal/cache"
	"github.com/cardfolio/cardscan/internal/cards"
	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/ocr"
	"github.com/cardfolio/cardscan/internal/providers"
	"github.com/cardfolio/cardscan/internal/reconcile"
)

const psaLabelText = "1999 POKEMON CHARIZARD PSA 10 12345678"

type stubEngine struct {
	name string
	fn   func(in providers.Input) (providers.Result, error)

	mu    sync.Mutex
	calls int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Recognize(ctx context.Context, in providers.Input) (providers.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(in)
}

func (s *stubEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeMatcher struct {
	fn func(text string, hint models.CardType) (*models.CardDetectionResult, error)

	mu    sync.Mutex
	calls int
}

func (m *fakeMatcher) Match(ctx context.Context, text string, hint models.CardType) (*models.CardDetectionResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(text, hint)
	}
	return &models.CardDetectionResult{Label: text, Confidence: 0.8}, nil
}

func (m *fakeMatcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func fixedText(text string) func(in providers.Input) (providers.Result, error) {
	return func(in providers.Input) (providers.Result, error) {
		return providers.Result{Text: text, Confidence: 0.9}, nil
	}
}

func labelPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 210, G: 40, B: 40, A: 255}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestOrchestrator(t *testing.T, primary, secondary *stubEngine, matcher Matcher) *Orchestrator {
	t.Helper()
	chain, err := providers.NewChain(time.Second, primary, secondary)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	d := ocr.NewDispatcher(chain, reconcile.New(), 0, 0)
	return New(d, nil, matcher, cache.New(8, time.Minute))
}

func TestProcessSingleHappyPath(t *testing.T) {
	primary := &stubEngine{name: "cloud", fn: fixedText(psaLabelText)}
	secondary := &stubEngine{name: "local", fn: fixedText("should not run")}
	matcher := &fakeMatcher{}
	o := newTestOrchestrator(t, primary, secondary, matcher)

	task := models.NewRecognitionTask(labelPNG(t, 400, 600), "image/png", models.CardTypePSALabel, models.ProcessOptions{})
	res, err := o.ProcessSingle(context.Background(), task)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}

	if res.Provenance != models.ProvenancePrimaryCloud {
		t.Errorf("provenance = %q", res.Provenance)
	}
	if res.Text != psaLabelText {
		t.Errorf("text = %q", res.Text)
	}
	if res.DetectedType != models.CardTypePSALabel {
		t.Errorf("detected type = %q", res.DetectedType)
	}
	if res.Detection == nil {
		t.Fatal("no detection attached")
	}
	if res.Detection.Label != psaLabelText {
		t.Errorf("detection label = %q", res.Detection.Label)
	}
	if secondary.callCount() != 0 {
		t.Errorf("secondary called %d times", secondary.callCount())
	}
}

func TestProcessSingleRejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText("x")}, &stubEngine{name: "local", fn: fixedText("x")}, nil)

	tests := []struct {
		name string
		task models.RecognitionTask
	}{
		{"empty payload", models.RecognitionTask{MediaType: "image/png"}},
		{"oversize image", models.RecognitionTask{Image: []byte("x"), Size: 11 << 20, MediaType: "image/jpeg"}},
		{"non-image media type", models.RecognitionTask{Image: []byte("x"), Size: 1, MediaType: "application/pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.ProcessSingle(context.Background(), tt.task)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error = %v, want a *models.ValidationError", err)
			}
		})
	}
}

func TestProcessBatchEmptyIsValidationError(t *testing.T) {
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText("x")}, &stubEngine{name: "local", fn: fixedText("x")}, nil)

	_, err := o.ProcessBatch(context.Background(), nil)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("error = %v, want a *models.ValidationError", err)
	}
}

func TestProcessBatchIsolatesInvalidMembers(t *testing.T) {
	primary := &stubEngine{name: "cloud", fn: fixedText("1999 POKEMON BLASTOISE HOLO")}
	o := newTestOrchestrator(t, primary, &stubEngine{name: "local", fn: fixedText("x")}, &fakeMatcher{})

	tasks := []models.RecognitionTask{
		models.NewRecognitionTask(labelPNG(t, 200, 300), "image/png", models.CardTypeEnglish, models.ProcessOptions{}),
		{ID: "too-big", Image: []byte("x"), Size: 11 << 20, MediaType: "image/jpeg"},
		models.NewRecognitionTask(labelPNG(t, 200, 300), "image/png", models.CardTypeEnglish, models.ProcessOptions{}),
	}

	results, err := o.ProcessBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[1].Provenance != models.ProvenanceError {
		t.Errorf("invalid slot provenance = %q", results[1].Provenance)
	}
	if results[1].TaskID != "too-big" {
		t.Errorf("invalid slot task id = %q", results[1].TaskID)
	}
	if results[1].Error == "" {
		t.Error("invalid slot has no error description")
	}
	for _, i := range []int{0, 2} {
		if results[i].Provenance != models.ProvenancePrimaryCloud {
			t.Errorf("slot %d provenance = %q", i, results[i].Provenance)
		}
		if results[i].TaskID != tasks[i].ID {
			t.Errorf("slot %d task id mismatch", i)
		}
	}
}

func TestProcessBatchStitchesPSALabels(t *testing.T) {
	stitchedText := "LINE ALPHA ONE\nLINE BRAVO TWO\nLINE CHARLIE THREE\nLINE DELTA FOUR\nLINE ECHO FIVE"
	primary := &stubEngine{name: "cloud", fn: fixedText(stitchedText)}
	o := newTestOrchestrator(t, primary, &stubEngine{name: "local", fn: fixedText("x")}, nil)

	opts := models.ProcessOptions{EnableStitching: true}
	tasks := make([]models.RecognitionTask, 5)
	for i := range tasks {
		tasks[i] = models.NewRecognitionTask(labelPNG(t, 200, 200), "image/png", models.CardTypePSALabel, opts)
	}

	results, err := o.ProcessBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, res := range results {
		if res.Provenance != models.ProvenanceStitchedComposite {
			t.Errorf("result %d provenance = %q, want stitched-composite", i, res.Provenance)
		}
	}
	if results[0].Text != "LINE ALPHA ONE" || results[4].Text != "LINE ECHO FIVE" {
		t.Errorf("line allocation off: first %q, last %q", results[0].Text, results[4].Text)
	}
	if primary.callCount() != 1 {
		t.Errorf("primary calls = %d, want 1 for the whole batch", primary.callCount())
	}
}

func TestProcessBatchWithoutStitchingOptIn(t *testing.T) {
	primary := &stubEngine{name: "cloud", fn: fixedText("PLAIN CARD TEXT")}
	o := newTestOrchestrator(t, primary, &stubEngine{name: "local", fn: fixedText("x")}, nil)

	tasks := make([]models.RecognitionTask, 2)
	for i := range tasks {
		tasks[i] = models.NewRecognitionTask(labelPNG(t, 200, 200), "image/png", models.CardTypePSALabel, models.ProcessOptions{})
	}

	results, err := o.ProcessBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	for i, res := range results {
		if res.Provenance != models.ProvenancePrimaryCloud {
			t.Errorf("result %d provenance = %q, want primary-cloud", i, res.Provenance)
		}
	}
	if primary.callCount() != 2 {
		t.Errorf("primary calls = %d, want one per image", primary.callCount())
	}
}

func TestProcessSingleFallsBackToSecondary(t *testing.T) {
	primary := &stubEngine{name: "cloud", fn: func(in providers.Input) (providers.Result, error) {
		return providers.Result{}, errors.New("quota exhausted")
	}}
	secondary := &stubEngine{name: "local", fn: fixedText("1999 POKEMON PIKACHU")}
	o := newTestOrchestrator(t, primary, secondary, nil)

	task := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypeEnglish, models.ProcessOptions{})
	res, err := o.ProcessSingle(context.Background(), task)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if res.Provenance != models.ProvenanceSecondaryLocal {
		t.Errorf("provenance = %q, want secondary-local", res.Provenance)
	}
}

func TestDetectionCachedAcrossCalls(t *testing.T) {
	matcher := &fakeMatcher{}
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText(psaLabelText)}, &stubEngine{name: "local", fn: fixedText("x")}, matcher)

	task1 := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypePSALabel, models.ProcessOptions{})
	task2 := models.NewRecognitionTask(labelPNG(t, 320, 420), "image/png", models.CardTypePSALabel, models.ProcessOptions{})

	if _, err := o.ProcessSingle(context.Background(), task1); err != nil {
		t.Fatalf("first ProcessSingle: %v", err)
	}
	if _, err := o.ProcessSingle(context.Background(), task2); err != nil {
		t.Fatalf("second ProcessSingle: %v", err)
	}

	if matcher.callCount() != 1 {
		t.Errorf("matcher calls = %d, want 1 with the second served from cache", matcher.callCount())
	}
	if stats := o.CacheStats(); stats.Size != 1 {
		t.Errorf("cache size = %d, want 1", stats.Size)
	}

	o.ClearCache()
	if stats := o.CacheStats(); stats.Size != 0 {
		t.Errorf("cache size after clear = %d", stats.Size)
	}
}

func TestMatcherMissIsNotCached(t *testing.T) {
	matcher := &fakeMatcher{fn: func(text string, hint models.CardType) (*models.CardDetectionResult, error) {
		return nil, cards.ErrNotFound
	}}
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText(psaLabelText)}, &stubEngine{name: "local", fn: fixedText("x")}, matcher)

	task := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypePSALabel, models.ProcessOptions{})
	res, err := o.ProcessSingle(context.Background(), task)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if res.Detection != nil {
		t.Error("expected a nil detection for a matcher miss")
	}

	if _, err := o.ProcessSingle(context.Background(), task); err != nil {
		t.Fatalf("second ProcessSingle: %v", err)
	}
	if matcher.callCount() != 2 {
		t.Errorf("matcher calls = %d, want misses retried every time", matcher.callCount())
	}
}

func TestMatcherFailureDegradesToNilDetection(t *testing.T) {
	matcher := &fakeMatcher{fn: func(text string, hint models.CardType) (*models.CardDetectionResult, error) {
		return nil, &models.DetectionError{Err: errors.New("matcher unreachable")}
	}}
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText(psaLabelText)}, &stubEngine{name: "local", fn: fixedText("x")}, matcher)

	task := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypePSALabel, models.ProcessOptions{})
	res, err := o.ProcessSingle(context.Background(), task)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if res.Detection != nil {
		t.Error("expected a nil detection when the matcher is down")
	}
	if res.Text != psaLabelText {
		t.Errorf("text = %q, recognition must survive a matcher outage", res.Text)
	}
}

func TestEmptyTextSkipsDetection(t *testing.T) {
	matcher := &fakeMatcher{}
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText("")}, &stubEngine{name: "local", fn: fixedText("x")}, matcher)

	task := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypeGeneric, models.ProcessOptions{})
	res, err := o.ProcessSingle(context.Background(), task)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if matcher.callCount() != 0 {
		t.Errorf("matcher calls = %d, want 0 for empty text", matcher.callCount())
	}
	if res.Detection != nil || res.DetectedType != "" {
		t.Error("empty text should not be classified or matched")
	}
}

func TestAdvancedModeSelectsLLMChain(t *testing.T) {
	standardEngine := &stubEngine{name: "cloud", fn: fixedText("standard read")}
	llmEngine := &stubEngine{name: "gemini", fn: fixedText("llm read")}
	local := &stubEngine{name: "local", fn: fixedText("x")}

	standardChain, err := providers.NewChain(time.Second, standardEngine, local)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	advancedChain, err := providers.NewChain(time.Second, llmEngine, standardEngine, local)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	reconciler := reconcile.New()
	o := New(
		ocr.NewDispatcher(standardChain, reconciler, 0, 0),
		ocr.NewDispatcher(advancedChain, reconciler, 0, 0),
		nil,
		nil,
	)

	plain := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypeGeneric, models.ProcessOptions{})
	res, err := o.ProcessSingle(context.Background(), plain)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if res.Text != "standard read" {
		t.Errorf("text = %q, want the standard chain", res.Text)
	}

	adv := models.NewRecognitionTask(labelPNG(t, 300, 400), "image/png", models.CardTypeGeneric, models.ProcessOptions{AdvancedMode: true})
	res, err = o.ProcessSingle(context.Background(), adv)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if res.Text != "llm read" {
		t.Errorf("text = %q, want the vision-LLM chain", res.Text)
	}

	// A mixed batch stays on the standard chain.
	results, err := o.ProcessBatch(context.Background(), []models.RecognitionTask{plain, adv})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	for i, res := range results {
		if res.Text != "standard read" {
			t.Errorf("result %d text = %q, want the standard chain for mixed batches", i, res.Text)
		}
	}
}

func TestValidateTextDelegates(t *testing.T) {
	o := newTestOrchestrator(t, &stubEngine{name: "cloud", fn: fixedText("x")}, &stubEngine{name: "local", fn: fixedText("x")}, nil)

	got := o.ValidateText("1999 POKEMON CHARIZARD PSA 10 CERT 12345678")
	if got.Quality != "excellent" {
		t.Errorf("quality = %q, want excellent", got.Quality)
	}
	if got := o.ValidateText("ab"); got.Quality != "poor" {
		t.Errorf("quality = %q, want poor for short text", got.Quality)
	}
}

func TestProcessBatchPreservesOrderUnderConcurrency(t *testing.T) {
	primary := &stubEngine{name: "cloud", fn: func(in providers.Input) (providers.Result, error) {
		return providers.Result{Text: fmt.Sprintf("%d bytes", len(in.Image)), Confidence: 0.9}, nil
	}}
	o := newTestOrchestrator(t, primary, &stubEngine{name: "local", fn: fixedText("x")}, nil)

	sizes := []int{100, 140, 180, 220, 260}
	tasks := make([]models.RecognitionTask, len(sizes))
	for i, w := range sizes {
		tasks[i] = models.NewRecognitionTask(labelPNG(t, w, w), "image/png", models.CardTypeGeneric, models.ProcessOptions{Concurrent: true})
	}

	results, err := o.ProcessBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, res := range results {
		if res.Provenance != models.ProvenancePrimaryCloudAsync {
			t.Errorf("result %d provenance = %q, want primary-cloud-async", i, res.Provenance)
		}
		if res.TaskID != tasks[i].ID {
			t.Errorf("result %d task id mismatch", i)
		}
	}
}
