package pipeline

import (
	"fmt"

	"github.com/cardfolio/cardscan/internal/cache"
	"github.com/cardfolio/cardscan/internal/cards"
	"github.com/cardfolio/cardscan/internal/config"
	"github.com/cardfolio/cardscan/internal/gemini"
	"github.com/cardfolio/cardscan/internal/ocr"
	"github.com/cardfolio/cardscan/internal/ollama"
	"github.com/cardfolio/cardscan/internal/openai"
	"github.com/cardfolio/cardscan/internal/providers"
	"github.com/cardfolio/cardscan/internal/reconcile"
	"github.com/cardfolio/cardscan/internal/tesseract"
	"github.com/cardfolio/cardscan/internal/vision"
)

// NewFromConfig builds the full pipeline from configuration: engine chains,
// dispatchers, the matcher client, and the detection cache.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	cloud, llm, err := buildCloudEngines(cfg.Provider)
	if err != nil {
		return nil, err
	}
	local := tesseract.New(cfg.Provider.TesseractLanguages...)

	reconciler := reconcile.New()
	if cfg.Pipeline.MinLineLength > 0 {
		reconciler.MinLineLength = cfg.Pipeline.MinLineLength
	}

	standardChain, err := providers.NewChain(cfg.Provider.CallTimeout(), cloud, local)
	if err != nil {
		return nil, err
	}
	standard := ocr.NewDispatcher(standardChain, reconciler, cfg.Provider.BatchCeiling, cfg.Pipeline.Fanout)

	var advanced *ocr.Dispatcher
	if llm != nil {
		advancedChain, err := providers.NewChain(cfg.Provider.CallTimeout(), llm, cloud, local)
		if err != nil {
			return nil, err
		}
		advanced = ocr.NewDispatcher(advancedChain, reconciler, cfg.Provider.BatchCeiling, cfg.Pipeline.Fanout)
	}

	matcher := cards.NewClient(cfg.Matcher.BaseURL, cfg.Matcher.APIKey)
	detections := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL())

	o := New(standard, advanced, matcher, detections)
	applyTuning(o, cfg.Pipeline)
	return o, nil
}

// buildCloudEngines returns the configured primary cloud engine and, when the
// primary is plain OCR, a vision-LLM engine for advanced-mode requests.
func buildCloudEngines(cfg config.ProviderConfig) (cloud, llm providers.Engine, err error) {
	switch cfg.Cloud {
	case "vision":
		cloud = vision.NewEngine(cfg.VisionAPIKey, cfg.VisionEndpoint)
	case "gemini":
		cloud = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		cloud = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "ollama":
		cloud = ollama.New(cfg.OllamaHost, cfg.OllamaModel)
	default:
		return nil, nil, fmt.Errorf("unsupported cloud provider %q", cfg.Cloud)
	}

	if cfg.Cloud == "vision" {
		switch {
		case cfg.GeminiAPIKey != "":
			llm = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
		case cfg.OpenAIAPIKey != "":
			llm = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		case cfg.OllamaHost != "":
			llm = ollama.New(cfg.OllamaHost, cfg.OllamaModel)
		}
	}
	return cloud, llm, nil
}

// applyTuning copies the configured knobs onto the orchestrator, keeping the
// defaults for anything unset.
func applyTuning(o *Orchestrator, cfg config.PipelineConfig) {
	if cfg.LabelFraction > 0 {
		o.preprocessor.LabelFraction = cfg.LabelFraction
	}
	if cfg.MaxLabelHeight > 0 {
		o.preprocessor.MaxLabelHeight = cfg.MaxLabelHeight
	}
	if cfg.WorkingWidth > 0 {
		o.preprocessor.WorkingWidth = cfg.WorkingWidth
	}
	if cfg.StitchMaxWidth > 0 {
		o.stitcher.MaxWidth = cfg.StitchMaxWidth
	}
	if cfg.StitchMaxHeight > 0 {
		o.stitcher.MaxHeight = cfg.StitchMaxHeight
	}
	if cfg.StitchSpacing > 0 {
		o.stitcher.Spacing = cfg.StitchSpacing
	}
	if cfg.TargetAspect > 0 {
		o.stitcher.TargetAspect = cfg.TargetAspect
	}
	if cfg.MeanSizeLimit > 0 {
		o.stitcher.MeanSizeLimit = cfg.MeanSizeLimit
	}
	if cfg.MaxImageBytes > 0 {
		o.maxImageBytes = cfg.MaxImageBytes
	}
}
