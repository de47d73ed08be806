// Package config loads pipeline settings from an optional YAML file with
// environment variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Serve    ServeConfig    `yaml:"serve"`
}

// ProviderConfig selects and configures the recognition engines.
type ProviderConfig struct {
	// Cloud selects the primary engine: vision, gemini, openai, or ollama.
	Cloud              string   `yaml:"cloud"`
	VisionAPIKey       string   `yaml:"vision_api_key"`
	VisionEndpoint     string   `yaml:"vision_endpoint"`
	GeminiAPIKey       string   `yaml:"gemini_api_key"`
	GeminiModel        string   `yaml:"gemini_model"`
	OpenAIAPIKey       string   `yaml:"openai_api_key"`
	OpenAIModel        string   `yaml:"openai_model"`
	OllamaHost         string   `yaml:"ollama_host"`
	OllamaModel        string   `yaml:"ollama_model"`
	TesseractLanguages []string `yaml:"tesseract_languages"`
	CallTimeoutSeconds int      `yaml:"call_timeout_seconds"`
	BatchCeiling       int      `yaml:"batch_ceiling"`
}

// CallTimeout returns the per-call provider timeout.
func (p ProviderConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

// MatcherConfig points at the card-matching service.
type MatcherConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// PipelineConfig carries the tuning knobs for preprocessing, stitching,
// reconciliation, and dispatch.
type PipelineConfig struct {
	LabelFraction   float64 `yaml:"label_fraction"`
	MaxLabelHeight  int     `yaml:"max_label_height"`
	WorkingWidth    int     `yaml:"working_width"`
	StitchMaxWidth  int     `yaml:"stitch_max_width"`
	StitchMaxHeight int     `yaml:"stitch_max_height"`
	StitchSpacing   int     `yaml:"stitch_spacing"`
	MeanSizeLimit   int64   `yaml:"stitch_mean_size_limit"`
	TargetAspect    float64 `yaml:"stitch_target_aspect"`
	MinLineLength   int     `yaml:"min_line_length"`
	Fanout          int     `yaml:"fanout"`
	MaxImageBytes   int64   `yaml:"max_image_bytes"`
}

// CacheConfig bounds the detection cache.
type CacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Port string `yaml:"port"`
}

// Default returns the built-in configuration, with secrets pulled from the
// environment.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Cloud:              "vision",
			VisionAPIKey:       os.Getenv("VISION_API_KEY"),
			GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
			OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
			OllamaHost:         os.Getenv("OLLAMA_URL"),
			TesseractLanguages: []string{"eng"},
			CallTimeoutSeconds: 25,
			BatchCeiling:       50,
		},
		Matcher: MatcherConfig{
			BaseURL: envOr("CARD_MATCHER_URL", "http://localhost:8091"),
			APIKey:  os.Getenv("CARD_MATCHER_API_KEY"),
		},
		Pipeline: PipelineConfig{
			LabelFraction:   0.14,
			MaxLabelHeight:  220,
			WorkingWidth:    1280,
			StitchMaxWidth:  2048,
			StitchMaxHeight: 2048,
			StitchSpacing:   10,
			MeanSizeLimit:   2 << 20,
			TargetAspect:    1.5,
			MinLineLength:   4,
			Fanout:          4,
			MaxImageBytes:   10 << 20,
		},
		Cache: CacheConfig{
			Capacity:   100,
			TTLSeconds: 300,
		},
		Serve: ServeConfig{
			Port: envOr("PORT", "8080"),
		},
	}
}

// Load reads the YAML config at path, expanding ${VAR} references from the
// environment. A missing path or file yields the defaults. File values
// override defaults field by field.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CARDSCAN_CONFIG")
	}
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider.Cloud {
	case "vision", "gemini", "openai", "ollama":
	default:
		return fmt.Errorf("unsupported cloud provider %q (want vision, gemini, openai, or ollama)", c.Provider.Cloud)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
