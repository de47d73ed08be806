package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/providers"
)

const defaultModel = "gemini-2.0-flash"

// ocrPrompt keeps the model from paraphrasing; card labels must come back
// verbatim so downstream pattern matching works.
const ocrPrompt = "Transcribe all text visible in this image exactly as written, " +
	"one line per printed line. Output only the transcribed text with no commentary."

// Gemini recognizes text using a Gemini vision model. It is an alternative
// primary engine for cards whose labels defeat plain text detection.
type Gemini struct {
	Model       string
	Temperature float32
	apiKey      string
}

// New returns a Gemini engine. An empty model selects the default.
func New(apiKey, model string) *Gemini {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if model == "" {
		model = defaultModel
	}
	return &Gemini{Model: model, apiKey: apiKey}
}

// Name implements providers.Engine.
func (g *Gemini) Name() string { return "gemini" }

// Recognize implements providers.Engine.
func (g *Gemini) Recognize(ctx context.Context, in providers.Input) (providers.Result, error) {
	text, err := g.extractText(ctx, in)
	if err != nil {
		return providers.Result{}, &models.ProviderError{Provider: g.Name(), Err: err}
	}
	return providers.Result{Text: strings.TrimSpace(text)}, nil
}

func (g *Gemini) extractText(ctx context.Context, in providers.Input) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	model.SetTemperature(g.Temperature)

	prompt := ocrPrompt
	if len(in.LanguageHints) > 0 {
		prompt = fmt.Sprintf("%s The text may be in: %s.", prompt, strings.Join(in.LanguageHints, ", "))
	}

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType(in.MediaType), Data: in.Image},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}

	return "", fmt.Errorf("unexpected response format from Gemini")
}

func mimeType(mediaType string) string {
	if mediaType == "" {
		return "image/jpeg"
	}
	return mediaType
}
