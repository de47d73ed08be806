package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/providers"
)

const defaultModel = "llava"

const ocrPrompt = "Transcribe all text visible in this image exactly as written, " +
	"one line per printed line. Output only the transcribed text with no commentary."

// Ollama recognizes text using a locally hosted multimodal model. It needs no
// API key, which makes it the engine of choice for fully offline setups.
type Ollama struct {
	Host        string
	Model       string
	Temperature float32
}

// New returns an Ollama engine. An empty host falls back to the OLLAMA_URL
// environment variable and then to the daemon's default address; an empty
// model selects the default.
func New(host, model string) *Ollama {
	if host == "" {
		host = os.Getenv("OLLAMA_URL")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = defaultModel
	}
	return &Ollama{Host: host, Model: model}
}

// Name implements providers.Engine.
func (o *Ollama) Name() string { return "ollama" }

// Recognize implements providers.Engine.
func (o *Ollama) Recognize(ctx context.Context, in providers.Input) (providers.Result, error) {
	text, err := o.extractText(ctx, in)
	if err != nil {
		return providers.Result{}, err
	}
	return providers.Result{Text: strings.TrimSpace(text)}, nil
}

func (o *Ollama) extractText(ctx context.Context, in providers.Input) (string, error) {
	url := strings.TrimRight(o.Host, "/") + "/api/generate"

	prompt := ocrPrompt
	if len(in.LanguageHints) > 0 {
		prompt = fmt.Sprintf("%s The text may be in: %s.", prompt, strings.Join(in.LanguageHints, ", "))
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  o.Model,
		"prompt": prompt,
		"images": []string{base64.StdEncoding.EncodeToString(in.Image)},
		"stream": false,
		"options": map[string]interface{}{
			"temperature": o.Temperature,
		},
	})
	if err != nil {
		return "", &models.ProviderError{Provider: o.Name(), Err: fmt.Errorf("failed to marshal request body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", &models.ProviderError{Provider: o.Name(), Err: fmt.Errorf("failed to create new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", &models.ProviderError{Provider: o.Name(), Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &models.ProviderError{
			Provider: o.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body)),
		}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", &models.ProviderError{Provider: o.Name(), Err: fmt.Errorf("failed to decode response body: %w", err)}
	}

	return response.Response, nil
}
