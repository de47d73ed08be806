// Package vision calls the Google Cloud Vision images:annotate REST endpoint
// for text detection. It is the primary recognition engine and the only one
// with a provider-native batch surface.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/providers"
)

const defaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

// maxImagesPerRequest is the Vision API limit for one annotate call. Larger
// batches are split into consecutive requests, preserving input order.
const maxImagesPerRequest = 16

// Engine is a Cloud Vision text detection client.
type Engine struct {
	APIKey     string
	Endpoint   string
	httpClient *http.Client
}

// NewEngine creates a Vision engine. An empty endpoint selects the public
// Google endpoint.
func NewEngine(apiKey, endpoint string) *Engine {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Engine{
		APIKey:   apiKey,
		Endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements providers.Engine.
func (e *Engine) Name() string { return "vision" }

// Recognize implements providers.Engine.
func (e *Engine) Recognize(ctx context.Context, in providers.Input) (providers.Result, error) {
	results, err := e.annotate(ctx, []providers.Input{in})
	if err != nil {
		return providers.Result{}, err
	}
	return results[0], nil
}

// RecognizeBatch implements providers.BatchEngine. Results come back in input
// order, one per image.
func (e *Engine) RecognizeBatch(ctx context.Context, ins []providers.Input) ([]providers.Result, error) {
	out := make([]providers.Result, 0, len(ins))
	for start := 0; start < len(ins); start += maxImagesPerRequest {
		end := start + maxImagesPerRequest
		if end > len(ins) {
			end = len(ins)
		}
		results, err := e.annotate(ctx, ins[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateResponse struct {
	Responses []imageResponse `json:"responses"`
}

type imageResponse struct {
	FullTextAnnotation *fullTextAnnotation `json:"fullTextAnnotation"`
	TextAnnotations    []textAnnotation    `json:"textAnnotations"`
	Error              *apiStatus          `json:"error"`
}

type fullTextAnnotation struct {
	Text  string     `json:"text"`
	Pages []textPage `json:"pages"`
}

type textPage struct {
	Confidence float64 `json:"confidence"`
}

type textAnnotation struct {
	Description string `json:"description"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Engine) annotate(ctx context.Context, ins []providers.Input) ([]providers.Result, error) {
	reqBody := annotateRequest{Requests: make([]imageRequest, 0, len(ins))}
	for _, in := range ins {
		ir := imageRequest{
			Image:    imageContent{Content: base64.StdEncoding.EncodeToString(in.Image)},
			Features: []feature{{Type: "TEXT_DETECTION", MaxResults: 1}},
		}
		if len(in.LanguageHints) > 0 {
			ir.ImageContext = &imageContext{LanguageHints: in.LanguageHints}
		}
		reqBody.Requests = append(reqBody.Requests, ir)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotate request: %w", err)
	}

	url := e.Endpoint
	if e.APIKey != "" {
		url = fmt.Sprintf("%s?key=%s", e.Endpoint, e.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &models.ProviderError{Provider: e.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &models.ProviderError{
			Provider: e.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("annotate returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var annotated annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&annotated); err != nil {
		return nil, &models.ProviderError{Provider: e.Name(), Err: fmt.Errorf("failed to decode annotate response: %w", err)}
	}
	if len(annotated.Responses) != len(ins) {
		return nil, &models.ProviderError{
			Provider: e.Name(),
			Err:      fmt.Errorf("annotate returned %d responses for %d images", len(annotated.Responses), len(ins)),
		}
	}

	results := make([]providers.Result, len(ins))
	for i, r := range annotated.Responses {
		if r.Error != nil {
			return nil, &models.ProviderError{
				Provider: e.Name(),
				Err:      fmt.Errorf("annotate rejected image %d: %s (code %d)", i, r.Error.Message, r.Error.Code),
			}
		}
		results[i] = toResult(r)
	}
	return results, nil
}

// toResult prefers the structured full-text annotation and falls back to the
// first plain annotation, which Vision also fills with the whole extraction.
func toResult(r imageResponse) providers.Result {
	var res providers.Result
	if r.FullTextAnnotation != nil && r.FullTextAnnotation.Text != "" {
		res.Text = r.FullTextAnnotation.Text
		if n := len(r.FullTextAnnotation.Pages); n > 0 {
			var sum float64
			for _, p := range r.FullTextAnnotation.Pages {
				sum += p.Confidence
			}
			res.Confidence = sum / float64(n)
		}
		return res
	}
	if len(r.TextAnnotations) > 0 {
		res.Text = r.TextAnnotations[0].Description
	}
	return res
}
