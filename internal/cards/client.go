// Package cards talks to the external card-matching service and hosts the
// offline text-quality heuristics.
package cards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cardfolio/cardscan/internal/models"
)

// ErrNotFound is the matcher's explicit no-match signal. Callers surface it
// as a null detection, not a failure.
var ErrNotFound = errors.New("no card matched the recognized text")

// Client is an HTTP client for the card-matching service.
type Client struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewClient creates a matcher client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type matchRequest struct {
	Text     string          `json:"text"`
	CardType models.CardType `json:"card_type"`
}

// Match looks up recognized text against the card database. A 404 maps to
// ErrNotFound; any other failure comes back as a DetectionError.
func (c *Client) Match(ctx context.Context, text string, hint models.CardType) (*models.CardDetectionResult, error) {
	payload, err := json.Marshal(matchRequest{Text: text, CardType: hint})
	if err != nil {
		return nil, &models.DetectionError{Err: fmt.Errorf("failed to marshal match request: %w", err)}
	}

	url := fmt.Sprintf("%s/api/cards/match", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &models.DetectionError{Err: fmt.Errorf("failed to create match request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.DetectionError{Err: fmt.Errorf("match request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &models.DetectionError{
			Err: fmt.Errorf("matcher returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var detection models.CardDetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&detection); err != nil {
		return nil, &models.DetectionError{Err: fmt.Errorf("failed to decode match response: %w", err)}
	}
	detection.Confidence = models.ClampConfidence(detection.Confidence)
	return &detection, nil
}
