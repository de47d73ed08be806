package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Fetcher retrieves card images referenced by URL in scan requests.
type Fetcher struct {
	HTTPClient *http.Client
	// MaxBytes bounds a single download. Anything larger would be rejected
	// by validation anyway.
	MaxBytes int64
}

// NewFetcher creates a fetcher with a 30 second timeout and a 10 MB cap.
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		MaxBytes: 10 << 20,
	}
}

// Fetch downloads one image and sniffs its media type from the payload.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, "", fmt.Errorf("image exceeds %d byte limit", f.MaxBytes)
	}

	// Tiny responses are error pages or placeholders, not card photos.
	if len(data) < 1000 {
		return nil, "", fmt.Errorf("image too small (likely placeholder), size: %d bytes", len(data))
	}

	mediaType := http.DetectContentType(data)
	slog.Debug("Fetched card image", "url", url, "bytes", len(data), "media_type", mediaType)
	return data, mediaType, nil
}
