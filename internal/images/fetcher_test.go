package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// servedPNG is a real PNG with enough pixel entropy to clear the
// placeholder-size floor.
func servedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8((x*7 + y*13 + x*y) % 251)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v ^ 0x5a, B: 255 - v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	if buf.Len() < 1000 {
		t.Fatalf("fixture too small: %d bytes", buf.Len())
	}
	return buf.Bytes()
}

func TestFetchSniffsMediaType(t *testing.T) {
	payload := servedPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Wrong header on purpose; the fetcher must sniff from the payload.
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write(payload); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer srv.Close()

	f := NewFetcher()
	data, mediaType, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("got %d bytes, want %d", len(data), len(payload))
	}
	if mediaType != "image/png" {
		t.Errorf("media type = %q, want image/png", mediaType)
	}
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher()
	_, _, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected error for 404 response, got nil")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestFetchRejectsPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("tiny")); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer srv.Close()

	f := NewFetcher()
	_, _, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected error for placeholder response, got nil")
	}
	if !strings.Contains(err.Error(), "too small") {
		t.Errorf("error = %v, want size rejection", err)
	}
}

func TestFetchEnforcesByteLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write(make([]byte, 5000)); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer srv.Close()

	f := NewFetcher()
	f.MaxBytes = 4096
	_, _, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("error = %v, want byte limit rejection", err)
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher()
	_, _, err := f.Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("Expected error for cancelled context, got nil")
	}
}
