package cards

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardfolio/cardscan/internal/models"
)

func TestMatchDecodesDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cards/match" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekret" {
			t.Errorf("auth header = %q", got)
		}
		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.CardType != models.CardTypePSALabel {
			t.Errorf("card_type = %q", req.CardType)
		}
		json.NewEncoder(w).Encode(models.CardDetectionResult{
			Label:      "pokemon-psa",
			Fields:     models.CardFields{Name: "Charizard", Year: "1999", Grade: "GEM MT 10"},
			Confidence: 0.92,
			Suggestions: []models.CardSuggestion{
				{ID: "base1-4", Score: 0.97, Name: "Charizard", SetName: "Base Set"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sekret")
	got, err := client.Match(context.Background(), "1999 CHARIZARD GEM MT 10", models.CardTypePSALabel)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got.Fields.Name != "Charizard" {
		t.Errorf("name = %q", got.Fields.Name)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].ID != "base1-4" {
		t.Errorf("suggestions = %+v", got.Suggestions)
	}
}

func TestMatchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no match", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Match(context.Background(), "garbage", models.CardTypeGeneric)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMatchServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Match(context.Background(), "text", models.CardTypeGeneric)
	var de *models.DetectionError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DetectionError", err)
	}
}

func TestMatchClampsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.CardDetectionResult{Label: "x", Confidence: 1.7})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	got, err := client.Match(context.Background(), "text", models.CardTypeGeneric)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped 1.0", got.Confidence)
	}
}
