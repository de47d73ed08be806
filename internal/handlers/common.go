package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cardfolio/cardscan/internal/images"
	"github.com/cardfolio/cardscan/internal/pipeline"
)

type Handler struct {
	pipeline *pipeline.Orchestrator
	fetcher  *images.Fetcher
}

func New(p *pipeline.Orchestrator) *Handler {
	return &Handler{
		pipeline: p,
		fetcher:  images.NewFetcher(),
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}
