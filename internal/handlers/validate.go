package handlers

import (
	"encoding/json"
	"net/http"
)

// HandleValidateText grades recognized text offline, so clients can decide
// whether a retake is worth it before spending provider calls.
func (h *Handler) HandleValidateText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, h.pipeline.ValidateText(request.Text))
}
