package handlers

import "net/http"

func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.pipeline.CacheStats()
	h.writeJSON(w, map[string]any{
		"size":        stats.Size,
		"capacity":    stats.Capacity,
		"ttl_seconds": int(stats.TTL.Seconds()),
	})
}

func (h *Handler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.pipeline.ClearCache()
	h.writeJSON(w, map[string]any{"message": "Detection cache cleared"})
}
