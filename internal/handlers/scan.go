package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cardfolio/cardscan/internal/models"
)

// maxUploadBytes caps how much of one uploaded file is read. Anything larger
// is handed to the pipeline oversized and rejected there.
const maxUploadBytes = 10 << 20

type scanRequest struct {
	ImageURLs []string              `json:"image_urls"`
	CardType  models.CardType       `json:"card_type"`
	Options   models.ProcessOptions `json:"options"`
}

type scanResponse struct {
	Results []models.RecognitionResult `json:"results"`
	Count   int                        `json:"count"`
}

// HandleScan accepts either multipart file uploads or a JSON body with image
// URLs and runs them through the recognition pipeline.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLScan(w, r)
		return
	}
	h.handleUploadScan(w, r)
}

func (h *Handler) handleURLScan(w http.ResponseWriter, r *http.Request) {
	var request scanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(request.ImageURLs) == 0 {
		h.writeError(w, "image_urls is required", http.StatusBadRequest)
		return
	}

	tasks := make([]models.RecognitionTask, 0, len(request.ImageURLs))
	for _, url := range request.ImageURLs {
		data, mediaType, err := h.fetcher.Fetch(r.Context(), url)
		if err != nil {
			h.writeError(w, "Failed to fetch image: "+err.Error(), http.StatusBadRequest)
			return
		}
		tasks = append(tasks, models.NewRecognitionTask(data, mediaType, request.CardType, request.Options))
	}

	h.respond(w, r, tasks)
}

func (h *Handler) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to parse multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		h.writeError(w, "No files in request", http.StatusBadRequest)
		return
	}

	cardType := models.CardType(r.FormValue("card_type"))
	opts := optionsFromForm(r)

	tasks := make([]models.RecognitionTask, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			h.writeError(w, "Failed to open upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		file.Close()
		if err != nil {
			h.writeError(w, "Failed to read upload: "+err.Error(), http.StatusInternalServerError)
			return
		}
		mediaType := header.Header.Get("Content-Type")
		if mediaType == "" || mediaType == "application/octet-stream" {
			mediaType = http.DetectContentType(data)
		}
		tasks = append(tasks, models.NewRecognitionTask(data, mediaType, cardType, opts))
	}

	h.respond(w, r, tasks)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, tasks []models.RecognitionTask) {
	var (
		results []models.RecognitionResult
		err     error
	)
	if len(tasks) == 1 {
		var single *models.RecognitionResult
		single, err = h.pipeline.ProcessSingle(r.Context(), tasks[0])
		if err == nil {
			results = []models.RecognitionResult{*single}
		}
	} else {
		results, err = h.pipeline.ProcessBatch(r.Context(), tasks)
	}
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, "Scan failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, scanResponse{Results: results, Count: len(results)})
}

func optionsFromForm(r *http.Request) models.ProcessOptions {
	opts := models.ProcessOptions{
		EnableStitching: formBool(r, "enable_stitching"),
		MultiCard:       formBool(r, "multi_card"),
		Concurrent:      formBool(r, "concurrent"),
		AdvancedMode:    formBool(r, "advanced_mode"),
	}
	if hints := r.FormValue("language_hints"); hints != "" {
		opts.LanguageHints = strings.Split(hints, ",")
	}
	return opts
}

func formBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.FormValue(key))
	return v
}
