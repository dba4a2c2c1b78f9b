package generation

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"promptcanvas-server/modules/common/debuglog"
	generatevideo "promptcanvas-server/modules/generate-video"
)

// Handler - generation REST API
type Handler struct {
	manager  *Manager
	recorder *debuglog.Recorder
}

// GenerateImagesRequest - POST /api/generations body
type GenerateImagesRequest struct {
	Prompt        string `json:"prompt"`
	ModelsEnabled bool   `json:"modelsEnabled"`
	Model         string `json:"model,omitempty"`
}

// GenerateVideoRequest - POST /api/generations/{id}/videos body
type GenerateVideoRequest struct {
	ImageURL   string `json:"imageUrl"`
	ImageIndex int    `json:"imageIndex"`
	Mode       string `json:"mode"`
}

// errorResponse - 에러 응답 body
type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler - Handler 생성
func NewHandler(manager *Manager, recorder *debuglog.Recorder) *Handler {
	return &Handler{manager: manager, recorder: recorder}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generations", h.HandleGenerateImages).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/generations", h.HandleList).Methods("GET")
	r.HandleFunc("/api/generations", h.HandleClear).Methods("DELETE")
	r.HandleFunc("/api/generations/{id}", h.HandleRemove).Methods("DELETE")
	r.HandleFunc("/api/generations/{id}/videos", h.HandleGenerateVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/debug", h.HandleDebug).Methods("GET")
	log.Println("✅ Generation routes registered: /api/generations")
}

// HandleGenerateImages - POST /api/generations
func (h *Handler) HandleGenerateImages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req GenerateImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "prompt is required"})
		return
	}

	gen := h.manager.GenerateImages(r.Context(), req.Prompt, req.ModelsEnabled, req.Model)
	if gen == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "image generation failed unexpectedly"})
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(gen)
}

// HandleList - GET /api/generations
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"generations": h.manager.Generations(),
		"loading":     h.manager.Loading(),
	})
}

// HandleGenerateVideo - POST /api/generations/{id}/videos
//
// Admission is checked synchronously; the conversion itself runs in the
// background and lands in the generation's videos list, observable via
// GET /api/generations or the WebSocket stream.
func (h *Handler) HandleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	generationID := mux.Vars(r)["id"]

	var req GenerateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "Invalid request body"})
		return
	}

	if req.ImageURL == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "imageUrl is required"})
		return
	}
	if req.Mode != generatevideo.ModeDraft && req.Mode != generatevideo.ModeAdvanced {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "mode must be draft or advanced"})
		return
	}

	// request context dies with this handler; the conversion must not
	_, err := h.manager.GenerateVideo(context.Background(), generationID, req.ImageURL, req.ImageIndex, req.Mode)
	switch {
	case errors.Is(err, ErrGenerationNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
		return
	case errors.Is(err, ErrVideoInProgress):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "processing",
		"mode":   req.Mode,
	})
}

// HandleClear - DELETE /api/generations
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.manager.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove - DELETE /api/generations/{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	generationID := mux.Vars(r)["id"]

	if !h.manager.Remove(generationID) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Error: "generation not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDebug - GET /debug (관찰용, 비즈니스 로직과 무관)
func (h *Handler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.recorder.Current())
}
