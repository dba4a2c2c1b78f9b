package worker

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	redisClient "promptcanvas-server/modules/common/redis"
)

// EnqueueHandler - Redis Queue Enqueue Handler
type EnqueueHandler struct {
	rdb *redis.Client
}

// EnqueueRequest - Enqueue 요청
type EnqueueRequest struct {
	GenerationID string `json:"generation_id"`
	ImageURL     string `json:"image_url"`
	ImageIndex   int    `json:"image_index"`
	Mode         string `json:"mode"`
}

// EnqueueResponse - Enqueue 응답
type EnqueueResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Queue         string `json:"queue,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
}

// NewEnqueueHandler - EnqueueHandler 생성
func NewEnqueueHandler(rdb *redis.Client) *EnqueueHandler {
	if rdb == nil {
		log.Println("⚠️ [Enqueue] No Redis connection, enqueue disabled")
		return nil
	}

	log.Println("✅ [Enqueue] Handler initialized with Redis connection")
	return &EnqueueHandler{
		rdb: rdb,
	}
}

// RegisterRoutes - 라우트 등록
func (h *EnqueueHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/enqueue", h.HandleEnqueue).Methods("POST", "OPTIONS")
	log.Println("✅ Enqueue routes registered: /api/enqueue")
}

// HandleEnqueue - POST /api/enqueue
func (h *EnqueueHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// OPTIONS 요청 처리
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Request 파싱
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Enqueue] Invalid request: %v", err)
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	if req.GenerationID == "" || req.ImageURL == "" {
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success: false,
			Error:   "generation_id and image_url are required",
		})
		return
	}

	if req.Mode == "" {
		req.Mode = "draft"
	}

	job := VideoJob{
		JobID:        uuid.New().String(),
		GenerationID: req.GenerationID,
		ImageURL:     req.ImageURL,
		ImageIndex:   req.ImageIndex,
		Mode:         req.Mode,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success: false,
			Error:   "Failed to encode job",
		})
		return
	}

	log.Printf("📥 [Enqueue] Received job: %s (generation: %s)", job.JobID, job.GenerationID)

	// Redis LPUSH
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.rdb.LPush(ctx, redisClient.VideoJobQueue, payload).Result(); err != nil {
		log.Printf("❌ [Enqueue] Redis LPUSH failed: %v", err)
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	// Queue 길이 조회
	queueLen, _ := h.rdb.LLen(ctx, redisClient.VideoJobQueue).Result()

	log.Printf("✅ [Enqueue] Job %s enqueued successfully (position: %d)", job.JobID, queueLen)

	json.NewEncoder(w).Encode(EnqueueResponse{
		Success:       true,
		Message:       "Job enqueued successfully",
		JobID:         job.JobID,
		Queue:         redisClient.VideoJobQueue,
		QueuePosition: queueLen,
	})
}
