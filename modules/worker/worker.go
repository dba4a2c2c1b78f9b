package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	redisClient "promptcanvas-server/modules/common/redis"
	"promptcanvas-server/modules/generation"
)

// VideoJob - Queue에 저장되는 비디오 변환 Job
type VideoJob struct {
	JobID        string `json:"job_id"`
	GenerationID string `json:"generation_id"`
	ImageURL     string `json:"image_url"`
	ImageIndex   int    `json:"image_index"`
	Mode         string `json:"mode"`
}

// Worker - Redis Queue에서 비디오 Job을 꺼내 처리하는 Worker
type Worker struct {
	rdb     *redis.Client
	manager *generation.Manager
}

// NewWorker - Worker 생성
func NewWorker(rdb *redis.Client, manager *generation.Manager) *Worker {
	return &Worker{
		rdb:     rdb,
		manager: manager,
	}
}

// Run - Queue 감시 시작. ctx가 취소될 때까지 블로킹
func (w *Worker) Run(ctx context.Context) {
	log.Println("🔄 Video Queue Worker starting...")
	log.Printf("👀 Watching queue: %s", redisClient.VideoJobQueue)

	for {
		if ctx.Err() != nil {
			log.Println("🛑 Worker stopped")
			return
		}

		// Job 받기 (BRPOP - Blocking Right Pop)
		result, err := w.rdb.BRPop(ctx, 5*time.Second, redisClient.VideoJobQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0]은 queue 이름, result[1]이 job payload
		w.processJob(ctx, result[1])
	}
}

// processJob - Job 처리. 비디오 변환이 끝날 때까지 기다린 뒤 다음 Job으로 넘어간다
func (w *Worker) processJob(ctx context.Context, payload string) {
	var job VideoJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Printf("❌ Failed to decode job payload: %v", err)
		return
	}

	log.Printf("🎯 Received new job: %s (generation: %s, mode: %s)", job.JobID, job.GenerationID, job.Mode)

	// 처리 직전 취소 플래그 확인
	if redisClient.IsJobCancelled(w.rdb, job.JobID) {
		log.Printf("🛑 Job %s cancelled before processing, skipping", job.JobID)
		return
	}

	done, err := w.manager.GenerateVideo(ctx, job.GenerationID, job.ImageURL, job.ImageIndex, job.Mode)
	if err != nil {
		if errors.Is(err, generation.ErrGenerationNotFound) {
			log.Printf("⚠️ Job %s skipped: generation %s not found", job.JobID, job.GenerationID)
			return
		}
		if errors.Is(err, generation.ErrVideoInProgress) {
			log.Printf("⚠️ Job %s skipped: generation %s already converting", job.JobID, job.GenerationID)
			return
		}
		log.Printf("❌ Job %s failed to start: %v", job.JobID, err)
		return
	}

	<-done
	log.Printf("✅ Job %s processing completed", job.JobID)
}
