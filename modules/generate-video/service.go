package generatevideo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"promptcanvas-server/modules/common/config"
	"promptcanvas-server/modules/common/debuglog"
	"promptcanvas-server/modules/common/extract"
)

// Service - 비디오 생성 webhook 호출 서비스 (draft/advanced)
//
// draft는 단일 왕복에 3분 하드 타임아웃, advanced는 initiate → poll →
// finalize 3단계 프로토콜에 10분 폴링 상한을 건다. now/sleep은 테스트에서
// 가짜 시계를 주입할 수 있도록 분리되어 있다.
type Service struct {
	cfg      *config.Config
	client   *http.Client
	recorder *debuglog.Recorder

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService - Service 생성
func NewService(cfg *config.Config, recorder *debuglog.Recorder) *Service {
	return &Service{
		cfg:      cfg,
		client:   &http.Client{}, // per-call context deadlines govern cancellation
		recorder: recorder,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Generate dispatches to the mode-appropriate pipeline. All failures come
// back inside Result.Error; this layer never returns a Go error.
func (s *Service) Generate(ctx context.Context, imageURL, mode, enhancedPrompt string) *Result {
	if mode == ModeDraft {
		return s.GenerateDraft(ctx, imageURL, enhancedPrompt)
	}
	return s.GenerateAdvanced(ctx, imageURL, enhancedPrompt)
}

// GenerateDraft - draft 모드: 단일 왕복 + 3분 하드 abort
func (s *Service) GenerateDraft(ctx context.Context, imageURL, enhancedPrompt string) *Result {
	webhookURL := s.cfg.VideoWebhookURL(ModeDraft)
	log.Printf("🎬 [Draft] Sending video request for image: %s", imageURL)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DraftVideoTimeout)
	defer cancel()

	responseText, status, err := s.post(ctx, webhookURL, draftPayload{ImageURL: imageURL, Mode: ModeDraft})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Printf("⏰ [Draft] Request timed out after %v", s.cfg.DraftVideoTimeout)
			return &Result{Error: "Video generation is taking longer than expected. Please check back later."}
		}
		log.Printf("❌ [Draft] Request failed: %v", err)
		return &Result{Error: "An error occurred while trying to generate the video."}
	}
	if status < 200 || status > 299 {
		log.Printf("❌ [Draft] Webhook returned status %d", status)
		return &Result{Error: fmt.Sprintf("Server returned error: %d", status)}
	}

	s.recorder.AddWebhookResponse("draft_video", responseText)

	videoURL, videoPrompt := extractVideoResponse(responseText)
	if videoURL == "" {
		log.Printf("⚠️  [Draft] No video URL found in response")
		return &Result{Error: "No video URL received from server"}
	}

	if videoPrompt == "" {
		videoPrompt = enhancedPrompt
	}

	log.Printf("✅ [Draft] Video ready: %s", videoURL)
	return &Result{VideoURL: videoURL, EnhancedPrompt: videoPrompt}
}

// GenerateAdvanced - advanced 모드: initiate → poll(30초 간격) → finalize
func (s *Service) GenerateAdvanced(ctx context.Context, imageURL, enhancedPrompt string) *Result {
	webhookURL := s.cfg.VideoWebhookURL(ModeAdvanced)
	log.Printf("🎬 [Advanced] Initiating video generation for image: %s", imageURL)

	responseText, status, err := s.post(ctx, webhookURL, initiatePayload{ImageURL: imageURL})
	if err != nil {
		log.Printf("❌ [Advanced] Initiate request failed: %v", err)
		return &Result{Error: "Network error during video generation"}
	}
	if status < 200 || status > 299 {
		log.Printf("❌ [Advanced] Initiate returned status %d", status)
		return &Result{Error: fmt.Sprintf("Server error: %d", status)}
	}

	s.recorder.AddWebhookResponse("advanced_init", responseText)

	// The whole initiate payload gets echoed back on every poll, not just the id
	var pollingData map[string]interface{}
	if err := json.Unmarshal([]byte(responseText), &pollingData); err != nil {
		log.Printf("❌ [Advanced] Initiate response is not JSON: %v", err)
		return &Result{Error: "Failed to parse server response"}
	}

	requestID, _ := pollingData["request_id"].(string)
	if requestID == "" {
		log.Printf("❌ [Advanced] No request_id in initiate response")
		return &Result{Error: "Invalid response from server: missing request_id"}
	}

	// content is the prompt the upstream actually used, separate from the
	// image's own enhanced prompt
	advancedPrompt, _ := pollingData["content"].(string)

	log.Printf("⏳ [Advanced] Polling for request_id: %s", requestID)

	videoURL, pollErr := s.pollUntilComplete(ctx, pollingData)
	if pollErr != "" {
		return &Result{EnhancedPrompt: enhancedPrompt, AdvancedPrompt: advancedPrompt, Error: pollErr}
	}

	log.Printf("✅ [Advanced] Video ready: %s", videoURL)
	return &Result{VideoURL: videoURL, EnhancedPrompt: enhancedPrompt, AdvancedPrompt: advancedPrompt}
}

// pollUntilComplete drives the status-check loop. The wall-clock ceiling is
// checked before every attempt; a breach exits without another network call.
// Transient poll failures (non-2xx, non-JSON, transport) are swallowed and
// the loop keeps going.
func (s *Service) pollUntilComplete(ctx context.Context, pollingData map[string]interface{}) (string, string) {
	start := s.now()

	for {
		if s.now().Sub(start) > s.cfg.AdvancedMaxPolling {
			log.Printf("⏰ [Advanced] Exceeded maximum polling time of %v", s.cfg.AdvancedMaxPolling)
			return "", fmt.Sprintf("Video generation timed out after %d minutes", int(s.cfg.AdvancedMaxPolling.Minutes()))
		}

		outcome := s.pollOnce(ctx, pollingData)
		if outcome.complete {
			return outcome.videoURL, outcome.errMsg
		}

		log.Printf("📊 [Advanced] Not complete yet, next check in %v", s.cfg.AdvancedPollInterval)
		if err := s.sleep(ctx, s.cfg.AdvancedPollInterval); err != nil {
			return "", "Video generation was cancelled"
		}
	}
}

// pollOutcome - 한 번의 status check 결과
type pollOutcome struct {
	complete bool
	videoURL string
	errMsg   string
}

// pollOnce - status check 1회. COMPLETED를 보면 finalize까지 수행한다.
func (s *Service) pollOnce(ctx context.Context, pollingData map[string]interface{}) pollOutcome {
	statusText, status, err := s.post(ctx, s.cfg.VideoWebhookStatus, pollingData)
	if err != nil {
		log.Printf("⚠️  [Advanced] Status check failed: %v", err)
		return pollOutcome{}
	}
	if status < 200 || status > 299 {
		log.Printf("⚠️  [Advanced] Status check returned %d", status)
		return pollOutcome{}
	}

	var statusData map[string]interface{}
	if err := json.Unmarshal([]byte(statusText), &statusData); err != nil {
		log.Printf("⚠️  [Advanced] Status response is not JSON, will continue polling")
		return pollOutcome{}
	}

	if statusValue, _ := statusData["status"].(string); statusValue != StatusCompleted {
		return pollOutcome{}
	}

	log.Printf("🏁 [Advanced] Generation completed, fetching final result")
	return s.finalize(ctx, pollingData)
}

// finalize - COMPLETED 이후 final webhook에서 비디오 URL 추출
func (s *Service) finalize(ctx context.Context, pollingData map[string]interface{}) pollOutcome {
	finalText, status, err := s.post(ctx, s.cfg.VideoWebhookFinal, pollingData)
	if err != nil {
		log.Printf("❌ [Advanced] Final webhook request failed: %v", err)
		return pollOutcome{complete: true, errMsg: "Failed to process final webhook response"}
	}
	if status < 200 || status > 299 {
		log.Printf("❌ [Advanced] Final webhook returned status %d", status)
		return pollOutcome{complete: true, errMsg: fmt.Sprintf("Final webhook returned an error: %d", status)}
	}

	s.recorder.AddWebhookResponse("final_webhook", finalText)

	videoURL, _ := extractVideoResponse(finalText)
	if videoURL == "" {
		log.Printf("⚠️  [Advanced] No video URL found in final webhook response")
		return pollOutcome{complete: true, errMsg: "No video URL received from final webhook"}
	}

	return pollOutcome{complete: true, videoURL: videoURL}
}

// post - JSON body POST 후 응답 텍스트와 상태 코드 반환
func (s *Service) post(ctx context.Context, url string, payload interface{}) (string, int, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}

	return string(body), resp.StatusCode, nil
}

// extractVideoResponse runs the JSON / raw-text / regex fallback chain over a
// webhook body and returns the video URL plus any enhanced prompt found.
func extractVideoResponse(responseText string) (string, string) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
		return extract.VideoURL(parsed), extract.EnhancedPrompt(parsed)
	}

	trimmed := strings.TrimSpace(responseText)
	if strings.HasPrefix(trimmed, "http") {
		return trimmed, ""
	}

	if urls := extract.URLsFromText(responseText); len(urls) > 0 {
		return urls[0], ""
	}

	return "", ""
}

// sleepContext - context 취소를 존중하는 sleep
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
