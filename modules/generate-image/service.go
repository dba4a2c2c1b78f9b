package generateimage

import (
	"bytes"
	"context"
	"encoding/json"
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

// Service - 이미지 생성 webhook 호출 서비스
type Service struct {
	cfg      *config.Config
	client   *http.Client
	recorder *debuglog.Recorder
}

// NewService - Service 생성
func NewService(cfg *config.Config, recorder *debuglog.Recorder) *Service {
	return &Service{
		cfg:      cfg,
		client:   &http.Client{Timeout: 120 * time.Second},
		recorder: recorder,
	}
}

// Generate sends the prompt to the resolved webhook and normalizes whatever
// comes back. Always returns a Result; transport and HTTP failures land in
// Result.Error, never in a Go error. A successful round trip that yields zero
// URLs gets exactly one placeholder so downstream rendering always has a tile.
func (s *Service) Generate(ctx context.Context, prompt string, modelsEnabled bool, selectedModel string) *Result {
	webhookURL := s.cfg.ImageWebhookURL(modelsEnabled, selectedModel)

	log.Printf("🎨 [Image] Sending prompt to webhook: %s (models: %v, selected: %s)",
		webhookURL, modelsEnabled, selectedModel)

	reqBody, err := json.Marshal(webhookPayload{Prompt: prompt, Model: selectedModel})
	if err != nil {
		return s.failure(fmt.Sprintf("Error sending prompt: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(reqBody))
	if err != nil {
		return s.failure(fmt.Sprintf("Error sending prompt: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("❌ [Image] Request failed: %v", err)
		return s.failure("Error sending prompt: network error occurred")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("❌ [Image] Webhook returned status %d", resp.StatusCode)
		return s.failure(fmt.Sprintf("Error sending prompt: failed with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("❌ [Image] Failed to read response: %v", err)
		return s.failure("Error sending prompt: network error occurred")
	}

	responseText := string(body)
	s.recorder.AddWebhookResponse("image_generation", responseText)

	imageURLs := []string{}
	enhancedPrompt := ""
	var parsedData interface{}

	if err := json.Unmarshal(body, &parsedData); err == nil {
		imageURLs, enhancedPrompt = extract.TwoURLsAndPrompt(parsedData)
		log.Printf("✅ [Image] Extracted %d image URL(s) from JSON response", len(imageURLs))
	} else {
		log.Printf("⚠️  [Image] Response is not JSON, falling back to text scan")
		if strings.Contains(responseText, "http") {
			imageURLs = extract.URLsFromText(responseText)
			log.Printf("✅ [Image] Extracted %d image URL(s) from raw text", len(imageURLs))
		}
	}

	// Rendering contract: at least one tile, always
	if len(imageURLs) == 0 {
		log.Printf("⚠️  [Image] No images found in response, using placeholder")
		imageURLs = []string{PlaceholderURL}
	}

	s.recorder.SetLastResponse(responseText, parsedData, imageURLs, enhancedPrompt, "")

	return &Result{
		ImageURLs:      imageURLs,
		EnhancedPrompt: enhancedPrompt,
		RawResponse:    responseText,
		ParsedResponse: parsedData,
	}
}

// failure - 에러 결과 조립 (recorder에도 기록)
func (s *Service) failure(message string) *Result {
	s.recorder.SetLastResponse("", nil, nil, "", message)
	return &Result{ImageURLs: []string{}, Error: message}
}
