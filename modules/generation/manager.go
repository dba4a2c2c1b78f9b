package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	generateimage "promptcanvas-server/modules/generate-image"
	generatevideo "promptcanvas-server/modules/generate-video"
)

// ErrGenerationNotFound - 대상 generation이 없음 (올바른 UI 사용이라면 발생하지 않음)
var ErrGenerationNotFound = errors.New("generation not found")

// ErrVideoInProgress - 같은 generation에 이미 비디오 요청이 진행 중
var ErrVideoInProgress = errors.New("video generation already in progress for this generation")

// ImageService - 이미지 생성 서비스 계약
type ImageService interface {
	Generate(ctx context.Context, prompt string, modelsEnabled bool, selectedModel string) *generateimage.Result
}

// VideoService - 비디오 생성 서비스 계약
type VideoService interface {
	Generate(ctx context.Context, imageURL, mode, enhancedPrompt string) *generatevideo.Result
}

// Manager owns the authoritative in-memory generation list. All mutation goes
// through the mutex and readers only ever see deep-copied snapshots, so every
// update is atomic with respect to a concurrent read of the full list.
// Failures from the service layer arrive as data and become appended records,
// never missing entries; only a recovered panic reaches the error callback.
type Manager struct {
	mu          sync.RWMutex
	generations []*Generation
	loading     *LoadingGeneration

	images ImageService
	videos VideoService

	onError   func(message string)
	listeners []func(Update)
}

// NewManager - Manager 생성. onError는 예기치 못한 예외 전용 사이드 채널이다 (nil 허용).
func NewManager(images ImageService, videos VideoService, onError func(string)) *Manager {
	return &Manager{
		images:  images,
		videos:  videos,
		onError: onError,
	}
}

// Subscribe registers a listener for state transition events. Listeners are
// invoked outside the manager lock with copied data.
func (m *Manager) Subscribe(listener func(Update)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// GenerateImages runs one prompt through the image webhook and appends exactly
// one Generation, placeholder included on soft errors. Blank prompts are a
// no-op. The loading marker is cleared on every path.
func (m *Manager) GenerateImages(ctx context.Context, prompt string, modelsEnabled bool, selectedModel string) *Generation {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}

	loading := &LoadingGeneration{
		ID:     "loading_" + uuid.NewString(),
		Prompt: prompt,
	}

	m.mu.Lock()
	m.loading = loading
	m.mu.Unlock()
	m.publish(Update{Type: UpdateLoadingStarted, Loading: loading})

	defer func() {
		m.mu.Lock()
		m.loading = nil
		m.mu.Unlock()
		m.publish(Update{Type: UpdateLoadingCleared})
	}()

	var result *generateimage.Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ [Generation] Unexpected panic during image generation: %v", r)
				m.reportError(fmt.Sprintf("unexpected error generating images: %v", r))
			}
		}()
		result = m.images.Generate(ctx, prompt, modelsEnabled, selectedModel)
	}()

	// Only a genuine panic skips the append
	if result == nil {
		return nil
	}

	imageURLs := result.ImageURLs
	if len(imageURLs) == 0 {
		// 서비스가 에러를 반환해도 렌더링할 타일은 항상 하나 보장
		imageURLs = []string{generateimage.PlaceholderURL}
	}

	gen := &Generation{
		ID:             "gen_" + uuid.NewString(),
		Prompt:         prompt,
		EnhancedPrompt: result.EnhancedPrompt,
		ImageURLs:      append([]string{}, imageURLs...),
		Videos:         []VideoObject{},
		CreatedAt:      time.Now(),
	}

	m.mu.Lock()
	m.generations = append(m.generations, gen)
	snapshot := copyGeneration(gen)
	m.mu.Unlock()

	log.Printf("✅ [Generation] Appended generation %s (%d image(s))", gen.ID, len(gen.ImageURLs))
	m.publish(Update{Type: UpdateGenerationAdded, Generation: snapshot})

	if result.Error != "" {
		m.reportError(result.Error)
	}

	return snapshot
}

// GenerateVideo converts one image of a generation into a video. Admission is
// synchronous: the returned error is ErrGenerationNotFound or
// ErrVideoInProgress (a second request for a busy generation is rejected, not
// allowed to clobber the tracked index). The webhook round trips run on a
// background goroutine; the returned channel closes when exactly one
// VideoObject has been appended and the processing fields are back to null.
func (m *Manager) GenerateVideo(ctx context.Context, generationID, imageURL string, imageIndex int, mode string) (<-chan struct{}, error) {
	m.mu.Lock()
	gen := m.findLocked(generationID)
	if gen == nil {
		m.mu.Unlock()
		log.Printf("⚠️  [Generation] Video requested for unknown generation: %s", generationID)
		return nil, ErrGenerationNotFound
	}
	if gen.ProcessingVideoIndex != nil {
		m.mu.Unlock()
		log.Printf("⚠️  [Generation] Rejecting concurrent video request for %s", generationID)
		return nil, ErrVideoInProgress
	}

	idx := imageIndex
	gen.ProcessingVideoIndex = &idx
	gen.ProcessingMode = mode
	enhancedPrompt := gen.EnhancedPrompt
	snapshot := copyGeneration(gen)
	m.mu.Unlock()

	m.publish(Update{Type: UpdateVideoProcessing, Generation: snapshot})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.runVideo(ctx, generationID, imageURL, mode, enhancedPrompt)
	}()

	return done, nil
}

// runVideo - 서비스 호출과 완료 처리. 성공/소프트 에러/패닉 모든 경로에서
// 정확히 한 번 append하고 processing 상태를 해제한다.
func (m *Manager) runVideo(ctx context.Context, generationID, imageURL, mode, enhancedPrompt string) {
	video := VideoObject{
		Mode:      mode,
		Timestamp: time.Now(),
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ [Generation] Unexpected panic during video generation: %v", r)
				video.URL = ""
				video.EnhancedPrompt = ""
				video.AdvancedPrompt = ""
				video.Error = "An error occurred while trying to generate the video."
				m.reportError(fmt.Sprintf("unexpected error generating video: %v", r))
			}
		}()

		result := m.videos.Generate(ctx, imageURL, mode, enhancedPrompt)
		video.EnhancedPrompt = result.EnhancedPrompt
		video.AdvancedPrompt = result.AdvancedPrompt
		if result.Error != "" {
			video.Error = result.Error
		} else {
			video.URL = result.VideoURL
		}
	}()

	video.Timestamp = time.Now()

	m.mu.Lock()
	gen := m.findLocked(generationID)
	if gen == nil {
		// removed mid-flight, nothing left to attach the record to
		m.mu.Unlock()
		log.Printf("⚠️  [Generation] Generation %s removed while video was in flight", generationID)
		return
	}
	gen.Videos = append(gen.Videos, video)
	gen.ProcessingVideoIndex = nil
	gen.ProcessingMode = ""
	snapshot := copyGeneration(gen)
	m.mu.Unlock()

	if video.Error != "" {
		log.Printf("🎞  [Generation] Appended error video to %s: %s", generationID, video.Error)
	} else {
		log.Printf("🎞  [Generation] Appended video to %s: %s", generationID, video.URL)
	}

	m.publish(Update{Type: UpdateVideoCompleted, Generation: snapshot})

	if video.Error != "" {
		m.reportError(video.Error)
	}
}

// Generations returns a deep-copied snapshot of the full list, each
// generation's videos sorted by timestamp for display.
func (m *Manager) Generations() []Generation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Generation, 0, len(m.generations))
	for _, gen := range m.generations {
		out = append(out, *copyGeneration(gen))
	}
	return out
}

// Loading - 진행 중인 이미지 요청의 placeholder (없으면 nil)
func (m *Manager) Loading() *LoadingGeneration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.loading == nil {
		return nil
	}
	loading := *m.loading
	return &loading
}

// Remove - generation 하나 제거
func (m *Manager) Remove(generationID string) bool {
	m.mu.Lock()
	removed := false
	for i, gen := range m.generations {
		if gen.ID == generationID {
			m.generations = append(m.generations[:i], m.generations[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.publish(Update{Type: UpdateGenerationRemoved, Generation: &Generation{ID: generationID}})
	}
	return removed
}

// Clear - 전체 목록 비우기
func (m *Manager) Clear() {
	m.mu.Lock()
	m.generations = nil
	m.mu.Unlock()
	m.publish(Update{Type: UpdateGenerationRemoved})
}

// findLocked - ID로 generation 찾기 (호출자가 lock 보유)
func (m *Manager) findLocked(generationID string) *Generation {
	for _, gen := range m.generations {
		if gen.ID == generationID {
			return gen
		}
	}
	return nil
}

// publish - 리스너들에게 이벤트 발행 (lock 밖에서 호출)
func (m *Manager) publish(update Update) {
	m.mu.RLock()
	listeners := append([]func(Update){}, m.listeners...)
	m.mu.RUnlock()

	for _, listener := range listeners {
		listener(update)
	}
}

// reportError - 에러 콜백 호출 (설정된 경우만)
func (m *Manager) reportError(message string) {
	if m.onError != nil {
		m.onError(message)
	}
}

// copyGeneration - 깊은 복사 + 비디오 timestamp 정렬
func copyGeneration(gen *Generation) *Generation {
	out := *gen
	out.ImageURLs = append([]string{}, gen.ImageURLs...)
	out.Videos = append([]VideoObject{}, gen.Videos...)
	sort.SliceStable(out.Videos, func(i, j int) bool {
		return out.Videos[i].Timestamp.Before(out.Videos[j].Timestamp)
	})
	if gen.ProcessingVideoIndex != nil {
		idx := *gen.ProcessingVideoIndex
		out.ProcessingVideoIndex = &idx
	}
	return &out
}
