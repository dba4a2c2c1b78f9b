package generation

import "time"

// VideoObject - 비디오 생성 시도 1회의 기록 (성공/실패 모두).
// URL과 Error는 서로 배타적이다. append 이후 절대 수정되지 않는다.
type VideoObject struct {
	URL            string    `json:"url"`
	Mode           string    `json:"mode"`
	EnhancedPrompt string    `json:"enhancedPrompt,omitempty"`
	AdvancedPrompt string    `json:"advancedPrompt,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Generation - 프롬프트 하나와 그로부터 파생된 미디어
type Generation struct {
	ID             string        `json:"id"`
	Prompt         string        `json:"prompt"`
	EnhancedPrompt string        `json:"enhancedPrompt,omitempty"`
	ImageURLs      []string      `json:"imageUrls"`
	Videos         []VideoObject `json:"videos"`

	// 비디오 변환 중인 이미지 인덱스와 모드. idle이면 둘 다 null.
	ProcessingVideoIndex *int   `json:"processingVideoIndex"`
	ProcessingMode       string `json:"processingMode,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// LoadingGeneration - 이미지 요청이 진행 중일 때 UI가 표시할 placeholder
type LoadingGeneration struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// Update - 구독자에게 발행되는 상태 변화 이벤트
type Update struct {
	Type       string             `json:"type"`
	Generation *Generation        `json:"generation,omitempty"`
	Loading    *LoadingGeneration `json:"loading,omitempty"`
}

// Update 이벤트 타입
const (
	UpdateLoadingStarted    = "loading_started"
	UpdateLoadingCleared    = "loading_cleared"
	UpdateGenerationAdded   = "generation_added"
	UpdateVideoProcessing   = "video_processing"
	UpdateVideoCompleted    = "video_completed"
	UpdateGenerationRemoved = "generation_removed"
)
