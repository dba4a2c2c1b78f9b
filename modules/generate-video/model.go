package generatevideo

// 비디오 생성 모드
const (
	ModeDraft    = "draft"
	ModeAdvanced = "advanced"
)

// StatusCompleted - status check webhook이 완료를 알리는 값
const StatusCompleted = "COMPLETED"

// Result - 비디오 생성 한 번의 결과. VideoURL과 Error는 서로 배타적이다:
// 성공이면 URL만, 실패면 Error만 채워진다.
type Result struct {
	VideoURL       string `json:"videoUrl,omitempty"`
	EnhancedPrompt string `json:"enhancedPrompt,omitempty"`
	AdvancedPrompt string `json:"advancedPrompt,omitempty"`
	Error          string `json:"error,omitempty"`
}

// draftPayload - draft webhook 요청 body
type draftPayload struct {
	ImageURL string `json:"imageURL"`
	Mode     string `json:"mode"`
}

// initiatePayload - advanced webhook 시작 요청 body
type initiatePayload struct {
	ImageURL string `json:"imageURL"`
}
