package generateimage

// PlaceholderURL - 이미지가 하나도 없을 때 표시용 placeholder
const PlaceholderURL = "/placeholder.svg?key=no-images-found"

// ImageGenerationRequest - 이미지 생성 요청
type ImageGenerationRequest struct {
	Prompt        string `json:"prompt"`
	ModelsEnabled bool   `json:"modelsEnabled"`
	Model         string `json:"model,omitempty"`
}

// webhookPayload - upstream webhook으로 보내는 요청 body
type webhookPayload struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// Result - 이미지 생성 한 번의 결과. Error가 채워져도 호출자에게 반환되는
// 데이터이지, Go error로 던지지 않는다.
type Result struct {
	ImageURLs      []string    `json:"imageUrls"`
	EnhancedPrompt string      `json:"enhancedPrompt,omitempty"`
	RawResponse    string      `json:"-"`
	ParsedResponse interface{} `json:"-"`
	Error          string      `json:"error,omitempty"`
}
