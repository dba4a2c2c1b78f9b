package debuglog

import (
	"sync"
	"time"
)

// WebhookResponse - 한 번의 webhook 호출 기록
type WebhookResponse struct {
	Type       string    `json:"type"`
	Response   string    `json:"response"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Snapshot - 마지막 요청의 진단 정보
type Snapshot struct {
	RawResponse      string            `json:"rawResponse"`
	ParsedResponse   interface{}       `json:"parsedResponse"`
	ImageURLs        []string          `json:"imageUrls"`
	EnhancedPrompt   string            `json:"enhancedPrompt"`
	Error            string            `json:"error"`
	WebhookResponses []WebhookResponse `json:"webhookResponses"`
}

// Recorder collects diagnostic data from generation requests. It is passed
// explicitly to the services that produce it instead of living as ambient
// mutable state, so concurrent operations append through one lock. Purely
// observational: nothing reads it back into business logic.
type Recorder struct {
	mu       sync.Mutex
	last     Snapshot
	log      []WebhookResponse
	capacity int
}

// NewRecorder - Recorder 생성 (capacity는 webhook 로그 최대 길이)
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 100
	}
	return &Recorder{capacity: capacity}
}

// SetLastResponse overwrites the last raw/parsed response and its extraction
// results. Called once per image generation round trip.
func (r *Recorder) SetLastResponse(raw string, parsed interface{}, imageURLs []string, enhancedPrompt, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last.RawResponse = raw
	r.last.ParsedResponse = parsed
	r.last.ImageURLs = append([]string{}, imageURLs...)
	r.last.EnhancedPrompt = enhancedPrompt
	r.last.Error = errMsg
}

// AddWebhookResponse appends one webhook round trip to the accumulated log.
// Oldest entries are dropped past capacity.
func (r *Recorder) AddWebhookResponse(kind, response string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = append(r.log, WebhookResponse{
		Type:       kind,
		Response:   response,
		RecordedAt: time.Now(),
	})
	if len(r.log) > r.capacity {
		r.log = r.log[len(r.log)-r.capacity:]
	}
}

// Current returns a copy of the recorded state.
func (r *Recorder) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.last
	snap.ImageURLs = append([]string{}, r.last.ImageURLs...)
	snap.WebhookResponses = append([]WebhookResponse{}, r.log...)
	return snap
}
