package generatevideo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptcanvas-server/modules/common/config"
	"promptcanvas-server/modules/common/debuglog"
)

// fakeClock lets polling tests run without wall-clock delays: sleep just
// advances the clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return nil
}

func newTestService(cfg *config.Config) (*Service, *fakeClock) {
	svc := NewService(cfg, debuglog.NewRecorder(10))
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	svc.now = clock.Now
	svc.sleep = clock.Sleep
	return svc, clock
}

func videoConfig(draft, advanced, status, final string) *config.Config {
	return &config.Config{
		VideoWebhookDraft:    draft,
		VideoWebhookAdvanced: advanced,
		VideoWebhookStatus:   status,
		VideoWebhookFinal:    final,
		DraftVideoTimeout:    3 * time.Minute,
		AdvancedMaxPolling:   10 * time.Minute,
		AdvancedPollInterval: 30 * time.Second,
	}
}

func TestGenerateDraft_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload draftPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://img.test/1.png", payload.ImageURL)
		assert.Equal(t, "draft", payload.Mode)

		json.NewEncoder(w).Encode(map[string]string{
			"url":            "https://vid.test/out.mp4",
			"enhancedPrompt": "a cat, cinematic",
		})
	}))
	defer server.Close()

	svc, _ := newTestService(videoConfig(server.URL, "", "", ""))
	result := svc.GenerateDraft(context.Background(), "https://img.test/1.png", "fallback prompt")

	assert.Empty(t, result.Error)
	assert.Equal(t, "https://vid.test/out.mp4", result.VideoURL)
	assert.Equal(t, "a cat, cinematic", result.EnhancedPrompt)
}

func TestGenerateDraft_RawTextURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  https://vid.test/raw.mp4  "))
	}))
	defer server.Close()

	svc, _ := newTestService(videoConfig(server.URL, "", "", ""))
	result := svc.GenerateDraft(context.Background(), "https://img.test/1.png", "p")

	assert.Empty(t, result.Error)
	assert.Equal(t, "https://vid.test/raw.mp4", result.VideoURL)
	// nothing extractable from plain text, fall back to the image's prompt
	assert.Equal(t, "p", result.EnhancedPrompt)
}

func TestGenerateDraft_NoURLIsDistinctError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "done but empty"})
	}))
	defer server.Close()

	svc, _ := newTestService(videoConfig(server.URL, "", "", ""))
	result := svc.GenerateDraft(context.Background(), "https://img.test/1.png", "")

	assert.Equal(t, "No video URL received from server", result.Error)
	assert.Empty(t, result.VideoURL)
}

func TestGenerateDraft_TimeoutSettles(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // never answers within the deadline
	}))
	defer server.Close()
	defer close(release)

	cfg := videoConfig(server.URL, "", "", "")
	cfg.DraftVideoTimeout = 50 * time.Millisecond

	svc, _ := newTestService(cfg)

	done := make(chan *Result, 1)
	go func() {
		done <- svc.GenerateDraft(context.Background(), "https://img.test/1.png", "")
	}()

	select {
	case result := <-done:
		assert.Contains(t, result.Error, "taking longer than expected")
		assert.Empty(t, result.VideoURL)
	case <-time.After(5 * time.Second):
		t.Fatal("draft generation did not settle within the timeout bound")
	}
}

func TestGenerateAdvanced_PollsUntilCompleted(t *testing.T) {
	var statusCalls, finalCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/advanced", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"request_id": "req-123",
			"content":    "prompt actually used",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		// the entire initiate payload must be echoed back on every poll
		var echoed map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&echoed))
		assert.Equal(t, "req-123", echoed["request_id"])

		n := statusCalls.Add(1)
		if n < 3 {
			json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		finalCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"videoURL": "https://vid.test/final.mp4"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := videoConfig("", server.URL+"/advanced", server.URL+"/status", server.URL+"/final")
	svc, _ := newTestService(cfg)

	result := svc.GenerateAdvanced(context.Background(), "https://img.test/1.png", "image prompt")

	assert.Empty(t, result.Error)
	assert.Equal(t, "https://vid.test/final.mp4", result.VideoURL)
	assert.Equal(t, "image prompt", result.EnhancedPrompt)
	assert.Equal(t, "prompt actually used", result.AdvancedPrompt)
	assert.Equal(t, int32(3), statusCalls.Load())
	assert.Equal(t, int32(1), finalCalls.Load())
}

func TestGenerateAdvanced_TransientPollFailuresSwallowed(t *testing.T) {
	var statusCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/advanced", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		switch statusCalls.Add(1) {
		case 1:
			http.Error(w, "internal", http.StatusInternalServerError)
		case 2:
			w.Write([]byte("not json at all"))
		default:
			json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
		}
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("https://vid.test/after-retries.mp4"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := videoConfig("", server.URL+"/advanced", server.URL+"/status", server.URL+"/final")
	svc, _ := newTestService(cfg)

	result := svc.GenerateAdvanced(context.Background(), "https://img.test/1.png", "")

	assert.Empty(t, result.Error)
	assert.Equal(t, "https://vid.test/after-retries.mp4", result.VideoURL)
	assert.Equal(t, int32(3), statusCalls.Load())
}

func TestGenerateAdvanced_MissingRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"content": "no id here"})
	}))
	defer server.Close()

	cfg := videoConfig("", server.URL, server.URL, server.URL)
	svc, _ := newTestService(cfg)

	result := svc.GenerateAdvanced(context.Background(), "https://img.test/1.png", "")

	assert.Equal(t, "Invalid response from server: missing request_id", result.Error)
	assert.Empty(t, result.VideoURL)
}

func TestGenerateAdvanced_PollingCeiling(t *testing.T) {
	var statusCalls, finalCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/advanced", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req-slow"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		finalCalls.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := videoConfig("", server.URL+"/advanced", server.URL+"/status", server.URL+"/final")
	svc, _ := newTestService(cfg)

	result := svc.GenerateAdvanced(context.Background(), "https://img.test/1.png", "")

	assert.Contains(t, result.Error, "timed out after 10 minutes")
	assert.Empty(t, result.VideoURL)
	// ceiling is checked before each attempt, so no extra call after breach
	assert.Equal(t, int32(0), finalCalls.Load())
	// 10min ceiling / 30s interval: 21 sleeps pass the ceiling after 21 polls
	assert.LessOrEqual(t, statusCalls.Load(), int32(21))
	assert.Greater(t, statusCalls.Load(), int32(15))
}

func TestGenerateAdvanced_FinalWebhookError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/advanced", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req-2"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := videoConfig("", server.URL+"/advanced", server.URL+"/status", server.URL+"/final")
	svc, _ := newTestService(cfg)

	result := svc.GenerateAdvanced(context.Background(), "https://img.test/1.png", "")

	assert.Equal(t, "Final webhook returned an error: 502", result.Error)
}
