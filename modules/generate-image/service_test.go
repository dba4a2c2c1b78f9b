package generateimage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptcanvas-server/modules/common/config"
	"promptcanvas-server/modules/common/debuglog"
)

func testConfig(imageURL string) *config.Config {
	return &config.Config{
		ImageWebhookDefault: imageURL,
		ImageWebhookByModel: map[string]string{"fiona": imageURL},
	}
}

func TestGenerate_TwoURLsAndPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "a cat", payload.Prompt)
		assert.Equal(t, "fiona", payload.Model)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"imageURLs":      []string{"https://img.test/1.png", "https://img.test/2.png", "https://img.test/3.png"},
			"enhancedPrompt": "a very detailed cat",
		})
	}))
	defer server.Close()

	svc := NewService(testConfig(server.URL), debuglog.NewRecorder(10))
	result := svc.Generate(context.Background(), "a cat", true, "fiona")

	assert.Empty(t, result.Error)
	assert.Equal(t, []string{"https://img.test/1.png", "https://img.test/2.png"}, result.ImageURLs)
	assert.Equal(t, "a very detailed cat", result.EnhancedPrompt)
}

func TestGenerate_NonJSONFallsBackToTextScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`result ready at https://img.test/raw.png enjoy`))
	}))
	defer server.Close()

	svc := NewService(testConfig(server.URL), debuglog.NewRecorder(10))
	result := svc.Generate(context.Background(), "a cat", false, "")

	assert.Empty(t, result.Error)
	assert.Equal(t, []string{"https://img.test/raw.png"}, result.ImageURLs)
	assert.Empty(t, result.EnhancedPrompt)
}

func TestGenerate_PlaceholderWhenNothingFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "done"})
	}))
	defer server.Close()

	svc := NewService(testConfig(server.URL), debuglog.NewRecorder(10))
	result := svc.Generate(context.Background(), "a cat", false, "")

	assert.Empty(t, result.Error)
	require.Len(t, result.ImageURLs, 1)
	assert.Equal(t, PlaceholderURL, result.ImageURLs[0])
}

func TestGenerate_HTTPErrorReturnedAsData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(testConfig(server.URL), debuglog.NewRecorder(10))
	result := svc.Generate(context.Background(), "a cat", false, "")

	assert.Contains(t, result.Error, "500")
	assert.Empty(t, result.ImageURLs)
	assert.Empty(t, result.EnhancedPrompt)
}

func TestGenerate_TransportErrorReturnedAsData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	svc := NewService(testConfig(server.URL), debuglog.NewRecorder(10))
	result := svc.Generate(context.Background(), "a cat", false, "")

	assert.Contains(t, result.Error, "network error")
	assert.Empty(t, result.ImageURLs)
}

func TestGenerate_RecorderReceivesResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"imageURLs": []string{"https://img.test/1.png"}})
	}))
	defer server.Close()

	recorder := debuglog.NewRecorder(10)
	svc := NewService(testConfig(server.URL), recorder)
	svc.Generate(context.Background(), "a cat", false, "")

	snap := recorder.Current()
	require.Len(t, snap.WebhookResponses, 1)
	assert.Equal(t, "image_generation", snap.WebhookResponses[0].Type)
	assert.Equal(t, []string{"https://img.test/1.png"}, snap.ImageURLs)
}
