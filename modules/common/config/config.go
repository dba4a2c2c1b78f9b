package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Image generation webhooks
	ImageWebhookDefault string
	ImageWebhookByModel map[string]string

	// Video generation webhooks
	VideoWebhookDraft    string
	VideoWebhookAdvanced string
	VideoWebhookStatus   string
	VideoWebhookFinal    string

	// Timeouts
	DraftVideoTimeout    time.Duration
	AdvancedMaxPolling   time.Duration
	AdvancedPollInterval time.Duration

	// Server
	Port string
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// Redis UseTLS 파싱
	useTLS := true // 기본값
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	globalConfig = &Config{
		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		// Image generation webhooks
		ImageWebhookDefault: getEnv("IMAGE_WEBHOOK_DEFAULT", ""),
		ImageWebhookByModel: map[string]string{
			"fiona":     getEnv("IMAGE_WEBHOOK_FIONA", ""),
			"camilla":   getEnv("IMAGE_WEBHOOK_CAMILLA", ""),
			"cinematic": getEnv("IMAGE_WEBHOOK_CINEMATIC", ""),
			"sketch":    getEnv("IMAGE_WEBHOOK_SKETCH", ""),
		},

		// Video generation webhooks
		VideoWebhookDraft:    getEnv("VIDEO_WEBHOOK_DRAFT", ""),
		VideoWebhookAdvanced: getEnv("VIDEO_WEBHOOK_ADVANCED", ""),
		VideoWebhookStatus:   getEnv("VIDEO_WEBHOOK_STATUS", ""),
		VideoWebhookFinal:    getEnv("VIDEO_WEBHOOK_FINAL", ""),

		// Timeouts
		DraftVideoTimeout:    getDuration("DRAFT_VIDEO_TIMEOUT", 3*time.Minute),
		AdvancedMaxPolling:   getDuration("ADVANCED_VIDEO_MAX_POLLING", 10*time.Minute),
		AdvancedPollInterval: getDuration("ADVANCED_VIDEO_POLL_INTERVAL", 30*time.Second),

		// Server
		Port: getEnv("PORT", "8080"),
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Image webhook (default): %s", globalConfig.ImageWebhookDefault)
	log.Printf("   Video webhooks: draft=%s advanced=%s", globalConfig.VideoWebhookDraft, globalConfig.VideoWebhookAdvanced)
	log.Printf("   Timeouts: draft=%v polling=%v interval=%v",
		globalConfig.DraftVideoTimeout, globalConfig.AdvancedMaxPolling, globalConfig.AdvancedPollInterval)

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.ImageWebhookDefault == "" {
		return fmt.Errorf("IMAGE_WEBHOOK_DEFAULT is required")
	}
	if c.VideoWebhookDraft == "" {
		return fmt.Errorf("VIDEO_WEBHOOK_DRAFT is required")
	}
	if c.VideoWebhookAdvanced == "" {
		return fmt.Errorf("VIDEO_WEBHOOK_ADVANCED is required")
	}
	if c.VideoWebhookStatus == "" {
		return fmt.Errorf("VIDEO_WEBHOOK_STATUS is required")
	}
	if c.VideoWebhookFinal == "" {
		return fmt.Errorf("VIDEO_WEBHOOK_FINAL is required")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration - duration 환경변수 파싱 (기본값 지원)
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid duration for %s, using default %v", key, defaultValue)
	}
	return defaultValue
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// ImageWebhookURL - 모델 선택에 따른 이미지 생성 webhook URL 결정
func (c *Config) ImageWebhookURL(modelsEnabled bool, selectedModel string) string {
	if !modelsEnabled {
		return c.ImageWebhookDefault
	}
	if url, ok := c.ImageWebhookByModel[selectedModel]; ok && url != "" {
		return url
	}
	return c.ImageWebhookDefault
}

// VideoWebhookURL - 모드에 따른 비디오 생성 webhook URL 결정
func (c *Config) VideoWebhookURL(mode string) string {
	if mode == "draft" {
		return c.VideoWebhookDraft
	}
	return c.VideoWebhookAdvanced
}
