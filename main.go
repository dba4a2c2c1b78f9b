package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"promptcanvas-server/modules/common/config"
	"promptcanvas-server/modules/common/debuglog"
	redisClient "promptcanvas-server/modules/common/redis"
	generateimage "promptcanvas-server/modules/generate-image"
	generatevideo "promptcanvas-server/modules/generate-video"
	"promptcanvas-server/modules/generation"
	"promptcanvas-server/modules/worker"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		// 프로덕션에서는 특정 도메인만 허용하도록 수정
		return true
	},
}

// 연결된 클라이언트 정보
type Client struct {
	conn *websocket.Conn
	id   string
	send chan []byte
}

// StreamHub - 생성 상태 변경을 연결된 클라이언트 전체에 브로드캐스트
type StreamHub struct {
	clients map[string]*Client
	mutex   sync.RWMutex
	metrics *ServerMetrics
}

// 서버 메트릭
type ServerMetrics struct {
	TotalConnections  int       `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	UpdatesPublished  int       `json:"updatesPublished"`
	StartTime         time.Time `json:"startTime"`
	mutex             sync.RWMutex
}

var hub = &StreamHub{
	clients: make(map[string]*Client),
	metrics: &ServerMetrics{
		StartTime: time.Now(),
	},
}

// 클라이언트 추가
func (h *StreamHub) addClient(client *Client) {
	h.mutex.Lock()
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.metrics.mutex.Lock()
	h.metrics.TotalConnections++
	h.metrics.ActiveConnections = clientCount
	h.metrics.mutex.Unlock()

	log.Printf("👤 Client %s connected (Active: %d, Total: %d)",
		client.id, clientCount, h.metrics.TotalConnections)
}

// 클라이언트 제거
func (h *StreamHub) removeClient(id string) {
	h.mutex.Lock()
	if client, exists := h.clients[id]; exists {
		close(client.send)
		delete(h.clients, id)
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.metrics.mutex.Lock()
	h.metrics.ActiveConnections = clientCount
	h.metrics.mutex.Unlock()

	log.Printf("👋 Client %s disconnected (Remaining: %d)", id, clientCount)
}

// Broadcast - 모든 클라이언트에게 생성 상태 업데이트 전송
func (h *StreamHub) Broadcast(update generation.Update) {
	messageBytes, err := json.Marshal(update)
	if err != nil {
		log.Printf("Error marshaling update: %v", err)
		return
	}

	h.mutex.Lock()
	for id, client := range h.clients {
		select {
		case client.send <- messageBytes:
		default:
			close(client.send)
			delete(h.clients, id)
		}
	}
	h.mutex.Unlock()

	h.metrics.mutex.Lock()
	h.metrics.UpdatesPublished++
	h.metrics.mutex.Unlock()
}

// WebSocket 핸들러
func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		clientID = r.RemoteAddr
	}

	client := &Client{
		conn: conn,
		id:   clientID,
		send: make(chan []byte, 256),
	}

	log.Printf("🔍 New WebSocket connection - Client: %s", clientID)

	hub.addClient(client)

	go client.writePump()
	go client.readPump()
}

// 클라이언트로부터 메시지 읽기 (수신 전용 스트림이라 연결 종료 감지만 한다)
func (c *Client) readPump() {
	defer func() {
		hub.removeClient(c.id)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "promptcanvas-server",
	})
}

// ModelInfo - 프롬프트 생성에 선택 가능한 이미지 모델
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var modelCatalog = []ModelInfo{
	{ID: "fiona", Name: "Fiona", Description: "Balanced quality, default model"},
	{ID: "camilla", Name: "Camilla", Description: "High detail portraits"},
	{ID: "cinematic", Name: "Cinematic", Description: "Film style lighting and framing"},
	{ID: "sketch", Name: "Sketch", Description: "Rough concept drawings"},
}

// 모델 목록 조회 엔드포인트
func getModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"models":  modelCatalog,
		"default": "fiona",
	})
}

// 서버 메트릭 조회 엔드포인트
func getMetrics(w http.ResponseWriter, r *http.Request) {
	hub.metrics.mutex.RLock()
	metrics := *hub.metrics
	hub.metrics.mutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"uptime":            time.Since(metrics.StartTime).String(),
		"startTime":         metrics.StartTime,
		"totalConnections":  metrics.TotalConnections,
		"activeConnections": metrics.ActiveConnections,
		"updatesPublished":  metrics.UpdatesPublished,
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Debug Recorder 초기화
	recorder := debuglog.NewRecorder(50)

	// 서비스 초기화
	imageService := generateimage.NewService(cfg, recorder)
	videoService := generatevideo.NewService(cfg, recorder)

	// 생성 상태 매니저 초기화
	manager := generation.NewManager(imageService, videoService, func(msg string) {
		log.Printf("⚠️ Generation error: %s", msg)
	})
	manager.Subscribe(hub.Broadcast)

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/models", getModels).Methods("GET")
	r.HandleFunc("/metrics", getMetrics).Methods("GET")
	r.HandleFunc("/ws", handleWebSocket)

	generationHandler := generation.NewHandler(manager, recorder)
	generationHandler.RegisterRoutes(r)

	// Redis 연결 (Queue 기반 변환용, 없어도 동기 API는 동작)
	rdb := redisClient.Connect(cfg)
	if rdb != nil {
		log.Println("✅ Redis connected successfully")

		if enqueueHandler := worker.NewEnqueueHandler(rdb); enqueueHandler != nil {
			enqueueHandler.RegisterRoutes(r)
		}
		if cancelHandler := worker.NewCancelHandler(rdb); cancelHandler != nil {
			cancelHandler.RegisterRoutes(r)
		}

		// Redis Queue Worker 시작 (백그라운드)
		go worker.NewWorker(rdb, manager).Run(context.Background())
	} else {
		log.Println("⚠️ Redis unavailable, queue endpoints disabled")
	}

	port := cfg.Port
	log.Printf("🚀 PromptCanvas Server starting on port %s", port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws", port)
	log.Printf("❤️  Health check: http://localhost:%s/health", port)
	log.Printf("🎨 Models: http://localhost:%s/models", port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", port)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
