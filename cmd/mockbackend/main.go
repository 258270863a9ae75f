// mockbackend is a local stand-in for the Lucent API used while
// developing the client. It serves the deep-search event stream, the
// chunked chat completion stream, and the chat persistence endpoints,
// all backed by an in-memory chat store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/lucentai/lucent-client/internal/config"
	"github.com/lucentai/lucent-client/internal/transport"
)

var registry = prometheus.NewRegistry()

var (
	streamsServed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "mockbackend",
		Name:      "streams_served_total",
		Help:      "Deep-search streams served.",
	})
	framesEmitted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "mockbackend",
		Name:      "frames_emitted_total",
		Help:      "SSE frames written across all streams.",
	})
)

// chatStore is the in-memory persistence layer behind the API.
type chatStore struct {
	mu    sync.Mutex
	chats map[string][]transport.ChatMessage
}

func newChatStore() *chatStore {
	return &chatStore{chats: make(map[string][]transport.ChatMessage)}
}

func (s *chatStore) append(chatID string, msg transport.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chatID] = append(s.chats[chatID], msg)
}

func (s *chatStore) get(chatID string) []transport.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.chats[chatID]
	out := make([]transport.ChatMessage, len(rows))
	copy(out, rows)
	return out
}

func (s *chatStore) truncate(chatID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.chats[chatID]
	if count > len(rows) {
		count = len(rows)
	}
	s.chats[chatID] = rows[:len(rows)-count]
}

func newRow(chatID, role, content string) transport.ChatMessage {
	return transport.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

type server struct {
	store  *chatStore
	logger *log.Logger

	// framesPerSecond paces the scripted streams so the client's catch-up
	// animation has something to chase.
	framesPerSecond rate.Limit
}

func (s *server) routes(router *gin.Engine) {
	router.POST("/api/deep-search", s.handleDeepSearch)
	router.POST("/api/chat", s.handleChat)
	router.GET("/api/chats/:id", s.handleGetChat)
	router.POST("/api/chat/truncate", s.handleTruncate)
	router.POST("/api/messages", s.handleCreateMessage)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// writeFrame writes one SSE frame and flushes it.
func writeFrame(c *gin.Context, payload string) {
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
	framesEmitted.Inc()
}

func (s *server) handleDeepSearch(c *gin.Context) {
	var req transport.DeepSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.logger.Info("deep-search stream",
		"chat_id", req.ChatID, "skip_clarify", req.SkipClarify)
	streamsServed.Inc()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	limiter := rate.NewLimiter(s.framesPerSecond, 1)
	emit := func(payload string) bool {
		if err := limiter.Wait(c.Request.Context()); err != nil {
			return false
		}
		writeFrame(c, payload)
		return true
	}

	// Queries mentioning "clarify" exercise the clarification round-trip
	// unless the client already answered.
	if strings.Contains(strings.ToLower(req.Query), "clarify") && !req.SkipClarify {
		emit(`{"type":"phase","phase":"planning","description":"Reviewing your question"}`)
		emit(`{"type":"clarify","questions":["What time period should the research cover?","Any regions to focus on?"]}`)
		return
	}

	script := []string{
		`{"type":"phase","phase":"planning","description":"Planning research approach"}`,
		`{"type":"progress","percent":5,"message":"Outlining search strategy"}`,
		`{"type":"phase","phase":"searching","description":"Searching the web"}`,
		fmt.Sprintf(`{"type":"search","query":%q,"index":1,"total":3}`, req.Query+" overview"),
		`{"type":"source","url":"https://example.com/overview","title":"An overview"}`,
		fmt.Sprintf(`{"type":"search","query":%q,"index":2,"total":3}`, req.Query+" analysis"),
		`{"type":"source","url":"https://example.com/analysis","title":"In-depth analysis"}`,
		fmt.Sprintf(`{"type":"search","query":%q,"index":3,"total":3}`, req.Query+" criticism"),
		`{"type":"progress","percent":55,"message":"Reading sources"}`,
		`{"type":"phase","phase":"analyzing","description":"Analyzing findings"}`,
		`{"type":"phase","phase":"writing","description":"Writing the report"}`,
		`{"type":"report_start"}`,
	}
	for _, frame := range script {
		if !emit(frame) {
			return
		}
	}

	report := "# Research findings\n\nBased on the sources reviewed, here is what stands out about " +
		req.Query + ". The overview material establishes the core facts, the analysis pieces " +
		"disagree on emphasis, and the critical coverage highlights open questions worth a follow-up."
	var reportText strings.Builder
	for _, word := range strings.SplitAfter(report, " ") {
		reportText.WriteString(word)
		if !emit(fmt.Sprintf(`{"type":"text","text":%q}`, word)) {
			return
		}
	}

	emit(`{"type":"complete","elapsed":42.5,"sources":[` +
		`{"url":"https://example.com/overview","title":"An overview"},` +
		`{"url":"https://example.com/analysis","title":"In-depth analysis"}]}`)

	// Persist what the stream produced so the client's authoritative
	// reload observes server truth.
	s.store.append(req.ChatID, newRow(req.ChatID, "user", req.Query))
	s.store.append(req.ChatID, newRow(req.ChatID, "assistant", reportText.String()))
}

type chatRequest struct {
	ChatID   string                  `json:"chatId"`
	Messages []transport.ChatMessage `json:"messages"`
}

func (s *server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")

	reply := "This is a mock completion. Point the client at a real backend for actual answers."
	limiter := rate.NewLimiter(s.framesPerSecond, 1)
	for _, word := range strings.SplitAfter(reply, " ") {
		if err := limiter.Wait(c.Request.Context()); err != nil {
			return
		}
		c.Writer.WriteString(word)
		c.Writer.Flush()
	}

	if len(req.Messages) > 0 {
		last := req.Messages[len(req.Messages)-1]
		s.store.append(req.ChatID, newRow(req.ChatID, "user", last.Content))
	}
	s.store.append(req.ChatID, newRow(req.ChatID, "assistant", reply))
}

func (s *server) handleGetChat(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.get(c.Param("id")))
}

func (s *server) handleTruncate(c *gin.Context) {
	var req struct {
		ChatID string `json:"chatId"`
		Count  int    `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.store.truncate(req.ChatID, req.Count)
	c.Status(http.StatusNoContent)
}

func (s *server) handleCreateMessage(c *gin.Context) {
	var req struct {
		ChatID  string `json:"chatId"`
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.store.append(req.ChatID, newRow(req.ChatID, req.Role, req.Content))
	c.Status(http.StatusCreated)
}

func main() {
	cfg := config.Load()

	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		Level:           log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &server{
		store:           newChatStore(),
		logger:          logger,
		framesPerSecond: 20,
	}
	srv.routes(router)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}).Handler(router)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("mock backend listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}
}
