// Command webhook-receiver is a development sink for the settlement engine's
// event webhook. Point SETTLEMENT_WEBHOOK_URL at it and it logs every
// delivered envelope and keeps the most recent ones in memory for inspection.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/middleware"
)

// envelope mirrors the payload the engine's webhook sink posts.
type envelope struct {
	ID        string          `json:"id" binding:"required"`
	Event     string          `json:"event" binding:"required"`
	EmittedAt time.Time       `json:"emitted_at"`
	Payload   json.RawMessage `json:"payload"`
}

const historySize = 200

// history is a bounded buffer of the most recently received envelopes,
// newest first.
type history struct {
	mu      sync.Mutex
	entries []envelope
}

func (h *history) add(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]envelope{env}, h.entries...)
	if len(h.entries) > historySize {
		h.entries = h.entries[:historySize]
	}
}

func (h *history) list() []envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]envelope, len(h.entries))
	copy(out, h.entries)
	return out
}

func main() {
	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = constants.StageLocal
	}
	logger.InitLogger(stage)
	defer logger.Sync()

	received := &history{}

	router := gin.Default()
	router.Use(middleware.CorrelationIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/events", func(c *gin.Context) {
		var env envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid envelope"})
			return
		}

		logger.Info("event received",
			zap.String("id", env.ID),
			zap.String("event", env.Event),
			zap.Time("emitted_at", env.EmittedAt),
			zap.ByteString("payload", env.Payload))
		received.add(env)

		c.JSON(http.StatusOK, gin.H{"received": env.ID})
	})

	router.GET("/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"object": "list",
			"data":   received.list(),
		})
	})

	addr := os.Getenv("RECEIVER_LISTEN_ADDR")
	if addr == "" {
		addr = ":9000"
	}
	log.Printf("Webhook receiver listening on %s\n", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start receiver: %v\n", err)
	}
}
