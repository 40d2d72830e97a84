package routes

import (
	"io"
	"time"

	"dextora-llm-service/internal/app"
	"dextora-llm-service/internal/logger"
	"dextora-llm-service/middleware"
	"dextora-llm-service/models"
	"dextora-llm-service/utils"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes registers the conversational endpoint. Each request is
// stateless: retrieve context, compose the prompt, stream the answer.
func SetupChatRoutes(router *gin.Engine, application *app.App) {
	router.POST("/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		llm, llmReady := application.LLM()
		retriever, ragReady := application.RAG()
		if !llmReady || !ragReady {
			utils.RespondWithServiceUnavailable(c, "Services not initialized")
			return
		}

		cfg := application.Config
		start := time.Now()

		contextChunks := retriever.Retrieve(c.Request.Context(), req.Message, cfg.RetrievalTopK)
		logger.Debug("Context retrieved",
			"request_id", middleware.GetRequestID(c),
			"chunks", len(contextChunks),
			"took_ms", time.Since(start).Milliseconds())

		messages := application.Prompt.Compose(req.Message, contextChunks)

		// The stream owns error delivery: generation failures arrive as the
		// final delta, so from here on the response is always 200.
		deltas := llm.StreamChat(c.Request.Context(), messages, cfg.Temperature)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Stream(func(w io.Writer) bool {
			delta, ok := <-deltas
			if !ok {
				logger.Debug("Chat stream finished",
					"request_id", middleware.GetRequestID(c),
					"total_ms", time.Since(start).Milliseconds())
				return false
			}
			c.SSEvent("message", delta)
			return true
		})
	})
}
