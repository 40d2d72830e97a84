package routes

import (
	"net/http"

	"dextora-llm-service/internal/app"
	"dextora-llm-service/models"

	"github.com/gin-gonic/gin"
)

// SetupHealthRoutes registers the readiness probe. It always answers, even
// while engines are still initializing or failed to start.
func SetupHealthRoutes(router *gin.Engine, application *app.App) {
	router.GET("/health", func(c *gin.Context) {
		engines := application.Health()

		status := "healthy"
		if !engines.LLM || !engines.RAG {
			status = "starting"
		}
		if application.Config.TTSEnabled && !engines.TTS {
			status = "starting"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Engines: engines,
		})
	})
}
