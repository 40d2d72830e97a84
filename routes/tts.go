package routes

import (
	"net/http"

	"dextora-llm-service/internal/app"
	"dextora-llm-service/models"
	"dextora-llm-service/utils"

	"github.com/gin-gonic/gin"
)

// SetupTTSRoutes registers the text-to-speech endpoint.
func SetupTTSRoutes(router *gin.Engine, application *app.App) {
	router.POST("/tts", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		synth, ready := application.TTS()
		if !ready {
			utils.RespondWithServiceUnavailable(c, "TTS engine not initialized")
			return
		}

		audio, err := synth.Synthesize(c.Request.Context(), req.Message)
		if err != nil {
			utils.RespondWithInternalError(c, "Generation failed", gin.H{"error": err.Error()})
			return
		}

		c.Data(http.StatusOK, "audio/mp3", audio)
	})
}
