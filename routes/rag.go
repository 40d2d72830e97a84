package routes

import (
	"net/http"

	"dextora-llm-service/internal/app"
	"dextora-llm-service/utils"

	"github.com/gin-gonic/gin"
)

// SetupRAGRoutes registers knowledge base maintenance endpoints: kicking off
// a background re-index and polling its job state.
func SetupRAGRoutes(router *gin.Engine, application *app.App) {
	rag := router.Group("/rag")

	rag.POST("/ingest", func(c *gin.Context) {
		scheduler, ready := application.Ingest()
		if !ready {
			utils.RespondWithServiceUnavailable(c, "RAG engine not initialized")
			return
		}

		job, err := scheduler.Enqueue()
		if err != nil {
			utils.RespondWithError(c, http.StatusTooManyRequests, "ingestion_busy", err.Error(), nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status": "started",
			"job_id": job.ID,
		})
	})

	rag.GET("/jobs/:id", func(c *gin.Context) {
		scheduler, ready := application.Ingest()
		if !ready {
			utils.RespondWithServiceUnavailable(c, "RAG engine not initialized")
			return
		}

		job, ok := scheduler.Job(c.Param("id"))
		if !ok {
			utils.RespondWithNotFound(c, "Unknown ingestion job")
			return
		}
		c.JSON(http.StatusOK, job)
	})
}
