package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dextora-llm-service/internal/ai"
	"dextora-llm-service/internal/app"
	"dextora-llm-service/internal/config"
	"dextora-llm-service/internal/logger"
	"dextora-llm-service/internal/rag"
	"dextora-llm-service/internal/tts"
	"dextora-llm-service/internal/vectorindex"
	"dextora-llm-service/middleware"
	"dextora-llm-service/routes"
	"dextora-llm-service/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Application context; engines are attached as they come up so /health
	// and the 503 guards stay accurate during startup
	application := app.New(cfg)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	// Setup routes
	routes.SetupHealthRoutes(router, application)
	routes.SetupChatRoutes(router, application)
	routes.SetupRAGRoutes(router, application)
	routes.SetupTTSRoutes(router, application)

	// Bring engines up off the serving path; endpoints answer 503 until
	// their engine is ready
	type engineHandles struct {
		ingest *services.IngestManager
		index  *vectorindex.Store
	}
	enginesUp := make(chan engineHandles, 1)
	go func() {
		ingest, index := initEngines(cfg, application)
		enginesUp <- engineHandles{ingest: ingest, index: index}
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	select {
	case handles := <-enginesUp:
		if handles.ingest != nil {
			handles.ingest.Stop()
		}
		if handles.index != nil {
			handles.index.Close()
		}
	default:
		// engines never finished initializing; nothing to release
	}

	logger.Info("Server exited")
}

// initEngines loads the models and opens the index. A failed engine stays
// unset: its endpoints keep returning 503 and /health reports it down, but
// the process keeps serving rather than crash-looping.
func initEngines(cfg *config.Config, application *app.App) (*services.IngestManager, *vectorindex.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// LLM engine
	llmEngine := ai.NewLLMEngine(cfg)
	if err := llmEngine.Ping(ctx); err != nil {
		logger.Error("LLM engine unavailable", "error", err)
	} else {
		application.SetLLM(llmEngine)
		logger.Info("LLM engine ready", "model", cfg.ChatModel)
	}

	// RAG engine: embedder must load and the index must open, otherwise
	// chat stays unavailable
	var ingestManager *services.IngestManager
	var index *vectorindex.Store

	embedder, err := ai.NewEmbedder(cfg)
	if err == nil {
		// Probe the embedding model once; ModelUnavailable is fatal here,
		// not per-request
		_, err = embedder.Embed(ctx, []string{"ok"})
	}
	if err != nil {
		logger.Error("Embedding model unavailable", "error", err)
	} else if index, err = vectorindex.Open(cfg.IndexDir); err != nil {
		logger.Error("Failed to open vector index", "error", err)
		index = nil
	} else {
		ragEngine := rag.NewEngine(cfg, embedder, index)
		ingestManager = services.NewIngestManager(ragEngine, cfg.DataDir)
		ingestManager.Start()
		application.SetRAG(ragEngine, ingestManager)
		logger.Info("RAG engine ready", "index", index.Path())
	}

	// TTS sidecar
	if cfg.TTSEnabled {
		ttsClient := tts.NewClient(cfg)
		if healthy, err := ttsClient.IsHealthy(ctx); err != nil || !healthy {
			logger.Error("TTS service unavailable", "error", err)
		} else {
			application.SetTTS(ttsClient)
			go ttsClient.Warmup(context.Background())
			logger.Info("TTS engine ready", "voice", cfg.TTSVoice)
		}
	}

	return ingestManager, index
}
