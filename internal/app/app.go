// Package app holds the explicit application context shared by all request
// handlers. Engines are constructed once at startup and injected here; there
// is no ambient global engine state.
package app

import (
	"context"
	"sync"

	"dextora-llm-service/internal/config"
	"dextora-llm-service/internal/rag"
	"dextora-llm-service/models"
)

// ChatStreamer produces an ordered stream of text deltas for a conversation.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []models.ChatMessage, temperature float64) <-chan string
}

// Retriever returns the most relevant knowledge base texts for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) []string
}

// Synthesizer converts text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// IngestScheduler queues background ingestion jobs and reports their state.
type IngestScheduler interface {
	Enqueue() (*models.IngestJob, error)
	Job(id string) (*models.IngestJob, bool)
}

// App is the application context constructed once in main and passed to
// every route group. Engine slots start empty and are filled as startup
// initialization succeeds; handlers must check readiness before use.
type App struct {
	Config *config.Config
	Prompt *rag.PromptComposer

	mu      sync.RWMutex
	llm     ChatStreamer
	rag     Retriever
	tts     Synthesizer
	ingest  IngestScheduler
	healthy models.EngineStatus
}

func New(cfg *config.Config) *App {
	return &App{
		Config: cfg,
		Prompt: rag.NewPromptComposer(cfg.SystemPromptTemplate),
	}
}

// SetLLM installs the generation engine and marks it ready.
func (a *App) SetLLM(llm ChatStreamer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.llm = llm
	a.healthy.LLM = llm != nil
}

// SetRAG installs the retriever and its ingestion scheduler and marks the
// RAG engine ready.
func (a *App) SetRAG(r Retriever, ingest IngestScheduler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rag = r
	a.ingest = ingest
	a.healthy.RAG = r != nil
}

// SetTTS installs the speech client and marks it ready.
func (a *App) SetTTS(t Synthesizer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tts = t
	a.healthy.TTS = t != nil
}

// LLM returns the generation engine, or false before startup completes.
func (a *App) LLM() (ChatStreamer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.llm, a.llm != nil
}

// RAG returns the retriever, or false before startup completes.
func (a *App) RAG() (Retriever, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rag, a.rag != nil
}

// TTS returns the speech client, or false before startup completes.
func (a *App) TTS() (Synthesizer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tts, a.tts != nil
}

// Ingest returns the ingestion scheduler, or false before startup completes.
func (a *App) Ingest() (IngestScheduler, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ingest, a.ingest != nil
}

// Health reports the readiness of every engine.
func (a *App) Health() models.EngineStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.healthy
}
