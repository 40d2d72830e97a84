// models/chat.go
package models

// ChatRequest is the body of POST /chat and POST /tts.
type ChatRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// ChatMessage is one role-tagged turn of a model conversation.
// Conversations are built fresh per request and never persisted.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// EngineStatus reports per-engine readiness for /health.
type EngineStatus struct {
	LLM bool `json:"llm"`
	RAG bool `json:"rag"`
	TTS bool `json:"tts"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Engines EngineStatus `json:"engines"`
}
