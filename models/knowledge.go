package models

// Source document kinds stored in the knowledge base.
const (
	KindProse  = "prose"
	KindQAPair = "qa_pair"
)

// KnowledgeEntry is one indexed unit: a prose chunk or a synthesized Q&A
// document, together with its embedding. IDs are fresh UUIDs assigned at
// ingestion time; re-ingesting a source appends new entries rather than
// replacing old ones.
type KnowledgeEntry struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Source string    `json:"source"` // originating file path
	Kind   string    `json:"kind"`   // KindProse or KindQAPair
	Vector []float32 `json:"vector,omitempty"`
}

// SearchResult is a nearest-neighbor match returned by the vector index.
type SearchResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Kind   string  `json:"kind"`
	Score  float64 `json:"score"`
}
