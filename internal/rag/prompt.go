package rag

import (
	"strings"

	"dextora-llm-service/models"
)

// defaultSystemPrompt is the Dextora behavioral policy. The retrieved
// context block is appended below it at compose time; operators may swap the
// policy text via SYSTEM_PROMPT_TEMPLATE without touching the slot structure.
const defaultSystemPrompt = "You are Dextora, an advanced AI mentorship platform designed for students, teachers, and schools. " +
	"Your goal is to provide personalized guidance, smart study strategies, and 24/7 support. " +
	"Adhere to the following rules strictly:\n" +
	"1. Answer ONLY using the provided Context. Do NOT use outside knowledge.\n" +
	"2. If the user asks 'Who are you?' or 'What is your name?', reply exactly: " +
	"'My name is Dextora.' followed by a brief 1-sentence summary of what Dextora is (from the context).\n" +
	"If someone asks 'What is Dextora AI', clarify that you are simply 'Dextora' now, but answer the question about your capabilities.\n" +
	"3. If the user greets you (Bi, Hi, Hello, Good Morning, etc.), respond politely and professionally as Dextora, then ask how you can help.\n" +
	"4. If the answer is not in the Context, politely say: 'I can only provide information about Dextora and its dataset. I do not have information on that topic.'\n" +
	"5. Keep responses concise, smart, and professional."

// PromptComposer merges retrieved context with the behavioral policy and the
// user's message into a two-message conversation.
type PromptComposer struct {
	policy string
}

// NewPromptComposer uses the given policy template, falling back to the
// built-in Dextora policy when empty.
func NewPromptComposer(policy string) *PromptComposer {
	if policy == "" {
		policy = defaultSystemPrompt
	}
	return &PromptComposer{policy: policy}
}

// Compose builds the conversation for one request: a system message holding
// the policy plus the context block, then a user message with the raw query.
func (p *PromptComposer) Compose(query string, contextChunks []string) []models.ChatMessage {
	contextText := strings.Join(contextChunks, "\n\n")

	return []models.ChatMessage{
		{Role: "system", Content: p.policy + "\n\nContext:\n" + contextText},
		{Role: "user", Content: query},
	}
}
