package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dextora-llm-service/internal/config"
	"dextora-llm-service/internal/logger"
	"dextora-llm-service/models"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// streamBuffer bounds the producer/consumer channel between the model's
// token loop and the HTTP response writer. The producer blocks when the
// consumer falls behind; the consumer suspends when no delta is ready.
const streamBuffer = 16

// LLMEngine produces token-incremental chat completions from a locally
// hosted causal language model served by Ollama. Each StreamChat invocation
// gets its own request and channel, so concurrent in-flight chats never
// share generation state.
type LLMEngine struct {
	baseURL      string
	model        string
	temperature  float64
	maxNewTokens int
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
}

func NewLLMEngine(cfg *config.Config) *LLMEngine {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OllamaChat",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &LLMEngine{
		baseURL:      cfg.OllamaURL,
		model:        cfg.ChatModel,
		temperature:  cfg.Temperature,
		maxNewTokens: cfg.MaxNewTokens,
		httpClient:   &http.Client{}, // no client timeout: streams are bounded by num_predict
		breaker:      breaker,
		rateLimiter:  rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Ping verifies the model server is reachable and the chat model is loaded.
func (e *LLMEngine) Ping(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"model": e.model})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: model %q not available (status %d)", ErrModelUnavailable, e.model, resp.StatusCode)
	}
	return nil
}

type ollamaChatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  ollamaChatOptions    `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	Message models.ChatMessage `json:"message"`
	Done    bool               `json:"done"`
	Error   string             `json:"error,omitempty"`
}

// StreamChat starts generation for the conversation and returns a channel of
// text deltas in generation order. The channel is closed when generation
// completes, fails, or ctx is cancelled. Failures never escape the stream:
// they arrive as one final in-band delta describing the error.
func (e *LLMEngine) StreamChat(ctx context.Context, messages []models.ChatMessage, temperature float64) <-chan string {
	deltas := make(chan string, streamBuffer)

	go func() {
		defer close(deltas)

		if err := e.rateLimiter.Wait(ctx); err != nil {
			return
		}

		resp, err := e.openStream(ctx, messages, temperature)
		if err != nil {
			e.emit(ctx, deltas, fmt.Sprintf("Error generating response: %v", err))
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				e.emit(ctx, deltas, fmt.Sprintf("Error generating response: %v", err))
				return
			}
			if chunk.Error != "" {
				e.emit(ctx, deltas, fmt.Sprintf("Error generating response: %s", chunk.Error))
				return
			}
			if chunk.Message.Content != "" {
				if !e.emit(ctx, deltas, chunk.Message.Content) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			e.emit(ctx, deltas, fmt.Sprintf("Error generating response: %v", err))
		}
	}()

	return deltas
}

// Chat is the non-streaming fallback: it drains the stream and returns the
// concatenated response.
func (e *LLMEngine) Chat(ctx context.Context, messages []models.ChatMessage, temperature float64) string {
	var full bytes.Buffer
	for delta := range e.StreamChat(ctx, messages, temperature) {
		full.WriteString(delta)
	}
	return full.String()
}

// openStream establishes the streaming HTTP response behind the circuit
// breaker; token consumption happens outside it.
func (e *LLMEngine) openStream(ctx context.Context, messages []models.ChatMessage, temperature float64) (*http.Response, error) {
	if temperature <= 0 {
		temperature = e.temperature
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    e.model,
		Messages: messages,
		Stream:   true,
		Options: ollamaChatOptions{
			Temperature: temperature,
			NumPredict:  e.maxNewTokens,
		},
	})
	if err != nil {
		return nil, err
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			var errResp ollamaChatResponse
			_ = json.NewDecoder(resp.Body).Decode(&errResp)
			resp.Body.Close()
			if errResp.Error != "" {
				return nil, fmt.Errorf("model server: %s", errResp.Error)
			}
			return nil, fmt.Errorf("model server: status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// emit delivers one delta unless the request context is gone. Returns false
// when the consumer has disconnected.
func (e *LLMEngine) emit(ctx context.Context, deltas chan<- string, text string) bool {
	select {
	case deltas <- text:
		return true
	case <-ctx.Done():
		return false
	}
}
