// Package tts wraps the local edge-tts sidecar service that converts text
// to speech. Synthesis internals live in the sidecar; this client only owns
// the request/response contract.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dextora-llm-service/internal/config"
	"dextora-llm-service/internal/logger"

	"github.com/sony/gobreaker"
)

// Client communicates with the TTS sidecar over HTTP.
type Client struct {
	baseURL    string
	voice      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type serviceError struct {
	Error string `json:"error"`
}

// NewClient creates a TTS client for the configured sidecar.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.TTSTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TTSService",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    cfg.TTSServiceURL,
		voice:      cfg.TTSVoice,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// IsHealthy checks the sidecar's health endpoint.
func (c *Client) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// Synthesize converts text to mp3 audio bytes. Failures are request-level:
// no partial audio is ever returned.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.voice})
	if err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/synthesize", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create synthesis request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("synthesis request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var svcErr serviceError
			_ = json.NewDecoder(resp.Body).Decode(&svcErr)
			if svcErr.Error != "" {
				return nil, fmt.Errorf("tts service: %s", svcErr.Error)
			}
			return nil, fmt.Errorf("tts service: status %d", resp.StatusCode)
		}

		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading audio: %w", err)
		}
		if len(audio) == 0 {
			return nil, fmt.Errorf("tts service returned empty audio")
		}
		return audio, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Warmup synthesizes a trivial utterance so the first real request does not
// pay sidecar spin-up latency.
func (c *Client) Warmup(ctx context.Context) {
	if _, err := c.Synthesize(ctx, "ok"); err != nil {
		logger.Warn("TTS warmup failed", "error", err)
		return
	}
	logger.Info("TTS engine warmed up")
}
