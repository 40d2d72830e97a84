package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dextora-llm-service/internal/config"
)

func ttsConfig(url string) *config.Config {
	return &config.Config{
		TTSServiceURL: url,
		TTSVoice:      "en-GB-RyanNeural",
		TTSTimeout:    5,
	}
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	audio := []byte("ID3fake-mp3-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			http.NotFound(w, r)
			return
		}
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Voice != "en-GB-RyanNeural" {
			t.Errorf("voice = %q", req.Voice)
		}
		w.Header().Set("Content-Type", "audio/mp3")
		w.Write(audio)
	}))
	defer srv.Close()

	client := NewClient(ttsConfig(srv.URL))
	got, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize error: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("audio mismatch: %q", got)
	}
}

func TestSynthesizeFailureIsExplicit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(serviceError{Error: "voice not found"})
	}))
	defer srv.Close()

	client := NewClient(ttsConfig(srv.URL))
	audio, err := client.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from failed synthesis")
	}
	if audio != nil {
		t.Fatal("no partial audio may be returned on failure")
	}
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ttsConfig(srv.URL))
	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}

func TestIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(ttsConfig(srv.URL))
	healthy, err := client.IsHealthy(context.Background())
	if err != nil || !healthy {
		t.Fatalf("healthy = %v, err = %v", healthy, err)
	}
}
