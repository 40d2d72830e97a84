package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dextora-llm-service/internal/app"
	"dextora-llm-service/internal/config"
	"dextora-llm-service/models"

	"github.com/gin-gonic/gin"
)

type fakeStreamer struct {
	deltas []string
}

func (f *fakeStreamer) StreamChat(ctx context.Context, messages []models.ChatMessage, temperature float64) <-chan string {
	out := make(chan string, len(f.deltas))
	for _, d := range f.deltas {
		out <- d
	}
	close(out)
	return out
}

type fakeRetriever struct {
	texts []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) []string {
	return f.texts
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type fakeScheduler struct {
	jobs map[string]*models.IngestJob
}

func (f *fakeScheduler) Enqueue() (*models.IngestJob, error) {
	job := &models.IngestJob{ID: "job-1", State: models.JobQueued}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeScheduler) Job(id string) (*models.IngestJob, bool) {
	job, ok := f.jobs[id]
	return job, ok
}

func newTestServer(t *testing.T, application *app.App) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupHealthRoutes(router, application)
	SetupChatRoutes(router, application)
	SetupRAGRoutes(router, application)
	SetupTTSRoutes(router, application)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func testApp() *app.App {
	return app.New(&config.Config{
		RetrievalTopK: 1,
		Temperature:   0.7,
		TTSEnabled:    true,
	})
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestChatBeforeEnginesReady(t *testing.T) {
	srv := newTestServer(t, testApp())

	resp := postJSON(t, srv.URL+"/chat", models.ChatRequest{Message: "Hello"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestChatRejectsMissingMessage(t *testing.T) {
	application := testApp()
	application.SetLLM(&fakeStreamer{deltas: []string{"hi"}})
	application.SetRAG(&fakeRetriever{}, &fakeScheduler{jobs: map[string]*models.IngestJob{}})
	srv := newTestServer(t, application)

	resp := postJSON(t, srv.URL+"/chat", gin.H{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatStreamsGroundedAnswer(t *testing.T) {
	application := testApp()
	application.SetLLM(&fakeStreamer{deltas: []string{"Dextora is ", "an AI mentorship platform."}})
	application.SetRAG(
		&fakeRetriever{texts: []string{"Dextora is an AI mentorship platform."}},
		&fakeScheduler{jobs: map[string]*models.IngestJob{}},
	)
	srv := newTestServer(t, application)

	resp := postJSON(t, srv.URL+"/chat", models.ChatRequest{Message: "What is Dextora?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)
	if !strings.Contains(text, "Dextora is") || !strings.Contains(text, "mentorship platform.") {
		t.Fatalf("stream body missing deltas:\n%s", text)
	}
}

func TestHealthTransitions(t *testing.T) {
	application := testApp()
	srv := newTestServer(t, application)

	get := func() models.HealthResponse {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("health status = %d", resp.StatusCode)
		}
		var health models.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatal(err)
		}
		return health
	}

	before := get()
	if before.Status != "starting" || before.Engines.LLM || before.Engines.RAG || before.Engines.TTS {
		t.Fatalf("pre-startup health = %+v", before)
	}

	application.SetLLM(&fakeStreamer{})
	application.SetRAG(&fakeRetriever{}, &fakeScheduler{jobs: map[string]*models.IngestJob{}})
	application.SetTTS(&fakeSynthesizer{audio: []byte("x")})

	after := get()
	if after.Status != "healthy" || !after.Engines.LLM || !after.Engines.RAG || !after.Engines.TTS {
		t.Fatalf("post-startup health = %+v", after)
	}
}

func TestIngestBeforeReady(t *testing.T) {
	srv := newTestServer(t, testApp())

	resp := postJSON(t, srv.URL+"/rag/ingest", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestIngestStartsJob(t *testing.T) {
	application := testApp()
	scheduler := &fakeScheduler{jobs: map[string]*models.IngestJob{}}
	application.SetRAG(&fakeRetriever{}, scheduler)
	srv := newTestServer(t, application)

	resp := postJSON(t, srv.URL+"/rag/ingest", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		JobID  string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "started" || body.JobID == "" {
		t.Fatalf("unexpected body: %+v", body)
	}

	jobResp, err := http.Get(srv.URL + "/rag/jobs/" + body.JobID)
	if err != nil {
		t.Fatal(err)
	}
	defer jobResp.Body.Close()
	if jobResp.StatusCode != http.StatusOK {
		t.Fatalf("job status = %d, want 200", jobResp.StatusCode)
	}
}

func TestIngestJobNotFound(t *testing.T) {
	application := testApp()
	application.SetRAG(&fakeRetriever{}, &fakeScheduler{jobs: map[string]*models.IngestJob{}})
	srv := newTestServer(t, application)

	resp, err := http.Get(srv.URL + "/rag/jobs/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTTSBeforeReady(t *testing.T) {
	srv := newTestServer(t, testApp())

	resp := postJSON(t, srv.URL+"/tts", models.ChatRequest{Message: "Hello"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestTTSReturnsAudio(t *testing.T) {
	application := testApp()
	application.SetTTS(&fakeSynthesizer{audio: []byte("mp3-bytes")})
	srv := newTestServer(t, application)

	resp := postJSON(t, srv.URL+"/tts", models.ChatRequest{Message: "Hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mp3" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "mp3-bytes" {
		t.Errorf("audio mismatch: %q", body)
	}
}

func TestTTSSynthesisFailure(t *testing.T) {
	application := testApp()
	application.SetTTS(&fakeSynthesizer{err: errors.New("voice backend down")})
	srv := newTestServer(t, application)

	resp := postJSON(t, srv.URL+"/tts", models.ChatRequest{Message: "Hello"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
