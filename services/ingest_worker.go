package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dextora-llm-service/internal/logger"
	"dextora-llm-service/internal/rag"
	"dextora-llm-service/models"

	"github.com/google/uuid"
)

// queueDepth bounds how many ingestion runs may wait behind the active one.
const queueDepth = 4

// IngestManager runs knowledge base ingestion on a single background worker
// and keeps an observable record per job, so callers can poll
// queued/running/completed/failed instead of firing a detached goroutine.
// One worker is deliberate: ingestion runs are whole-index rebuild passes
// and interleaving two of them just doubles duplicates.
type IngestManager struct {
	engine *rag.Engine
	root   string

	mu   sync.RWMutex
	jobs map[string]*models.IngestJob

	queue    chan string
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIngestManager creates a manager ingesting from the given data root.
func NewIngestManager(engine *rag.Engine, root string) *IngestManager {
	return &IngestManager{
		engine:   engine,
		root:     root,
		jobs:     make(map[string]*models.IngestJob),
		queue:    make(chan string, queueDepth),
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (m *IngestManager) Start() {
	go m.worker()
	logger.Info("Ingestion worker started", "root", m.root)
}

// Stop shuts the worker down. Queued jobs are abandoned; the active job
// finishes its current file set.
func (m *IngestManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// Enqueue schedules a new ingestion run and returns its job record.
func (m *IngestManager) Enqueue() (*models.IngestJob, error) {
	job := &models.IngestJob{
		ID:       uuid.NewString(),
		State:    models.JobQueued,
		QueuedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	select {
	case m.queue <- job.ID:
		return m.snapshot(job.ID), nil
	default:
		m.setFailed(job.ID, "ingestion queue is full")
		return nil, fmt.Errorf("ingestion queue is full")
	}
}

// Job returns a copy of the job record, if known.
func (m *IngestManager) Job(id string) (*models.IngestJob, bool) {
	job := m.snapshot(id)
	return job, job != nil
}

func (m *IngestManager) worker() {
	for {
		select {
		case <-m.stopChan:
			logger.Info("Ingestion worker stopped")
			return
		case id := <-m.queue:
			m.run(id)
		}
	}
}

func (m *IngestManager) run(id string) {
	now := time.Now()
	m.update(id, func(j *models.IngestJob) {
		j.State = models.JobRunning
		j.StartedAt = &now
	})

	stats, err := m.engine.IngestData(context.Background(), m.root)

	done := time.Now()
	m.update(id, func(j *models.IngestJob) {
		j.FilesTotal = stats.FilesTotal
		j.FilesFailed = stats.FilesFailed
		j.Entries = stats.Entries
		j.FinishedAt = &done
		if err != nil {
			j.State = models.JobFailed
			j.Error = err.Error()
		} else {
			j.State = models.JobCompleted
		}
	})

	if err != nil {
		logger.Error("Ingestion job failed", "job_id", id, "error", err)
		return
	}
	logger.Info("Ingestion job completed", "job_id", id,
		"files", stats.FilesTotal, "failed_files", stats.FilesFailed, "entries", stats.Entries)
}

func (m *IngestManager) update(id string, fn func(*models.IngestJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}

func (m *IngestManager) setFailed(id, msg string) {
	m.update(id, func(j *models.IngestJob) {
		j.State = models.JobFailed
		j.Error = msg
	})
}

func (m *IngestManager) snapshot(id string) *models.IngestJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
