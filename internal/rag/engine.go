// Package rag implements the retrieval-augmented generation core: chunking
// and indexing of the local knowledge base, and query-time retrieval of
// supporting context.
package rag

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dextora-llm-service/internal/ai"
	"dextora-llm-service/internal/config"
	"dextora-llm-service/internal/logger"
	"dextora-llm-service/internal/vectorindex"
	"dextora-llm-service/models"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Engine owns the ingestion pipeline and the retriever. It is safe to run
// one ingestion concurrently with any number of retrievals; the index
// handles reader/writer interleaving.
type Engine struct {
	cfg      *config.Config
	embedder ai.Embedder
	index    *vectorindex.Store
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	FilesTotal  int
	FilesFailed int
	Entries     int
}

func NewEngine(cfg *config.Config, embedder ai.Embedder, index *vectorindex.Store) *Engine {
	return &Engine{cfg: cfg, embedder: embedder, index: index}
}

// Index exposes the underlying vector index.
func (e *Engine) Index() *vectorindex.Store {
	return e.index
}

// IngestData discovers prose files (.txt, .md, .pdf) and structured Q&A
// record files (.csv, .xlsx) under root and indexes them. Individual file
// failures are logged and skipped; the run itself only fails when the root
// cannot be walked. Entries are always appended under fresh ids: the
// pipeline has no update-by-source semantics, so re-ingesting identical
// content grows the index.
func (e *Engine) IngestData(ctx context.Context, root string) (IngestStats, error) {
	var stats IngestStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var ingest func() (int, error)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			ingest = func() (int, error) { return e.ingestProseFile(ctx, path) }
		case ".pdf":
			ingest = func() (int, error) { return e.ingestPDFFile(ctx, path) }
		case ".csv":
			ingest = func() (int, error) { return e.ingestCSVFile(ctx, path) }
		case ".xlsx":
			ingest = func() (int, error) { return e.ingestXLSXFile(ctx, path) }
		default:
			return nil
		}

		stats.FilesTotal++
		entries, ferr := ingest()
		if ferr != nil {
			stats.FilesFailed++
			logger.Error("Failed to ingest file", "path", path, "error", ferr)
			return nil // best-effort: keep going with remaining files
		}
		stats.Entries += entries
		logger.Info("Ingested file", "path", path, "entries", entries)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking data directory %s: %w", root, err)
	}

	return stats, nil
}

// Retrieve embeds the query and returns the text of the top-k most similar
// entries, best first. Failures degrade to an empty result: callers treat
// missing context as "no grounding available" rather than an error.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) []string {
	if k <= 0 {
		k = 1
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		logger.Warn("Query embedding failed", "error", err)
		return []string{}
	}

	results, err := e.index.Query(ctx, vectors[0], k)
	if err != nil {
		logger.Warn("Index query failed", "error", err)
		return []string{}
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return texts
}

func (e *Engine) ingestProseFile(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	return e.indexProse(ctx, path, string(content))
}

func (e *Engine) ingestPDFFile(ctx context.Context, path string) (int, error) {
	text, err := extractPDFText(path)
	if err != nil {
		return 0, fmt.Errorf("extracting pdf text: %w", err)
	}
	return e.indexProse(ctx, path, text)
}

// indexProse chunks full document text and upserts one entry per chunk.
func (e *Engine) indexProse(ctx context.Context, path, text string) (int, error) {
	chunks, err := ChunkText(text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := e.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	entries := make([]models.KnowledgeEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = models.KnowledgeEntry{
			ID:     uuid.NewString(),
			Text:   chunk,
			Source: path,
			Kind:   models.KindProse,
			Vector: vectors[i],
		}
	}

	if err := e.index.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("upserting entries: %w", err)
	}
	return len(entries), nil
}

// qaRecord is one validated row of a structured record file.
type qaRecord struct {
	Question string
	Answer   string
}

func (e *Engine) ingestCSVFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parsing csv: %w", err)
	}

	records, err := validateRecords(rows)
	if err != nil {
		return 0, err
	}
	return e.indexRecords(ctx, path, records)
}

func (e *Engine) ingestXLSXFile(ctx context.Context, path string) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return 0, fmt.Errorf("reading sheet: %w", err)
	}

	records, err := validateRecords(rows)
	if err != nil {
		return 0, err
	}
	return e.indexRecords(ctx, path, records)
}

// validateRecords applies the record schema: a header row naming the
// "Question" and "Answer" columns (exact match), then rows with both fields
// non-empty after trimming. Rows failing validation are skipped, not fatal.
func validateRecords(rows [][]string) ([]qaRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty record file")
	}

	qCol, aCol := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case "Question":
			qCol = i
		case "Answer":
			aCol = i
		}
	}
	if qCol < 0 || aCol < 0 {
		return nil, fmt.Errorf("header must name Question and Answer columns")
	}

	records := make([]qaRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= qCol || len(row) <= aCol {
			continue
		}
		question := strings.TrimSpace(row[qCol])
		answer := strings.TrimSpace(row[aCol])
		if question == "" || answer == "" {
			continue
		}
		records = append(records, qaRecord{Question: question, Answer: answer})
	}
	return records, nil
}

// indexRecords synthesizes one "Q: ...\nA: ..." document per record and
// batch-indexes them.
func (e *Engine) indexRecords(ctx context.Context, path string, records []qaRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	documents := make([]string, len(records))
	for i, r := range records {
		documents[i] = fmt.Sprintf("Q: %s\nA: %s", r.Question, r.Answer)
	}

	vectors, err := e.embedder.Embed(ctx, documents)
	if err != nil {
		return 0, fmt.Errorf("embedding records: %w", err)
	}

	entries := make([]models.KnowledgeEntry, len(documents))
	for i, doc := range documents {
		entries[i] = models.KnowledgeEntry{
			ID:     uuid.NewString(),
			Text:   doc,
			Source: path,
			Kind:   models.KindQAPair,
			Vector: vectors[i],
		}
	}

	if err := e.index.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("upserting entries: %w", err)
	}
	return len(entries), nil
}

// extractPDFText pulls plain text from every readable page.
func extractPDFText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "path", path, "page", i, "error", err)
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	if textBuilder.Len() == 0 {
		return "", fmt.Errorf("no extractable text")
	}
	return textBuilder.String(), nil
}
