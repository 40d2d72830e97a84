package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dextora-llm-service/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id, text string, vector []float32) models.KnowledgeEntry {
	return models.KnowledgeEntry{
		ID:     id,
		Text:   text,
		Source: "data/company/about.txt",
		Kind:   models.KindProse,
		Vector: vector,
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	s := openTestStore(t)

	results, err := s.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertAndQueryOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []models.KnowledgeEntry{
		entry("a", "exact match", []float32{1, 0, 0}),
		entry("b", "orthogonal", []float32{0, 1, 0}),
		entry("c", "close match", []float32{0.9, 0.1, 0}),
	})
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact match", results[0].Text)
	assert.Equal(t, "close match", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestQueryKLargerThanIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []models.KnowledgeEntry{
		entry("a", "only entry", []float32{1, 0, 0}),
	}))

	results, err := s.Query(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestUpsertOverwritesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []models.KnowledgeEntry{
		entry("a", "old text", []float32{1, 0, 0}),
	}))
	require.NoError(t, s.Upsert(ctx, []models.KnowledgeEntry{
		entry("a", "new text", []float32{0, 1, 0}),
	}))

	n, err := s.Count(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.Query(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new text", results[0].Text)
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []models.KnowledgeEntry{
		entry("a", "three dims", []float32{1, 0, 0}),
	}))

	err := s.Upsert(ctx, []models.KnowledgeEntry{
		entry("b", "two dims", []float32{1, 0}),
	})
	assert.Error(t, err)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []models.KnowledgeEntry{
		entry("a", "durable entry", []float32{1, 0, 0}),
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "durable entry", results[0].Text)

	// dimension invariant survives restart too
	err = reopened.Upsert(ctx, []models.KnowledgeEntry{
		entry("b", "wrong dims", []float32{1, 0, 0, 0}),
	})
	assert.Error(t, err)
}

func TestCountFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []models.KnowledgeEntry{
		{ID: "p1", Text: "prose", Source: "a.txt", Kind: models.KindProse, Vector: []float32{1, 0}},
		{ID: "q1", Text: "Q: x\nA: y", Source: "faq.csv", Kind: models.KindQAPair, Vector: []float32{0, 1}},
		{ID: "q2", Text: "Q: z\nA: w", Source: "faq.csv", Kind: models.KindQAPair, Vector: []float32{1, 1}},
	}))

	total, err := s.Count(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	qa, err := s.Count(ctx, "faq.csv", models.KindQAPair)
	require.NoError(t, err)
	assert.Equal(t, 2, qa)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}
	assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))
}
