package services

import (
	"context"
	"errors"

	"persona-knowledge-engine/internal/config"
	"persona-knowledge-engine/internal/store"
)

// fakeEmbedder returns canned vectors by exact text, falling back to
// defaultVec, and counts provider calls.
type fakeEmbedder struct {
	available  bool
	vectors    map[string][]float64
	defaultVec []float64
	embedCalls int
	batchCalls int
}

func (f *fakeEmbedder) Available() bool { return f.available }

func (f *fakeEmbedder) Embed(_ context.Context, _, text string) ([]float64, error) {
	f.embedCalls++
	if !f.available {
		return nil, errors.New("embedder not configured")
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, _ string, texts []string) ([][]float64, error) {
	f.batchCalls++
	if !f.available {
		return nil, errors.New("embedder not configured")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedder) vectorFor(text string) []float64 {
	if v, ok := f.vectors[text]; ok {
		return append([]float64(nil), v...)
	}
	return append([]float64(nil), f.defaultVec...)
}

func testConfig() *config.Config {
	return &config.Config{
		ChunkSize:             1000,
		ChunkOverlap:          200,
		MaxChunks:             50,
		SearchLimit:           5,
		SearchThreshold:       0.7,
		DefaultEmbeddingModel: "text-embedding-3-small",
	}
}

func newTestService(st store.KnowledgeStore, emb *fakeEmbedder) *KnowledgeService {
	return NewKnowledgeService(testConfig(), st, emb, NewEmbeddingCache(nil, 0), nil, nil)
}
