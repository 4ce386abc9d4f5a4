package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"persona-knowledge-engine/internal/logger"
	"persona-knowledge-engine/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Search types: score whole documents or individual chunks.
const (
	SearchTypeDocuments = "documents"
	SearchTypeChunks    = "chunks"
)

// SearchRequest is one similarity search call. Zero Limit and nil
// Threshold take the configured defaults.
type SearchRequest struct {
	Query          string
	PersonaID      string
	SearchType     string
	EmbeddingModel string
	Limit          int
	Threshold      *float64
}

// SearchResponse echoes the effective parameters alongside the ranked
// results.
type SearchResponse struct {
	Results        []models.SearchResult `json:"results"`
	Query          string                `json:"query"`
	SearchType     string                `json:"searchType"`
	EmbeddingModel string                `json:"embeddingModel"`
	TotalResults   int                   `json:"totalResults"`
	Threshold      float64               `json:"threshold"`
}

// Search embeds the query and linearly scans the persona's stored
// embeddings by cosine similarity. This is a full scan, not an ANN index:
// an explicit scale assumption of hundreds to low-thousands of vectors per
// persona.
func (s *KnowledgeService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	tracer := otel.Tracer("knowledge-search")
	ctx, span := tracer.Start(ctx, "knowledge.search")
	defer span.End()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query", models.ErrMissingParameter)
	}
	if strings.TrimSpace(req.PersonaID) == "" {
		return nil, fmt.Errorf("%w: personaId", models.ErrMissingParameter)
	}
	if s.embedder == nil || !s.embedder.Available() {
		return nil, models.ErrEmbeddingUnavailable
	}

	searchType := req.SearchType
	if searchType != SearchTypeDocuments {
		searchType = SearchTypeChunks
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	threshold := s.cfg.SearchThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	model := s.resolveModel(req.EmbeddingModel)

	span.SetAttributes(
		attribute.String("search.persona_id", req.PersonaID),
		attribute.String("search.type", searchType),
		attribute.String("search.model", model),
		attribute.Float64("search.threshold", threshold),
		attribute.Int("search.limit", limit),
	)

	queryEmbedding, err := s.embedQuery(ctx, model, req.Query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	var candidates []models.SearchResult
	switch searchType {
	case SearchTypeDocuments:
		candidates, err = s.scoreDocuments(ctx, req.PersonaID, queryEmbedding)
	default:
		candidates, err = s.scoreChunks(ctx, req.PersonaID, queryEmbedding)
	}
	if err != nil {
		return nil, err
	}

	// Threshold filter, then stable descending sort so ties keep storage
	// order, then limit
	results := candidates[:0]
	for _, c := range candidates {
		if c.Similarity >= threshold {
			results = append(results, c)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	s.metrics.RecordSearch(ctx, searchType, len(results), time.Since(start).Seconds())

	return &SearchResponse{
		Results:        results,
		Query:          req.Query,
		SearchType:     searchType,
		EmbeddingModel: model,
		TotalResults:   len(results),
		Threshold:      threshold,
	}, nil
}

func (s *KnowledgeService) embedQuery(ctx context.Context, model, query string) ([]float64, error) {
	if vec, ok := s.cache.Get(ctx, model, query); ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, model, query)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEmbeddingRequests(ctx, model, 1)
	s.cache.Set(ctx, model, query, vec)
	return vec, nil
}

func (s *KnowledgeService) scoreDocuments(ctx context.Context, personaID string, query []float64) ([]models.SearchResult, error) {
	docs, err := s.store.ListDocuments(ctx, personaID)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			logger.Warn("Skipping document without embedding",
				"document_id", doc.ID.Hex(), "persona_id", personaID)
			continue
		}
		similarity, err := CosineSimilarity(query, doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("document %s (model %q): %w",
				doc.ID.Hex(), metadataString(doc.Metadata, "embeddingModel"), err)
		}
		results = append(results, models.SearchResult{
			ID:          doc.ID.Hex(),
			DocumentID:  doc.ID.Hex(),
			Content:     doc.Content,
			Similarity:  similarity,
			SourceTitle: doc.Title,
			Metadata:    doc.Metadata,
		})
	}
	return results, nil
}

func (s *KnowledgeService) scoreChunks(ctx context.Context, personaID string, query []float64) ([]models.SearchResult, error) {
	chunks, err := s.store.ListChunks(ctx, personaID)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(chunks))
	for _, entry := range chunks {
		ch := entry.Chunk
		if len(ch.Embedding) == 0 {
			logger.Warn("Skipping chunk without embedding",
				"chunk_id", ch.ID.Hex(), "document_id", ch.KnowledgeDocumentID.Hex())
			continue
		}
		similarity, err := CosineSimilarity(query, ch.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ch.ID.Hex(), err)
		}
		index := ch.ChunkIndex
		results = append(results, models.SearchResult{
			ID:          ch.ID.Hex(),
			DocumentID:  ch.KnowledgeDocumentID.Hex(),
			Content:     ch.Content,
			Similarity:  similarity,
			SourceTitle: entry.DocumentTitle,
			ChunkIndex:  &index,
		})
	}
	return results, nil
}

// CosineSimilarity is dot(a,b)/(|a|*|b|), 0 when either norm is zero.
// Unequal lengths mean the vectors came from different embedding models
// and cannot be compared.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", models.ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
