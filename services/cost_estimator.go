package services

import (
	"math"

	"persona-knowledge-engine/models"
)

// EmbeddingModelInfo is one candidate from the fixed embedding-model
// catalog, priced per million tokens.
type EmbeddingModelInfo struct {
	ID             string
	Name           string
	CostPerMillion float64
}

// EmbeddingModelCatalog is the closed set of embedding models offered to
// callers for cost projection. Stored embeddings record which id produced
// them, since vectors from different models are not comparable.
var EmbeddingModelCatalog = []EmbeddingModelInfo{
	{ID: "text-embedding-3-small", Name: "Text Embedding 3 Small", CostPerMillion: 0.02},
	{ID: "text-embedding-3-large", Name: "Text Embedding 3 Large", CostPerMillion: 0.13},
	{ID: "text-embedding-004", Name: "Gemini Text Embedding 004", CostPerMillion: 0.025},
}

// KnownEmbeddingModel reports whether the id belongs to the catalog.
func KnownEmbeddingModel(id string) bool {
	for _, m := range EmbeddingModelCatalog {
		if m.ID == id {
			return true
		}
	}
	return false
}

// EstimateTokens projects a token count from content length using a
// 4-characters-per-token heuristic, inflated for formats that carry
// formatting overhead.
func EstimateTokens(content, contentType string) int {
	base := math.Ceil(float64(len(content)) / 4)

	multiplier := 1.0
	switch contentType {
	case models.ContentTypePDF:
		multiplier = 1.2
	case models.ContentTypeMarkdown:
		multiplier = 1.1
	}

	return int(math.Ceil(base * multiplier))
}

// EstimateCosts returns the projected cost of the given token count for
// every model in the catalog.
func EstimateCosts(tokenCount int) []models.CostEstimate {
	estimates := make([]models.CostEstimate, 0, len(EmbeddingModelCatalog))
	for _, m := range EmbeddingModelCatalog {
		costPerToken := m.CostPerMillion / 1_000_000
		estimates = append(estimates, models.CostEstimate{
			ModelID:         m.ID,
			ModelName:       m.Name,
			CostPerToken:    costPerToken,
			EstimatedTokens: tokenCount,
			EstimatedCost:   float64(tokenCount) * costPerToken,
			ProcessingTime:  processingTimeBucket(tokenCount),
		})
	}
	return estimates
}

// ActualCostFor looks up the cost of the chosen model from the estimate
// table; unknown models cost 0.
func ActualCostFor(modelID string, tokenCount int) float64 {
	for _, m := range EmbeddingModelCatalog {
		if m.ID == modelID {
			return float64(tokenCount) * m.CostPerMillion / 1_000_000
		}
	}
	return 0
}

// processingTimeBucket gives a coarse, purely informational duration hint.
func processingTimeBucket(tokenCount int) string {
	switch {
	case tokenCount < 10_000:
		return "~30 seconds"
	case tokenCount < 50_000:
		return "~2 minutes"
	case tokenCount < 100_000:
		return "~5 minutes"
	default:
		return "~10+ minutes"
	}
}
