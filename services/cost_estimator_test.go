package services

import (
	"math"
	"strings"
	"testing"

	"persona-knowledge-engine/models"
)

func TestEstimateTokens(t *testing.T) {
	text := strings.Repeat("a", 40000)

	if got := EstimateTokens(text, models.ContentTypeText); got != 10000 {
		t.Errorf("plain text tokens = %d, want 10000", got)
	}
	if got := EstimateTokens(text, models.ContentTypePDF); got != 12000 {
		t.Errorf("pdf tokens = %d, want 12000", got)
	}
	if got := EstimateTokens(text, models.ContentTypeMarkdown); got != 11000 {
		t.Errorf("markdown tokens = %d, want 11000", got)
	}
	if got := EstimateTokens("", models.ContentTypeText); got != 0 {
		t.Errorf("empty content tokens = %d, want 0", got)
	}
	if got := EstimateTokens("abc", models.ContentTypeText); got != 1 {
		t.Errorf("partial token rounds up, got %d", got)
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	prev := 0
	for _, n := range []int{1, 10, 100, 1000, 50000} {
		tokens := EstimateTokens(strings.Repeat("x", n), models.ContentTypeText)
		if tokens < prev {
			t.Fatalf("token estimate decreased: %d chars -> %d tokens (prev %d)", n, tokens, prev)
		}
		prev = tokens
	}
}

func TestEstimateCostsCoversCatalog(t *testing.T) {
	estimates := EstimateCosts(10000)
	if len(estimates) != len(EmbeddingModelCatalog) {
		t.Fatalf("expected %d estimates, got %d", len(EmbeddingModelCatalog), len(estimates))
	}
	for i, est := range estimates {
		m := EmbeddingModelCatalog[i]
		if est.ModelID != m.ID {
			t.Errorf("estimate %d model = %s, want %s", i, est.ModelID, m.ID)
		}
		if est.EstimatedTokens != 10000 {
			t.Errorf("estimate %d tokens = %d", i, est.EstimatedTokens)
		}
		want := 10000 * m.CostPerMillion / 1_000_000
		if math.Abs(est.EstimatedCost-want) > 1e-12 {
			t.Errorf("estimate %d cost = %g, want %g", i, est.EstimatedCost, want)
		}
		if est.ProcessingTime == "" {
			t.Errorf("estimate %d missing processing time", i)
		}
	}
}

func TestActualCostFor(t *testing.T) {
	if got := ActualCostFor("text-embedding-3-small", 1_000_000); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("small model cost = %g, want 0.02", got)
	}
	if got := ActualCostFor("text-embedding-3-large", 500_000); math.Abs(got-0.065) > 1e-12 {
		t.Errorf("large model cost = %g, want 0.065", got)
	}
	if got := ActualCostFor("no-such-model", 1_000_000); got != 0 {
		t.Errorf("unknown model cost = %g, want 0", got)
	}
}

func TestKnownEmbeddingModel(t *testing.T) {
	if !KnownEmbeddingModel("text-embedding-004") {
		t.Error("text-embedding-004 should be in the catalog")
	}
	if KnownEmbeddingModel("gpt-4") {
		t.Error("gpt-4 should not be in the catalog")
	}
}

func TestProcessingTimeBuckets(t *testing.T) {
	cases := map[int]string{
		500:     "~30 seconds",
		20_000:  "~2 minutes",
		60_000:  "~5 minutes",
		250_000: "~10+ minutes",
	}
	for tokens, want := range cases {
		if got := processingTimeBucket(tokens); got != want {
			t.Errorf("bucket(%d) = %q, want %q", tokens, got, want)
		}
	}
}
