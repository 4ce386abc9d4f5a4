package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the knowledge engine's instrument set
type Metrics struct {
	DocumentsIngested metric.Int64Counter
	ChunksCreated     metric.Int64Counter
	EmbeddingRequests metric.Int64Counter
	SearchRequests    metric.Int64Counter
	SearchDuration    metric.Float64Histogram
	IngestionDuration metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("persona-knowledge-engine")

	documentsIngested, err := meter.Int64Counter(
		"knowledge.documents.ingested",
		metric.WithDescription("Total knowledge documents ingested"),
	)
	if err != nil {
		return nil, err
	}

	chunksCreated, err := meter.Int64Counter(
		"knowledge.chunks.created",
		metric.WithDescription("Total knowledge chunks created"),
	)
	if err != nil {
		return nil, err
	}

	embeddingRequests, err := meter.Int64Counter(
		"embedding.requests.total",
		metric.WithDescription("Total embedding provider requests"),
	)
	if err != nil {
		return nil, err
	}

	searchRequests, err := meter.Int64Counter(
		"knowledge.search.requests",
		metric.WithDescription("Total similarity search requests"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"knowledge.search.duration",
		metric.WithDescription("Similarity search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"knowledge.ingestion.duration",
		metric.WithDescription("Ingestion pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		DocumentsIngested: documentsIngested,
		ChunksCreated:     chunksCreated,
		EmbeddingRequests: embeddingRequests,
		SearchRequests:    searchRequests,
		SearchDuration:    searchDuration,
		IngestionDuration: ingestionDuration,
	}, nil
}

// RecordIngestion records one completed ingestion
func (m *Metrics) RecordIngestion(ctx context.Context, personaID string, chunks int, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("persona_id", personaID))
	m.DocumentsIngested.Add(ctx, 1, attrs)
	m.ChunksCreated.Add(ctx, int64(chunks), attrs)
	m.IngestionDuration.Record(ctx, seconds, attrs)
}

// RecordEmbeddingRequests counts provider calls issued for one operation
func (m *Metrics) RecordEmbeddingRequests(ctx context.Context, model string, n int) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.Add(ctx, int64(n), metric.WithAttributes(attribute.String("model", model)))
}

// RecordSearch records one completed similarity search
func (m *Metrics) RecordSearch(ctx context.Context, searchType string, results int, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("search_type", searchType),
		attribute.Int("results", results),
	)
	m.SearchRequests.Add(ctx, 1, attrs)
	m.SearchDuration.Record(ctx, seconds, attrs)
}
