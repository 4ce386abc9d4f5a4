package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"persona-knowledge-engine/internal/config"
	"persona-knowledge-engine/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Embedder maps a model identifier plus text to fixed-length vectors.
// The knowledge engine treats it as an injected capability; embeddings in
// one corpus are only comparable when produced by the same model.
type Embedder interface {
	// Available reports whether the provider is configured.
	Available() bool

	// Embed returns one embedding vector for the given text.
	Embed(ctx context.Context, model, text string) ([]float64, error)

	// EmbedBatch embeds all texts with a bounded number of in-flight
	// sub-requests. The returned slice is aligned with the input order.
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// GoogleEmbedder generates embeddings through the Google Generative AI API.
// The rate limiter and circuit breaker are owned here, constructed once per
// process, never package-global.
type GoogleEmbedder struct {
	client      *genai.Client
	googleModel string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	concurrency int
}

// NewGoogleEmbedder creates the embedder. With no API key configured the
// embedder is returned non-nil but unavailable, so callers can fail fast
// with a configuration error instead of mid-pipeline.
func NewGoogleEmbedder(cfg *config.Config) (*GoogleEmbedder, error) {
	e := &GoogleEmbedder{
		googleModel: cfg.GoogleEmbeddingsModel,
		concurrency: cfg.EmbeddingConcurrency,
	}
	if e.concurrency < 1 {
		e.concurrency = 3
	}

	if cfg.GeminiAPIKey == "" {
		return e, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	e.client = client

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingsAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	rpm := cfg.EmbeddingRPM
	if rpm < 1 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	// RPM limit with some buffer
	e.rateLimiter = rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst)

	return e, nil
}

// Available reports whether the Gemini API key was configured.
func (e *GoogleEmbedder) Available() bool {
	return e != nil && e.client != nil
}

func (e *GoogleEmbedder) Embed(ctx context.Context, model, text string) ([]float64, error) {
	if !e.Available() {
		return nil, models.ErrEmbeddingUnavailable
	}

	tracer := otel.Tracer("embeddings-client")
	ctx, span := tracer.Start(ctx, "embeddings.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("embeddings.model", model),
		attribute.Int("embeddings.text_length", len(text)),
	)

	if err := e.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("embeddings.rate_limited", true))
		return nil, err
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		em := e.client.EmbeddingModel(e.providerModel(model))
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("embeddings.error", true))
		return nil, err
	}

	values := result.([]float32)
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = float64(v)
	}
	span.SetAttributes(attribute.Int("embeddings.dimensions", len(vec)))
	return vec, nil
}

func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	if !e.Available() {
		return nil, models.ErrEmbeddingUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	tracer := otel.Tracer("embeddings-client")
	ctx, span := tracer.Start(ctx, "embeddings.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("embeddings.model", model),
		attribute.Int("embeddings.batch_size", len(texts)),
		attribute.Int("embeddings.concurrency", e.concurrency),
	)

	// Completion order is not preserved among queued sub-calls; writing by
	// index realigns the vectors with the input texts.
	vectors := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gctx, model, text)
			if err != nil {
				return fmt.Errorf("embedding chunk %d failed: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetAttributes(attribute.Bool("embeddings.error", true))
		return nil, err
	}
	return vectors, nil
}

// providerModel maps a catalog model id onto the Google model this client
// actually calls. Ids from other providers fall through to the configured
// Google model; the requested id is still recorded in document metadata.
func (e *GoogleEmbedder) providerModel(model string) string {
	switch model {
	case "text-embedding-004", "embedding-001":
		return model
	default:
		return e.googleModel
	}
}

// Close releases the underlying API client.
func (e *GoogleEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
