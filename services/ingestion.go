package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"persona-knowledge-engine/internal/ai"
	"persona-knowledge-engine/internal/config"
	"persona-knowledge-engine/internal/logger"
	"persona-knowledge-engine/internal/store"
	"persona-knowledge-engine/internal/telemetry"
	"persona-knowledge-engine/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KnowledgeService orchestrates ingestion, search, update, and deletion of
// persona-scoped knowledge. The embedding capability, store, blob storage,
// cache, and metrics are injected; only the store is required for reads.
type KnowledgeService struct {
	cfg      *config.Config
	store    store.KnowledgeStore
	embedder ai.Embedder
	cache    *EmbeddingCache
	files    *FileStorageManager
	metrics  *telemetry.Metrics
}

func NewKnowledgeService(cfg *config.Config, st store.KnowledgeStore, embedder ai.Embedder,
	cache *EmbeddingCache, files *FileStorageManager, metrics *telemetry.Metrics) *KnowledgeService {
	return &KnowledgeService{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		cache:    cache,
		files:    files,
		metrics:  metrics,
	}
}

// IngestRequest carries one ingestion call. Exactly one of FileData or
// TextContent supplies the content.
type IngestRequest struct {
	PersonaID   string
	Title       string
	FileData    []byte
	FileName    string
	TextContent string
	ContentType string

	EmbeddingModel string
	Strategy       string
	ChunkSize      int
	Overlap        int
	MaxChunks      int

	Dimensions     int
	EncodingFormat string
	Normalize      bool

	EstimateOnly bool
	CreatedBy    string
}

// CostProjection is the estimate-only response: cost figures plus the
// chunk count the fixed-size strategy would produce, with no embedding
// calls and no persistence.
type CostProjection struct {
	EstimatedTokens int                   `json:"estimatedTokens"`
	CostEstimates   []models.CostEstimate `json:"costEstimates"`
	ContentLength   int                   `json:"contentLength"`
	ChunkCount      int                   `json:"chunkCount"`
}

// IngestResult is the outcome of a full ingestion. Estimate is set (and
// the rest zero) when the request asked for estimate-only mode.
type IngestResult struct {
	Estimate        *CostProjection
	Document        *models.KnowledgeDocument
	ChunksCreated   int
	EstimatedTokens int
	ActualCost      float64
}

// Ingest runs the pipeline: extract text, estimate cost, locate pages,
// chunk, embed, persist. The document row is written before any chunk row
// so a reader never observes an orphaned chunk; the inverse (a document
// with zero chunks after a late failure) is a documented degraded state.
func (s *KnowledgeService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.PersonaID) == "" {
		return nil, fmt.Errorf("%w: personaId", models.ErrMissingParameter)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title", models.ErrMissingParameter)
	}
	if len(req.FileData) == 0 && strings.TrimSpace(req.TextContent) == "" {
		return nil, fmt.Errorf("%w: file or textContent", models.ErrMissingParameter)
	}

	s.applyIngestDefaults(&req)

	// Step 1: extract plain text
	contentType := ResolveContentType(req.ContentType, req.FileName)
	var content string
	if len(req.FileData) > 0 {
		extracted, err := ExtractContent(req.FileData, contentType)
		if err != nil {
			return nil, fmt.Errorf("text extraction failed: %w", err)
		}
		content = extracted
	} else {
		content = req.TextContent
		if contentType == models.ContentTypePDF {
			// Pasted text is never PDF regardless of the hint
			contentType = models.ContentTypeText
		}
	}
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrEmptyContent
	}

	// Step 2: cost projection; estimate-only stops here, before any
	// provider call or write
	estimatedTokens := EstimateTokens(content, contentType)
	costEstimates := EstimateCosts(estimatedTokens)
	if req.EstimateOnly {
		return &IngestResult{Estimate: &CostProjection{
			EstimatedTokens: estimatedTokens,
			CostEstimates:   costEstimates,
			ContentLength:   len(content),
			ChunkCount:      ProjectedChunkCount(len(content), req.ChunkSize, req.Overlap),
		}}, nil
	}

	// Fail fast on a configuration problem before doing chunking work
	if s.embedder == nil || !s.embedder.Available() {
		return nil, models.ErrEmbeddingUnavailable
	}

	// Steps 3-4: page markers, then fragments truncated to MaxChunks
	markers := LocatePageMarkers(content)

	strategy := ParseChunkingStrategy(req.Strategy)
	fragments, err := ChunkText(content, strategy, ChunkParams{
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
		MaxChunks: req.MaxChunks,
	})
	if err != nil {
		return nil, err
	}
	if req.MaxChunks > 0 && len(fragments) > req.MaxChunks {
		fragments = fragments[:req.MaxChunks]
	}

	// Step 5: one document-level embedding, then all fragments batched
	// under the concurrency ceiling
	model := s.resolveModel(req.EmbeddingModel)
	docEmbedding, err := s.embedder.Embed(ctx, model, content)
	if err != nil {
		return nil, fmt.Errorf("document embedding failed: %w", err)
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	chunkEmbeddings, err := s.embedder.EmbedBatch(ctx, model, texts)
	if err != nil {
		return nil, fmt.Errorf("chunk embedding failed: %w", err)
	}
	s.metrics.RecordEmbeddingRequests(ctx, model, 1+len(texts))

	if req.Normalize {
		normalizeVector(docEmbedding)
		for _, vec := range chunkEmbeddings {
			normalizeVector(vec)
		}
	}

	var fileURL string
	if len(req.FileData) > 0 && s.files != nil {
		stored, err := s.files.Store(req.FileData, req.FileName, req.PersonaID)
		if err != nil {
			logger.Warn("Failed to persist original upload", "persona_id", req.PersonaID, "error", err)
		} else {
			fileURL = stored
		}
	}

	// Step 6: document first, then its chunks
	actualCost := ActualCostFor(model, estimatedTokens)
	doc := &models.KnowledgeDocument{
		ID:          primitive.NewObjectID(),
		PersonaID:   req.PersonaID,
		Title:       req.Title,
		Content:     content,
		ContentType: contentType,
		FileURL:     fileURL,
		Embedding:   docEmbedding,
		CreatedBy:   req.CreatedBy,
		Metadata: map[string]interface{}{
			"embeddingModel":   model,
			"charLength":       len(content),
			"chunkCount":       len(fragments),
			"estimatedTokens":  estimatedTokens,
			"estimatedCost":    actualCost,
			"chunkingStrategy": string(strategy),
			"chunkSize":        req.ChunkSize,
			"overlap":          req.Overlap,
			"maxChunks":        req.MaxChunks,
			"dimensions":       len(docEmbedding),
			"encodingFormat":   req.EncodingFormat,
			"normalized":       req.Normalize,
		},
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	chunks := make([]models.KnowledgeChunk, len(fragments))
	for i, f := range fragments {
		chunks[i] = models.KnowledgeChunk{
			ID:                  primitive.NewObjectID(),
			KnowledgeDocumentID: doc.ID,
			ChunkIndex:          f.Index,
			Content:             f.Text,
			Embedding:           chunkEmbeddings[i],
			Metadata: models.ChunkMetadata{
				StartPosition: f.StartChar,
				EndPosition:   f.EndChar,
				Length:        len(f.Text),
				Page:          EstimatePage(f.StartChar, len(content), markers),
				ChunkIndex:    f.Index,
			},
		}
	}
	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		// The document exists with zero chunks: treat it as incomplete
		// and eligible for re-ingestion or cleanup.
		return nil, fmt.Errorf("document %s persisted without chunks: %w", doc.ID.Hex(), err)
	}

	s.metrics.RecordIngestion(ctx, req.PersonaID, len(chunks), time.Since(start).Seconds())
	logger.Info("Knowledge document ingested",
		"document_id", doc.ID.Hex(),
		"persona_id", req.PersonaID,
		"strategy", string(strategy),
		"chunks", len(chunks),
		"tokens", estimatedTokens,
	)

	return &IngestResult{
		Document:        doc,
		ChunksCreated:   len(chunks),
		EstimatedTokens: estimatedTokens,
		ActualCost:      actualCost,
	}, nil
}

// UpdateDocument edits title and/or content. A content change regenerates
// the document embedding synchronously; a stale embedding is never left in
// place.
func (s *KnowledgeService) UpdateDocument(ctx context.Context, id primitive.ObjectID, title, content *string) (*models.KnowledgeDocument, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	update := store.DocumentUpdate{Title: title}
	if content != nil && *content != doc.Content {
		if strings.TrimSpace(*content) == "" {
			return nil, models.ErrEmptyContent
		}
		if s.embedder == nil || !s.embedder.Available() {
			return nil, models.ErrEmbeddingUnavailable
		}

		model := s.resolveModel(metadataString(doc.Metadata, "embeddingModel"))
		embedding, err := s.embedder.Embed(ctx, model, *content)
		if err != nil {
			return nil, fmt.Errorf("embedding regeneration failed: %w", err)
		}

		metadata := make(map[string]interface{}, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata["charLength"] = len(*content)
		metadata["estimatedTokens"] = EstimateTokens(*content, doc.ContentType)
		metadata["embeddingModel"] = model
		metadata["dimensions"] = len(embedding)

		update.Content = content
		update.Embedding = embedding
		update.Metadata = metadata
	}

	if err := s.store.UpdateDocument(ctx, id, update); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, id)
}

// DeleteDocument removes a document and cascades to all its chunks.
func (s *KnowledgeService) DeleteDocument(ctx context.Context, id primitive.ObjectID) error {
	return s.store.DeleteDocument(ctx, id)
}

// ListDocuments returns the persona's documents with their stored chunk
// counts, so callers can spot incomplete (zero-chunk) ingestions.
func (s *KnowledgeService) ListDocuments(ctx context.Context, personaID string) ([]models.KnowledgeDocument, map[string]int64, error) {
	if strings.TrimSpace(personaID) == "" {
		return nil, nil, fmt.Errorf("%w: personaId", models.ErrMissingParameter)
	}
	docs, err := s.store.ListDocuments(ctx, personaID)
	if err != nil {
		return nil, nil, err
	}
	counts := make(map[string]int64, len(docs))
	for _, d := range docs {
		n, err := s.store.CountChunks(ctx, d.ID)
		if err != nil {
			return nil, nil, err
		}
		counts[d.ID.Hex()] = n
	}
	return docs, counts, nil
}

func (s *KnowledgeService) applyIngestDefaults(req *IngestRequest) {
	if req.ChunkSize <= 0 {
		req.ChunkSize = s.cfg.ChunkSize
	}
	if req.Overlap < 0 {
		req.Overlap = s.cfg.ChunkOverlap
	}
	if req.MaxChunks <= 0 {
		req.MaxChunks = s.cfg.MaxChunks
	}
	if req.EncodingFormat == "" {
		req.EncodingFormat = "float"
	}
}

// resolveModel falls back to the default catalog model for empty or
// unrecognized model identifiers.
func (s *KnowledgeService) resolveModel(requested string) string {
	if KnownEmbeddingModel(requested) {
		return requested
	}
	return s.cfg.DefaultEmbeddingModel
}

func normalizeVector(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}

func metadataString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
