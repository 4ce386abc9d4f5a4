package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"persona-knowledge-engine/internal/store"
	"persona-knowledge-engine/models"
)

func TestIngestValidation(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{available: true, defaultVec: []float64{1}})
	ctx := context.Background()

	cases := []IngestRequest{
		{Title: "t", TextContent: "body"},
		{PersonaID: "p", TextContent: "body"},
		{PersonaID: "p", Title: "t"},
	}
	for i, req := range cases {
		if _, err := svc.Ingest(ctx, req); !errors.Is(err, models.ErrMissingParameter) {
			t.Errorf("case %d: expected ErrMissingParameter, got %v", i, err)
		}
	}
}

func TestIngestRejectsWhitespaceContent(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{available: true, defaultVec: []float64{1}})
	_, err := svc.Ingest(context.Background(), IngestRequest{
		PersonaID: "p", Title: "t", TextContent: "   \n\t  ",
	})
	if !errors.Is(err, models.ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter for blank text, got %v", err)
	}
}

func TestIngestEstimateOnlyMakesNoProviderCallsAndNoWrites(t *testing.T) {
	st := store.NewMemoryStore()
	emb := &fakeEmbedder{available: true, defaultVec: []float64{1}}
	svc := newTestService(st, emb)

	result, err := svc.Ingest(context.Background(), IngestRequest{
		PersonaID:    "p",
		Title:        "Estimate",
		TextContent:  strings.Repeat("a", 40000),
		ContentType:  models.ContentTypeText,
		ChunkSize:    1000,
		Overlap:      200,
		EstimateOnly: true,
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	if result.Estimate == nil {
		t.Fatal("expected an estimate result")
	}
	if result.Document != nil || result.ChunksCreated != 0 {
		t.Fatal("estimate-only must not produce a document")
	}
	if result.Estimate.EstimatedTokens != 10000 {
		t.Errorf("estimated tokens = %d, want 10000", result.Estimate.EstimatedTokens)
	}
	if result.Estimate.ContentLength != 40000 {
		t.Errorf("content length = %d", result.Estimate.ContentLength)
	}
	if result.Estimate.ChunkCount != 50 {
		t.Errorf("projected chunks = %d, want 50 for 40000/1000/200", result.Estimate.ChunkCount)
	}
	if len(result.Estimate.CostEstimates) != len(EmbeddingModelCatalog) {
		t.Errorf("cost estimates = %d entries", len(result.Estimate.CostEstimates))
	}

	if emb.embedCalls != 0 || emb.batchCalls != 0 {
		t.Errorf("estimate-only hit the provider: %d embed, %d batch", emb.embedCalls, emb.batchCalls)
	}
	docs, err := st.ListDocuments(context.Background(), "p")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("estimate-only persisted %d documents", len(docs))
	}
}

func TestIngestEstimateOnlyWorksWithoutEmbedder(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{available: false})
	result, err := svc.Ingest(context.Background(), IngestRequest{
		PersonaID: "p", Title: "t", TextContent: "some text", EstimateOnly: true,
	})
	if err != nil {
		t.Fatalf("estimate-only must not require the provider: %v", err)
	}
	if result.Estimate == nil {
		t.Fatal("expected an estimate")
	}
}

func TestIngestFailsFastWhenEmbedderUnavailable(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: false})

	_, err := svc.Ingest(context.Background(), IngestRequest{
		PersonaID: "p", Title: "t", TextContent: "some text",
	})
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	docs, _ := st.ListDocuments(context.Background(), "p")
	if len(docs) != 0 {
		t.Errorf("failed ingest persisted %d documents", len(docs))
	}
}

func TestIngestPersistsDocumentAndChunks(t *testing.T) {
	st := store.NewMemoryStore()
	emb := &fakeEmbedder{available: true, defaultVec: []float64{1, 0, 0}}
	svc := newTestService(st, emb)
	ctx := context.Background()

	text := strings.Repeat("a", 2500)
	result, err := svc.Ingest(ctx, IngestRequest{
		PersonaID:   "persona-1",
		Title:       "Handbook",
		TextContent: text,
		ContentType: models.ContentTypeText,
		Strategy:    "fixed-size",
		ChunkSize:   1000,
		Overlap:     200,
		CreatedBy:   "user-7",
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	if result.ChunksCreated != 4 {
		t.Fatalf("chunks created = %d, want 4", result.ChunksCreated)
	}
	if result.Document == nil || result.Document.ID.IsZero() {
		t.Fatal("document missing or without id")
	}
	if result.Document.CreatedBy != "user-7" {
		t.Errorf("createdBy = %q", result.Document.CreatedBy)
	}
	if result.EstimatedTokens != 625 {
		t.Errorf("estimated tokens = %d, want 625", result.EstimatedTokens)
	}
	if result.ActualCost <= 0 {
		t.Errorf("actual cost = %g, want > 0", result.ActualCost)
	}

	doc, err := st.GetDocument(ctx, result.Document.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(doc.Embedding) == 0 {
		t.Error("document embedding not stored")
	}
	md := doc.Metadata
	if md["embeddingModel"] != "text-embedding-3-small" {
		t.Errorf("metadata embeddingModel = %v", md["embeddingModel"])
	}
	if md["chunkCount"] != 4 {
		t.Errorf("metadata chunkCount = %v", md["chunkCount"])
	}
	if md["chunkingStrategy"] != "fixed-size" {
		t.Errorf("metadata chunkingStrategy = %v", md["chunkingStrategy"])
	}
	if md["charLength"] != 2500 {
		t.Errorf("metadata charLength = %v", md["charLength"])
	}

	chunks, err := st.ListChunksByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("stored chunks = %d", len(chunks))
	}
	wantStarts := []int{0, 800, 1600, 2400}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d index = %d", i, ch.ChunkIndex)
		}
		if ch.Metadata.StartPosition != wantStarts[i] {
			t.Errorf("chunk %d start = %d, want %d", i, ch.Metadata.StartPosition, wantStarts[i])
		}
		if ch.Metadata.Length != len(ch.Content) {
			t.Errorf("chunk %d length metadata = %d, content %d", i, ch.Metadata.Length, len(ch.Content))
		}
		if len(ch.Embedding) == 0 {
			t.Errorf("chunk %d missing embedding", i)
		}
	}

	if emb.embedCalls != 1 {
		t.Errorf("document embed calls = %d, want 1", emb.embedCalls)
	}
	if emb.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", emb.batchCalls)
	}
}

func TestIngestAssignsPagesFromMarkers(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: true, defaultVec: []float64{1}})
	ctx := context.Background()

	text := "Opening paragraph of the work.\n1\n" +
		strings.Repeat("middle prose ", 30) + "\n2\nclosing words of the text."
	result, err := svc.Ingest(ctx, IngestRequest{
		PersonaID: "p", Title: "Paged", TextContent: text, ChunkSize: 150, Overlap: 0,
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}

	chunks, err := st.ListChunksByDocument(ctx, result.Document.ID)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if chunks[0].Metadata.Page == nil || *chunks[0].Metadata.Page != 1 {
		t.Errorf("first chunk page = %v, want 1", chunks[0].Metadata.Page)
	}
	last := chunks[len(chunks)-1]
	if last.Metadata.Page == nil || *last.Metadata.Page != 2 {
		t.Errorf("last chunk page = %v, want 2", last.Metadata.Page)
	}
}

func TestIngestWithoutMarkersLeavesPageNil(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: true, defaultVec: []float64{1}})
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{
		PersonaID: "p", Title: "Flat", TextContent: "prose without any page numbers at all",
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	chunks, _ := st.ListChunksByDocument(ctx, result.Document.ID)
	for i, ch := range chunks {
		if ch.Metadata.Page != nil {
			t.Errorf("chunk %d page = %d, want nil", i, *ch.Metadata.Page)
		}
	}
}

func TestIngestTruncatesToMaxChunks(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: true, defaultVec: []float64{1}})

	result, err := svc.Ingest(context.Background(), IngestRequest{
		PersonaID:   "p",
		Title:       "Big",
		TextContent: strings.Repeat("z", 5000),
		ChunkSize:   100,
		Overlap:     0,
		MaxChunks:   10,
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	if result.ChunksCreated != 10 {
		t.Fatalf("chunks created = %d, want 10", result.ChunksCreated)
	}
}

func TestIngestNormalizesEmbeddings(t *testing.T) {
	st := store.NewMemoryStore()
	emb := &fakeEmbedder{available: true, defaultVec: []float64{3, 4, 0}}
	svc := newTestService(st, emb)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{
		PersonaID: "p", Title: "Unit", TextContent: "short body", Normalize: true,
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	doc, _ := st.GetDocument(ctx, result.Document.ID)
	var norm float64
	for _, v := range doc.Embedding {
		norm += v * v
	}
	if norm < 0.999 || norm > 1.001 {
		t.Errorf("document embedding norm^2 = %g, want 1", norm)
	}
	if doc.Metadata["normalized"] != true {
		t.Errorf("metadata normalized = %v", doc.Metadata["normalized"])
	}
}

func TestUpdateDocumentTitleOnlyKeepsEmbedding(t *testing.T) {
	st := store.NewMemoryStore()
	emb := &fakeEmbedder{available: true, defaultVec: []float64{1, 2, 3}}
	svc := newTestService(st, emb)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{PersonaID: "p", Title: "Old", TextContent: "stable body"})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	callsAfterIngest := emb.embedCalls

	title := "New Title"
	doc, err := svc.UpdateDocument(ctx, result.Document.ID, &title, nil)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if doc.Title != "New Title" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.Content != "stable body" {
		t.Errorf("content changed: %q", doc.Content)
	}
	if emb.embedCalls != callsAfterIngest {
		t.Errorf("title-only update re-embedded: %d calls", emb.embedCalls-callsAfterIngest)
	}
}

func TestUpdateDocumentContentReembeds(t *testing.T) {
	st := store.NewMemoryStore()
	emb := &fakeEmbedder{
		available:  true,
		defaultVec: []float64{1, 0},
		vectors:    map[string][]float64{"revised body": {0, 1}},
	}
	svc := newTestService(st, emb)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{PersonaID: "p", Title: "Doc", TextContent: "original body"})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}

	content := "revised body"
	doc, err := svc.UpdateDocument(ctx, result.Document.ID, nil, &content)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if doc.Content != "revised body" {
		t.Errorf("content = %q", doc.Content)
	}
	if len(doc.Embedding) != 2 || doc.Embedding[0] != 0 || doc.Embedding[1] != 1 {
		t.Errorf("embedding not regenerated: %v", doc.Embedding)
	}
	if doc.Metadata["charLength"] != len("revised body") {
		t.Errorf("metadata charLength = %v", doc.Metadata["charLength"])
	}
}

func TestUpdateDocumentRejectsBlankContent(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: true, defaultVec: []float64{1}})
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{PersonaID: "p", Title: "Doc", TextContent: "body"})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	blank := "   "
	if _, err := svc.UpdateDocument(ctx, result.Document.ID, nil, &blank); !errors.Is(err, models.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: true, defaultVec: []float64{1}})
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{
		PersonaID: "p", Title: "Doomed", TextContent: strings.Repeat("d", 3000), ChunkSize: 500, Overlap: 0,
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	if result.ChunksCreated == 0 {
		t.Fatal("expected chunks to cascade-delete")
	}

	if err := svc.DeleteDocument(ctx, result.Document.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := st.GetDocument(ctx, result.Document.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("document still present after delete: %v", err)
	}
	chunks, _ := st.ListChunksByDocument(ctx, result.Document.ID)
	if len(chunks) != 0 {
		t.Errorf("%d orphaned chunks after delete", len(chunks))
	}

	if err := svc.DeleteDocument(ctx, result.Document.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListDocumentsReturnsChunkCounts(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeEmbedder{available: true, defaultVec: []float64{1}})
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{
		PersonaID: "p", Title: "Counted", TextContent: strings.Repeat("c", 1000), ChunkSize: 250, Overlap: 0,
	})
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}

	docs, counts, err := svc.ListDocuments(ctx, "p")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d", len(docs))
	}
	if counts[result.Document.ID.Hex()] != 4 {
		t.Errorf("chunk count = %d, want 4", counts[result.Document.ID.Hex()])
	}

	if _, _, err := svc.ListDocuments(ctx, " "); !errors.Is(err, models.ErrMissingParameter) {
		t.Errorf("blank persona: got %v", err)
	}
}
