package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentType identifies the format a knowledge document was ingested from.
const (
	ContentTypePDF      = "pdf"
	ContentTypeText     = "text"
	ContentTypeMarkdown = "markdown"
)

// KnowledgeDocument is a persona-scoped document with a whole-document
// embedding. Chunks belonging to it live in the knowledge_chunks collection
// and are cascade-deleted with the document.
type KnowledgeDocument struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	PersonaID   string                 `bson:"persona_id" json:"personaId"`
	Title       string                 `bson:"title" json:"title"`
	Content     string                 `bson:"content" json:"content"`
	ContentType string                 `bson:"content_type" json:"contentType"`
	FileURL     string                 `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	Embedding   []float64              `bson:"embedding,omitempty" json:"-"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updatedAt"`
	CreatedBy   string                 `bson:"created_by,omitempty" json:"createdBy,omitempty"`
}

// KnowledgeChunk is one fragment of a document's content, embedded
// independently for finer-grained retrieval.
type KnowledgeChunk struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	KnowledgeDocumentID primitive.ObjectID `bson:"knowledge_document_id" json:"knowledgeDocumentId"`
	ChunkIndex          int                `bson:"chunk_index" json:"chunkIndex"`
	Content             string             `bson:"content" json:"content"`
	Embedding           []float64          `bson:"embedding,omitempty" json:"-"`
	Metadata            ChunkMetadata      `bson:"metadata" json:"metadata"`
	CreatedAt           time.Time          `bson:"created_at" json:"createdAt"`
}

// ChunkMetadata records where a chunk sits inside its parent content.
// Page is an advisory estimate from the page locator and may be nil.
type ChunkMetadata struct {
	StartPosition int  `bson:"start_position" json:"startPosition"`
	EndPosition   int  `bson:"end_position" json:"endPosition"`
	Length        int  `bson:"length" json:"length"`
	Page          *int `bson:"page,omitempty" json:"page,omitempty"`
	ChunkIndex    int  `bson:"chunk_index" json:"chunkIndex"`
}

// ChunkWithDocument joins a chunk with provenance from its owning document,
// as loaded for chunk-level similarity search.
type ChunkWithDocument struct {
	Chunk         KnowledgeChunk
	DocumentTitle string
	PersonaID     string
}

// SearchResult is one scored entry returned by the similarity search engine.
type SearchResult struct {
	ID          string                 `json:"id"`
	DocumentID  string                 `json:"documentId"`
	Content     string                 `json:"content"`
	Similarity  float64                `json:"similarity"`
	SourceTitle string                 `json:"sourceTitle,omitempty"`
	ChunkIndex  *int                   `json:"chunkIndex,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// CostEstimate is the projected cost of embedding a document with one
// candidate model from the catalog.
type CostEstimate struct {
	ModelID         string  `json:"modelId"`
	ModelName       string  `json:"modelName"`
	CostPerToken    float64 `json:"costPerToken"`
	EstimatedTokens int     `json:"estimatedTokens"`
	EstimatedCost   float64 `json:"estimatedCost"`
	ProcessingTime  string  `json:"processingTime"`
}
