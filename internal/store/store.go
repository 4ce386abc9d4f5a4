package store

import (
	"context"

	"persona-knowledge-engine/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentUpdate carries the mutable document fields for an update call.
// Nil pointers leave the stored value untouched; Embedding and Metadata are
// replaced whenever Content changes.
type DocumentUpdate struct {
	Title     *string
	Content   *string
	Embedding []float64
	Metadata  map[string]interface{}
}

// KnowledgeStore persists knowledge documents and their chunks. A document
// is always written before its chunks; deleting a document cascades to its
// chunks.
type KnowledgeStore interface {
	CreateDocument(ctx context.Context, doc *models.KnowledgeDocument) error
	InsertChunks(ctx context.Context, chunks []models.KnowledgeChunk) error

	GetDocument(ctx context.Context, id primitive.ObjectID) (*models.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, personaID string) ([]models.KnowledgeDocument, error)
	ListChunks(ctx context.Context, personaID string) ([]models.ChunkWithDocument, error)
	ListChunksByDocument(ctx context.Context, documentID primitive.ObjectID) ([]models.KnowledgeChunk, error)
	CountChunks(ctx context.Context, documentID primitive.ObjectID) (int64, error)

	UpdateDocument(ctx context.Context, id primitive.ObjectID, update DocumentUpdate) error
	DeleteDocument(ctx context.Context, id primitive.ObjectID) error
}
