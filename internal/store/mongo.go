package store

import (
	"context"
	"fmt"
	"time"

	"persona-knowledge-engine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the production KnowledgeStore backed by the
// knowledge_documents and knowledge_chunks collections.
type MongoStore struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		documents: db.Collection("knowledge_documents"),
		chunks:    db.Collection("knowledge_chunks"),
	}
}

func (s *MongoStore) CreateDocument(ctx context.Context, doc *models.KnowledgeDocument) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert knowledge document: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertChunks(ctx context.Context, chunks []models.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	now := time.Now()
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
		docs[i] = chunks[i]
	}
	// Ordered insert keeps chunk_index creation order in storage order
	if _, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert knowledge chunks: %w", err)
	}
	return nil
}

func (s *MongoStore) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context, personaID string) ([]models.KnowledgeDocument, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"persona_id": personaID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.KnowledgeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListChunks loads every chunk for the persona joined with its owning
// document's title. Two queries instead of an aggregation pipeline: the
// document list for one persona is small, and the search engine scans
// linearly anyway.
func (s *MongoStore) ListChunks(ctx context.Context, personaID string) ([]models.ChunkWithDocument, error) {
	docs, err := s.ListDocuments(ctx, personaID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, len(docs))
	titles := make(map[primitive.ObjectID]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		titles[d.ID] = d.Title
	}

	cursor, err := s.chunks.Find(ctx, bson.M{"knowledge_document_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "knowledge_document_id", Value: 1}, {Key: "chunk_index", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.KnowledgeChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}

	joined := make([]models.ChunkWithDocument, len(chunks))
	for i, ch := range chunks {
		joined[i] = models.ChunkWithDocument{
			Chunk:         ch,
			DocumentTitle: titles[ch.KnowledgeDocumentID],
			PersonaID:     personaID,
		}
	}
	return joined, nil
}

func (s *MongoStore) ListChunksByDocument(ctx context.Context, documentID primitive.ObjectID) ([]models.KnowledgeChunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"knowledge_document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.KnowledgeChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *MongoStore) CountChunks(ctx context.Context, documentID primitive.ObjectID) (int64, error) {
	return s.chunks.CountDocuments(ctx, bson.M{"knowledge_document_id": documentID})
}

func (s *MongoStore) UpdateDocument(ctx context.Context, id primitive.ObjectID, update DocumentUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Embedding != nil {
		set["embedding"] = update.Embedding
	}
	if update.Metadata != nil {
		set["metadata"] = update.Metadata
	}

	result, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document and cascades to its chunks. Chunks go
// first so a failure never leaves chunks pointing at a missing document.
func (s *MongoStore) DeleteDocument(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"knowledge_document_id": id}); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	result, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
