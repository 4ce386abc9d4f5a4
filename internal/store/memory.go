package store

import (
	"context"
	"sync"
	"time"

	"persona-knowledge-engine/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-memory KnowledgeStore with the same ordering and
// cascade semantics as the Mongo implementation. Used by tests and usable
// as a standalone store for small corpora.
type MemoryStore struct {
	mu        sync.RWMutex
	documents []models.KnowledgeDocument
	chunks    []models.KnowledgeChunk
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) CreateDocument(_ context.Context, doc *models.KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents = append(s.documents, *doc)
	return nil
}

func (s *MemoryStore) InsertChunks(_ context.Context, chunks []models.KnowledgeChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
		s.chunks = append(s.chunks, chunks[i])
	}
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id primitive.ObjectID) (*models.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.documents {
		if s.documents[i].ID == id {
			doc := s.documents[i]
			return &doc, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) ListDocuments(_ context.Context, personaID string) ([]models.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []models.KnowledgeDocument
	for _, d := range s.documents {
		if d.PersonaID == personaID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *MemoryStore) ListChunks(_ context.Context, personaID string) ([]models.ChunkWithDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	titles := make(map[primitive.ObjectID]string)
	for _, d := range s.documents {
		if d.PersonaID == personaID {
			titles[d.ID] = d.Title
		}
	}
	var joined []models.ChunkWithDocument
	for _, ch := range s.chunks {
		if title, ok := titles[ch.KnowledgeDocumentID]; ok {
			joined = append(joined, models.ChunkWithDocument{
				Chunk:         ch,
				DocumentTitle: title,
				PersonaID:     personaID,
			})
		}
	}
	return joined, nil
}

func (s *MemoryStore) ListChunksByDocument(_ context.Context, documentID primitive.ObjectID) ([]models.KnowledgeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chunks []models.KnowledgeChunk
	for _, ch := range s.chunks {
		if ch.KnowledgeDocumentID == documentID {
			chunks = append(chunks, ch)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) CountChunks(ctx context.Context, documentID primitive.ObjectID) (int64, error) {
	chunks, err := s.ListChunksByDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	return int64(len(chunks)), nil
}

func (s *MemoryStore) UpdateDocument(_ context.Context, id primitive.ObjectID, update DocumentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.documents {
		if s.documents[i].ID == id {
			if update.Title != nil {
				s.documents[i].Title = *update.Title
			}
			if update.Content != nil {
				s.documents[i].Content = *update.Content
			}
			if update.Embedding != nil {
				s.documents[i].Embedding = update.Embedding
			}
			if update.Metadata != nil {
				s.documents[i].Metadata = update.Metadata
			}
			s.documents[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	docs := s.documents[:0]
	for _, d := range s.documents {
		if d.ID == id {
			found = true
			continue
		}
		docs = append(docs, d)
	}
	s.documents = docs
	if !found {
		return models.ErrNotFound
	}
	chunks := s.chunks[:0]
	for _, ch := range s.chunks {
		if ch.KnowledgeDocumentID == id {
			continue
		}
		chunks = append(chunks, ch)
	}
	s.chunks = chunks
	return nil
}
