package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Knowledge documents: persona scoping drives every read path
	documentsCollection := db.Collection("knowledge_documents")
	documentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "persona_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "persona_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	_, err := documentsCollection.Indexes().CreateMany(context.Background(), documentIndexes)
	if err != nil {
		return err
	}

	// Knowledge chunks: looked up by owning document for search joins and
	// cascade deletes; chunk_index is unique within a document
	chunksCollection := db.Collection("knowledge_chunks")
	chunkIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "knowledge_document_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "knowledge_document_id", Value: 1}, {Key: "chunk_index", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = chunksCollection.Indexes().CreateMany(context.Background(), chunkIndexes)
	if err != nil {
		return err
	}

	return nil
}
