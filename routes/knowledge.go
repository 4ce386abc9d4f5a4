package routes

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"persona-knowledge-engine/internal/config"
	"persona-knowledge-engine/services"
	"persona-knowledge-engine/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ingestPayload struct {
	PersonaID           string   `json:"personaId"`
	Title               string   `json:"title"`
	TextContent         string   `json:"textContent"`
	ContentType         string   `json:"contentType"`
	EmbeddingModel      string   `json:"embeddingModel"`
	ChunkingStrategy    string   `json:"chunkingStrategy"`
	ChunkSize           int      `json:"chunkSize"`
	Overlap             *int     `json:"overlap"`
	MaxChunks           int      `json:"maxChunks"`
	EmbeddingDimensions int      `json:"embeddingDimensions"`
	EncodingFormat      string   `json:"encodingFormat"`
	NormalizeEmbeddings bool     `json:"normalizeEmbeddings"`
	EstimateOnly        bool     `json:"estimateOnly"`
	CreatedBy           string   `json:"createdBy"`
}

type searchPayload struct {
	Query          string   `json:"query"`
	PersonaID      string   `json:"personaId"`
	SearchType     string   `json:"searchType"`
	EmbeddingModel string   `json:"embeddingModel"`
	Limit          int      `json:"limit"`
	Threshold      *float64 `json:"threshold"`
}

type updatePayload struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func SetupKnowledgeRoutes(router *gin.Engine, cfg *config.Config, svc *services.KnowledgeService) {
	knowledge := router.Group("/knowledge")

	knowledge.POST("/ingest", func(c *gin.Context) {
		req, ok := bindIngestRequest(c, cfg)
		if !ok {
			return
		}

		result, err := svc.Ingest(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithKnowledgeError(c, err)
			return
		}

		if result.Estimate != nil {
			c.JSON(http.StatusOK, result.Estimate)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"document":        result.Document,
			"chunksCreated":   result.ChunksCreated,
			"estimatedTokens": result.EstimatedTokens,
			"actualCost":      result.ActualCost,
		})
	})

	knowledge.POST("/search", func(c *gin.Context) {
		var payload searchPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		response, err := svc.Search(c.Request.Context(), services.SearchRequest{
			Query:          payload.Query,
			PersonaID:      payload.PersonaID,
			SearchType:     payload.SearchType,
			EmbeddingModel: payload.EmbeddingModel,
			Limit:          payload.Limit,
			Threshold:      payload.Threshold,
		})
		if err != nil {
			utils.RespondWithKnowledgeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response)
	})

	knowledge.GET("/:personaId", func(c *gin.Context) {
		docs, chunkCounts, err := svc.ListDocuments(c.Request.Context(), c.Param("personaId"))
		if err != nil {
			utils.RespondWithKnowledgeError(c, err)
			return
		}

		// Embeddings and full content stay out of the listing payload
		summaries := make([]gin.H, 0, len(docs))
		for _, doc := range docs {
			summaries = append(summaries, gin.H{
				"id":          doc.ID.Hex(),
				"title":       doc.Title,
				"contentType": doc.ContentType,
				"fileUrl":     doc.FileURL,
				"chunkCount":  chunkCounts[doc.ID.Hex()],
				"metadata":    doc.Metadata,
				"createdAt":   doc.CreatedAt,
				"updatedAt":   doc.UpdatedAt,
				"createdBy":   doc.CreatedBy,
			})
		}
		c.JSON(http.StatusOK, gin.H{"documents": summaries, "total": len(summaries)})
	})

	knowledge.PUT("/doc/:id", func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID format", nil)
			return
		}

		var payload updatePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if payload.Title == nil && payload.Content == nil {
			utils.RespondWithBadRequest(c, "Nothing to update: provide title and/or content", nil)
			return
		}

		doc, err := svc.UpdateDocument(c.Request.Context(), id, payload.Title, payload.Content)
		if err != nil {
			utils.RespondWithKnowledgeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": doc})
	})

	knowledge.DELETE("/doc/:id", func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID format", nil)
			return
		}

		if err := svc.DeleteDocument(c.Request.Context(), id); err != nil {
			utils.RespondWithKnowledgeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id.Hex()})
	})
}

// bindIngestRequest accepts either a multipart form (file uploads) or a
// JSON body (pasted text) and applies the documented field defaults.
func bindIngestRequest(c *gin.Context, cfg *config.Config) (services.IngestRequest, bool) {
	var req services.IngestRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil && c.PostForm("textContent") == "" {
			utils.RespondWithBadRequest(c, "Either file or textContent is required", nil)
			return req, false
		}

		if header != nil {
			if header.Size > cfg.MaxFileSize {
				utils.RespondWithBadRequest(c, "File exceeds maximum allowed size",
					gin.H{"max_file_size": cfg.MaxFileSize})
				return req, false
			}
			file, err := header.Open()
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to read upload", gin.H{"error": err.Error()})
				return req, false
			}
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to read upload", gin.H{"error": err.Error()})
				return req, false
			}
			req.FileData = data
			req.FileName = header.Filename
		}

		req.PersonaID = c.PostForm("personaId")
		req.Title = c.PostForm("title")
		req.TextContent = c.PostForm("textContent")
		req.ContentType = c.PostForm("contentType")
		req.EmbeddingModel = c.PostForm("embeddingModel")
		req.Strategy = c.PostForm("chunkingStrategy")
		req.ChunkSize = formInt(c, "chunkSize", cfg.ChunkSize)
		req.Overlap = formInt(c, "overlap", cfg.ChunkOverlap)
		req.MaxChunks = formInt(c, "maxChunks", cfg.MaxChunks)
		req.Dimensions = formInt(c, "embeddingDimensions", 0)
		req.EncodingFormat = c.PostForm("encodingFormat")
		req.Normalize = c.PostForm("normalizeEmbeddings") == "true"
		req.EstimateOnly = c.PostForm("estimateOnly") == "true"
		req.CreatedBy = c.PostForm("createdBy")
		return req, true
	}

	var payload ingestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return req, false
	}

	overlap := cfg.ChunkOverlap
	if payload.Overlap != nil {
		overlap = *payload.Overlap
	}

	req = services.IngestRequest{
		PersonaID:      payload.PersonaID,
		Title:          payload.Title,
		TextContent:    payload.TextContent,
		ContentType:    payload.ContentType,
		EmbeddingModel: payload.EmbeddingModel,
		Strategy:       payload.ChunkingStrategy,
		ChunkSize:      payload.ChunkSize,
		Overlap:        overlap,
		MaxChunks:      payload.MaxChunks,
		Dimensions:     payload.EmbeddingDimensions,
		EncodingFormat: payload.EncodingFormat,
		Normalize:      payload.NormalizeEmbeddings,
		EstimateOnly:   payload.EstimateOnly,
		CreatedBy:      payload.CreatedBy,
	}
	return req, true
}

func formInt(c *gin.Context, field string, defaultValue int) int {
	if value := c.PostForm(field); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
