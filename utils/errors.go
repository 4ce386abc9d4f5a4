package utils

import (
	"errors"
	"net/http"

	"persona-knowledge-engine/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithKnowledgeError maps the knowledge engine's error taxonomy
// onto HTTP responses, so calling UIs can distinguish "not configured"
// from "bad input" from "transient failure".
func RespondWithKnowledgeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrMissingParameter):
		RespondWithError(c, http.StatusBadRequest, "missing_parameter", err.Error(), nil)
	case errors.Is(err, models.ErrEmptyContent):
		RespondWithError(c, http.StatusBadRequest, "empty_content",
			"Document content is empty after extraction", nil)
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		RespondWithError(c, http.StatusServiceUnavailable, "embeddings_not_configured",
			"Embedding provider is not configured", nil)
	case errors.Is(err, models.ErrDimensionMismatch):
		RespondWithError(c, http.StatusConflict, "dimension_mismatch",
			"Stored embeddings were produced by a different model than the query", gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		RespondWithNotFound(c, "Knowledge document not found")
	default:
		RespondWithInternalError(c, "Request failed", gin.H{"error": err.Error()})
	}
}
