package models

import "errors"

// Knowledge engine error taxonomy. Handlers map these onto the HTTP error
// envelope; everything else is treated as an internal failure.
var (
	// ErrEmptyContent: extracted or pasted text is blank after trimming.
	ErrEmptyContent = errors.New("document content is empty")

	// ErrEmbeddingUnavailable: the embedding provider is not configured.
	// Configuration problem, not transient; callers should not retry.
	ErrEmbeddingUnavailable = errors.New("embedding provider not configured")

	// ErrDimensionMismatch: query and stored embeddings differ in length,
	// which means the corpus mixes embedding models.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMissingParameter: a required input field is absent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrNotFound: the referenced knowledge document does not exist.
	ErrNotFound = errors.New("knowledge document not found")
)
