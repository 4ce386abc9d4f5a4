package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"persona-knowledge-engine/internal/config"
)

// FileStorageManager persists original uploads so a document's file_url
// can point back at the source blob.
type FileStorageManager struct {
	uploadDir string
}

func NewFileStorageManager(cfg *config.Config) *FileStorageManager {
	baseDir := cfg.FileStorageDir
	if baseDir == "" {
		baseDir = "./storage"
	}
	uploadDir := filepath.Join(baseDir, "knowledge")
	os.MkdirAll(uploadDir, 0755)
	return &FileStorageManager{uploadDir: uploadDir}
}

// Store writes the upload under a persona-scoped directory with a
// generated name and returns the stored path.
func (sm *FileStorageManager) Store(data []byte, originalName, personaID string) (string, error) {
	personaDir := filepath.Join(sm.uploadDir, sanitizePathSegment(personaID))
	if err := os.MkdirAll(personaDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create persona directory: %w", err)
	}

	path := filepath.Join(personaDir, generateSecureFilename(originalName))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// Cleanup removes a stored file, logging nothing on a missing path.
func (sm *FileStorageManager) Cleanup(path string) {
	if path != "" {
		os.Remove(path)
	}
}

// generateSecureFilename creates a collision-resistant filename keeping a
// cleaned tail of the original name for operator readability.
func generateSecureFilename(originalName string) string {
	randomBytes := make([]byte, 8)
	rand.Read(randomBytes)
	randomPrefix := hex.EncodeToString(randomBytes)

	timestamp := time.Now().Format("20060102_150405")

	ext := filepath.Ext(originalName)
	baseName := strings.TrimSuffix(filepath.Base(originalName), ext)
	safeName := strings.ReplaceAll(baseName, " ", "_")
	safeName = strings.ReplaceAll(safeName, "..", "")
	if len(safeName) > 50 {
		safeName = safeName[:50]
	}

	return fmt.Sprintf("%s_%s_%s%s", timestamp, randomPrefix, safeName, ext)
}

func sanitizePathSegment(s string) string {
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		s = "unknown"
	}
	return s
}
