package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"persona-knowledge-engine/internal/config"
)

func newTestStorage(t *testing.T) *FileStorageManager {
	t.Helper()
	return NewFileStorageManager(&config.Config{FileStorageDir: t.TempDir()})
}

func TestFileStorageStoreAndCleanup(t *testing.T) {
	sm := newTestStorage(t)

	path, err := sm.Store([]byte("file body"), "My Report.pdf", "persona-1")
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "file body" {
		t.Errorf("stored content = %q", data)
	}
	if filepath.Base(filepath.Dir(path)) != "persona-1" {
		t.Errorf("file not under persona directory: %s", path)
	}
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("extension lost: %s", name)
	}
	if !strings.Contains(name, "My_Report") {
		t.Errorf("readable name tail lost: %s", name)
	}
	if strings.Contains(name, " ") {
		t.Errorf("filename contains spaces: %s", name)
	}

	sm.Cleanup(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after cleanup")
	}
	sm.Cleanup(path) // second cleanup is a no-op
}

func TestFileStorageUniqueNames(t *testing.T) {
	sm := newTestStorage(t)
	first, err := sm.Store([]byte("a"), "same.txt", "p")
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	second, err := sm.Store([]byte("b"), "same.txt", "p")
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	if first == second {
		t.Fatalf("colliding paths for repeated uploads: %s", first)
	}
}

func TestFileStorageSanitizesPersonaID(t *testing.T) {
	sm := newTestStorage(t)
	path, err := sm.Store([]byte("x"), "f.txt", "../escape/attempt")
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	if strings.Contains(path, "..") {
		t.Fatalf("path traversal survived sanitization: %s", path)
	}
}
