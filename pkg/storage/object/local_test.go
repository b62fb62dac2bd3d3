package object

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorage_Publish(t *testing.T) {
	src := filepath.Join(t.TempDir(), "20240305T1407__L2B_1.parquet")
	if err := os.WriteFile(src, []byte("PAR1"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "mirror", "gedi"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	uri, err := s.Publish(context.Background(), src)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, "__L2B_1.parquet") {
		t.Errorf("Unexpected URI %s", uri)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), filepath.Base(src)))
	if err != nil || string(data) != "PAR1" {
		t.Errorf("Copy mismatch: %q %v", data, err)
	}
	if ok, _ := s.Exists(src); !ok {
		t.Error("Expected published file to exist")
	}
	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 1 {
		t.Errorf("Expected no temporary files left, got %d entries", len(entries))
	}
}

func TestLocalStorage_PublishMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Publish(context.Background(), filepath.Join(t.TempDir(), "nope.parquet")); err == nil {
		t.Error("Expected error for missing source")
	}
}
