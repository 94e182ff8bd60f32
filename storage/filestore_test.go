package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/goconvert/config"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "results")
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("Expected root to be created: %v", err)
	}

	key := Key("01JOB", "photo.pdf")

	t.Run("Put and open", func(t *testing.T) {
		if err := store.Put(ctx, key, []byte("%PDF-1.3"), "application/pdf"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		r, err := store.Open(ctx, key)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if string(data) != "%PDF-1.3" {
			t.Errorf("Unexpected content %q", data)
		}
	})

	t.Run("Delete removes job directory", func(t *testing.T) {
		if err := store.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Open(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "01JOB")); !os.IsNotExist(err) {
			t.Errorf("Expected empty job directory to be removed, got %v", err)
		}
		if err := store.Delete(ctx, key); err != nil {
			t.Errorf("Expected deleting a missing key to succeed, got %v", err)
		}
	})

	t.Run("Rejects escaping keys", func(t *testing.T) {
		for _, bad := range []string{"../x", "/etc/passwd", "a//b", "", "a\\b", "job/./x"} {
			if err := store.Put(ctx, bad, []byte("x"), ""); err == nil {
				t.Errorf("Expected error for key %q", bad)
			}
		}
	})
}

func TestKey(t *testing.T) {
	tests := map[string]string{
		"photo.png":         "job/photo.png",
		"../../etc/passwd":  "job/passwd",
		"dir\\windows.jpg":  "job/windows.jpg",
		"nested/report.pdf": "job/report.pdf",
	}
	for name, want := range tests {
		if got := Key("job", name); got != want {
			t.Errorf("Key(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestNewResultStore(t *testing.T) {
	store, err := NewResultStore(config.ServerConfig{StorageType: "file", ResultPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("Expected *FileStore, got %T", store)
	}

	if _, err := NewResultStore(config.ServerConfig{StorageType: "ftp"}); err == nil {
		t.Error("Expected error for unknown storage type")
	}
	if _, err := NewResultStore(config.ServerConfig{StorageType: "s3"}); err == nil {
		t.Error("Expected error for s3 without endpoint")
	}
}
