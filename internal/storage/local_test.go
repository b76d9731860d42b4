package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage_PutGet(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	objectPath := "tables/survey/definition.json.sz"
	content := []byte("hello world")
	etag, err := storage.Put(ctx, objectPath, content)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// md5("hello world")
	if etag != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("unexpected etag %s", etag)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	got, err := storage.Get(ctx, objectPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	// Overwrite
	if _, err := storage.Put(ctx, objectPath, []byte("v2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, _ = storage.Get(ctx, objectPath)
	if string(got) != "v2" {
		t.Errorf("overwrite not visible: %q", got)
	}
}

func TestLocalStorage_GetMissing(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	_, err = storage.Get(context.Background(), "nope")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	if _, err := storage.Put(ctx, "a/b", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := storage.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if exists, _ := storage.Exists(ctx, "a/b"); exists {
		t.Error("object still exists after delete")
	}
	// Deleting again is not an error
	if err := storage.Delete(ctx, "a/b"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestLocalStorage_List(t *testing.T) {
	base := t.TempDir()
	storage, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	for _, p := range []string{"tables/b/definition.json.sz", "tables/a/definition.json.sz", "other/x"} {
		if _, err := storage.Put(ctx, p, []byte(p)); err != nil {
			t.Fatalf("Put(%s) failed: %v", p, err)
		}
	}
	// Stray temp files are not objects
	if err := os.WriteFile(filepath.Join(base, "tables", ".put-123"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	objects, err := storage.List(ctx, "tables")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"tables/a/definition.json.sz", "tables/b/definition.json.sz"}
	if len(objects) != len(want) {
		t.Fatalf("got %v, want %v", objects, want)
	}
	for i := range want {
		if objects[i] != want[i] {
			t.Errorf("object %d = %s, want %s", i, objects[i], want[i])
		}
	}

	objects, err = storage.List(ctx, "missing")
	if err != nil || len(objects) != 0 {
		t.Errorf("List of a missing prefix = %v, %v", objects, err)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := storage.Put(ctx, "x", []byte("y")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put with cancelled context = %v", err)
	}
}
