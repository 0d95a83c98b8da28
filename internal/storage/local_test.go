package storage

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestLocalStorage_PutGet(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	key := "reports/run-1.samples.csv"
	if err := storage.Put(ctx, key, strings.NewReader("Query,counts,timing\n")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	r, err := storage.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "Query,counts,timing\n" {
		t.Errorf("content mismatch: got %q", data)
	}
}

func TestLocalStorage_PutReplaces(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	_ = storage.Put(ctx, "a.csv", strings.NewReader("first"))
	if err := storage.Put(ctx, "a.csv", strings.NewReader("second")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, err := storage.Get(ctx, "a.csv")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "second" {
		t.Errorf("got %q, want %q", data, "second")
	}

	keys, _ := storage.ListObjects(ctx, "")
	if len(keys) != 1 {
		t.Errorf("expected no temporary files left behind, got %v", keys)
	}
}

func TestLocalStorage_NotFound(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	if _, err := storage.Get(ctx, "missing.csv"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	exists, err := storage.Exists(ctx, "missing.csv")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist")
	}

	// Delete is idempotent
	if err := storage.Delete(ctx, "missing.csv"); err != nil {
		t.Errorf("Delete of missing object failed: %v", err)
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	_ = storage.Put(ctx, "a.csv", strings.NewReader("x"))
	if err := storage.Delete(ctx, "a.csv"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if exists, _ := storage.Exists(ctx, "a.csv"); exists {
		t.Error("expected object to be deleted")
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"reports/b.csv", "reports/a.csv", "other/c.csv"} {
		if err := storage.Put(ctx, key, strings.NewReader(key)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := storage.ListObjects(ctx, "reports")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	want := []string{"reports/a.csv", "reports/b.csv"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("got %v, want %v", keys, want)
	}

	keys, err = storage.ListObjects(ctx, "nothing-here")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected empty list, got %v", keys)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Put(ctx, "a.csv", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPrefixedStorage(t *testing.T) {
	inner, _ := NewLocalStorage(t.TempDir())
	storage := NewPrefixedStorage(inner, "/bench/")
	ctx := context.Background()

	if err := storage.Put(ctx, "reports/a.csv", strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if exists, _ := inner.Exists(ctx, "bench/reports/a.csv"); !exists {
		t.Error("expected object under the prefix")
	}

	keys, err := storage.ListObjects(ctx, "reports")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"reports/a.csv"}) {
		t.Errorf("expected prefix stripped, got %v", keys)
	}

	if NewPrefixedStorage(inner, "") != ObjectStorage(inner) {
		t.Error("empty prefix should return the inner storage")
	}
}
