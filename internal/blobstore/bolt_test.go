package blobstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestBoltStoreRoundtrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data", "archives.db")
	store, err := OpenBolt(file)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "17", []byte("archive bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, found, err := store.Get(ctx, "17")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Get missed a stored key")
	}
	if !bytes.Equal(data, []byte("archive bytes")) {
		t.Fatalf("Get = %q", data)
	}

	if err := store.Put(ctx, "17", []byte("newer")); err != nil {
		t.Fatalf("overwrite Put: %v", err)
	}
	data, _, err = store.Get(ctx, "17")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(data) != "newer" {
		t.Fatalf("Get after overwrite = %q", data)
	}
}

func TestBoltStoreMissAndDelete(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "archives.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	_, found, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("Get found a missing key")
	}

	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if found {
		t.Fatal("key survived delete")
	}

	// deleting a missing key is not an error
	if err := store.Delete(ctx, "never"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}
