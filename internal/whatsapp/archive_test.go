package whatsapp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MHassaanT/motomind-backend/internal/blobstore"
)

func newTestBridge(t *testing.T) *ArchiveBridge {
	t.Helper()
	return NewArchiveBridge(blobstore.NewMemoryStore(), t.TempDir())
}

func writeSessionFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestArchiveSaveRestoreRoundtrip(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	const workshopID = 17

	files := map[string]string{
		"session.db":       "sqlite pairing material",
		"keys/noise.bin":   "binary keys",
		"keys/sub/own.bin": "more keys",
	}
	writeSessionFiles(t, b.SessionDir(workshopID), files)

	if err := b.Save(ctx, workshopID); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.RemoveAll(b.SessionDir(workshopID)); err != nil {
		t.Fatalf("wipe session dir: %v", err)
	}

	restored, err := b.Restore(ctx, workshopID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored {
		t.Fatal("Restore reported a miss for a saved archive")
	}
	for name, want := range files {
		data, err := os.ReadFile(filepath.Join(b.SessionDir(workshopID), filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("read restored %s: %v", name, err)
		}
		if string(data) != want {
			t.Fatalf("restored %s = %q, want %q", name, data, want)
		}
	}
}

func TestArchiveRestoreMiss(t *testing.T) {
	b := newTestBridge(t)
	restored, err := b.Restore(context.Background(), 99)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored {
		t.Fatal("Restore reported success without an archive")
	}
}

func TestArchiveSaveWithoutDirIsNoop(t *testing.T) {
	b := newTestBridge(t)
	if err := b.Save(context.Background(), 21); err != nil {
		t.Fatalf("Save without dir: %v", err)
	}
	restored, err := b.Restore(context.Background(), 21)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored {
		t.Fatal("no-op save produced an archive")
	}
}

func TestArchiveRestoreReplacesExistingDir(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	const workshopID = 5

	writeSessionFiles(t, b.SessionDir(workshopID), map[string]string{"session.db": "old"})
	if err := b.Save(ctx, workshopID); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// dirty the live dir, then restore the archived state over it
	writeSessionFiles(t, b.SessionDir(workshopID), map[string]string{
		"session.db": "dirty",
		"stray.tmp":  "leftover",
	})

	restored, err := b.Restore(ctx, workshopID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored {
		t.Fatal("Restore reported a miss")
	}
	data, err := os.ReadFile(filepath.Join(b.SessionDir(workshopID), "session.db"))
	if err != nil {
		t.Fatalf("read session.db: %v", err)
	}
	if string(data) != "old" {
		t.Fatalf("session.db = %q, want archived content", data)
	}
	if _, err := os.Stat(filepath.Join(b.SessionDir(workshopID), "stray.tmp")); !os.IsNotExist(err) {
		t.Fatal("stray file survived restore")
	}
}

func TestArchiveDelete(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	const workshopID = 12

	writeSessionFiles(t, b.SessionDir(workshopID), map[string]string{"session.db": "x"})
	if err := b.Save(ctx, workshopID); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := b.Delete(ctx, workshopID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	restored, err := b.Restore(ctx, workshopID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored {
		t.Fatal("archive survived delete")
	}
}
