package whatsapp

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MHassaanT/motomind-backend/internal/blobstore"
	"github.com/pkg/errors"
)

// ArchiveBridge saves and restores a workshop's local session directory
// to/from the blob store so a paired session survives a process restart.
// Archive operations never block or fail the connect flow: a failed save
// only degrades restart durability.
type ArchiveBridge struct {
	store blobstore.Store
	root  string
}

func NewArchiveBridge(store blobstore.Store, root string) *ArchiveBridge {
	return &ArchiveBridge{store: store, root: root}
}

// SessionDir is the local session directory of one workshop.
func (b *ArchiveBridge) SessionDir(workshopID int64) string {
	return filepath.Join(b.root, strconv.FormatInt(workshopID, 10))
}

func archiveKey(workshopID int64) string {
	return strconv.FormatInt(workshopID, 10)
}

// Save packages the session directory into a tar.gz blob, overwriting any
// prior archive. A missing directory is a no-op.
func (b *ArchiveBridge) Save(ctx context.Context, workshopID int64) error {
	dir := b.SessionDir(workshopID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	data, err := packDir(dir)
	if err != nil {
		return &PersistenceError{WorkshopID: workshopID, Op: "save", Err: err}
	}
	if err := b.store.Put(ctx, archiveKey(workshopID), data); err != nil {
		return &PersistenceError{WorkshopID: workshopID, Op: "save", Err: err}
	}
	return nil
}

// Restore unpacks the stored archive into the session directory, replacing
// whatever is there. It returns false without error when no archive exists.
// It must complete before the automation client is constructed: the client
// reads pairing material from the directory at construction time.
func (b *ArchiveBridge) Restore(ctx context.Context, workshopID int64) (bool, error) {
	data, found, err := b.store.Get(ctx, archiveKey(workshopID))
	if err != nil {
		return false, &PersistenceError{WorkshopID: workshopID, Op: "restore", Err: err}
	}
	if !found {
		return false, nil
	}
	dir := b.SessionDir(workshopID)
	if err := os.RemoveAll(dir); err != nil {
		return false, &PersistenceError{WorkshopID: workshopID, Op: "restore", Err: err}
	}
	if err := unpackDir(data, dir); err != nil {
		return false, &PersistenceError{WorkshopID: workshopID, Op: "restore", Err: err}
	}
	return true, nil
}

// Delete removes the stored archive. Invoked only on explicit session clear.
func (b *ArchiveBridge) Delete(ctx context.Context, workshopID int64) error {
	if err := b.store.Delete(ctx, archiveKey(workshopID)); err != nil {
		return &PersistenceError{WorkshopID: workshopID, Op: "delete", Err: err}
	}
	return nil
}

func packDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackDir(data []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		// reject entries escaping the session directory
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return errors.Errorf("archive entry escapes session dir: %s", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil { //nolint:gosec
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}
