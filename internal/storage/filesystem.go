package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/casdoor/oss"
)

// LocalFileSystem stores objects under a folder on local disk.
type LocalFileSystem struct {
	Folder string
}

// NewFileSystem creates a local file system backend rooted at folder,
// creating it if needed.
func NewFileSystem(folder string) (*LocalFileSystem, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving storage folder: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage folder: %w", err)
	}
	return &LocalFileSystem{Folder: abs}, nil
}

// GetFullPath maps an object path to a file under Folder. Paths that would
// escape Folder are clamped to it.
func (fs *LocalFileSystem) GetFullPath(p string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(p))
	return filepath.Join(fs.Folder, clean)
}

// Get opens the object at p.
func (fs *LocalFileSystem) Get(p string) (*os.File, error) {
	return os.Open(fs.GetFullPath(p))
}

// GetStream opens the object at p as a stream.
func (fs *LocalFileSystem) GetStream(p string) (io.ReadCloser, error) {
	return os.Open(fs.GetFullPath(p))
}

// Put writes r to p.
func (fs *LocalFileSystem) Put(p string, r io.Reader) (*oss.Object, error) {
	fp := fs.GetFullPath(p)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, fmt.Errorf("creating directories for %s: %w", p, err)
	}

	dst, err := os.Create(fp)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			slog.Warn("closing stored file", "path", fp, "err", cerr)
		}
	}()

	if _, err := io.Copy(dst, r); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &oss.Object{Path: p, Name: filepath.Base(p), StorageInterface: fs}, nil
}

// Delete removes the object at p.
func (fs *LocalFileSystem) Delete(p string) error {
	return os.Remove(fs.GetFullPath(p))
}

// List returns the objects under p.
func (fs *LocalFileSystem) List(p string) ([]*oss.Object, error) {
	var (
		objects []*oss.Object
		root    = fs.GetFullPath(p)
	)

	err := filepath.Walk(root, func(fp string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fp == root || info.IsDir() {
			return nil
		}
		mt := info.ModTime()
		objects = append(objects, &oss.Object{
			Path:             filepath.ToSlash(strings.TrimPrefix(fp, fs.Folder)),
			Name:             info.Name(),
			LastModified:     &mt,
			StorageInterface: fs,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	return objects, nil
}

// GetEndpoint returns "/" for local storage.
func (fs *LocalFileSystem) GetEndpoint() string {
	return "/"
}

// GetURL returns p unchanged; the Uploader prefixes it with the public URL.
func (fs *LocalFileSystem) GetURL(p string) (string, error) {
	return p, nil
}
