package blob

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var knownExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileStore keeps uploaded media as files under one directory, each under a
// fresh random name, and hands back the URL the directory is served from.
type FileStore struct {
	dir     string
	baseURL string
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (fs *FileStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + extensionFor(contentType)

	// write to a temp file first so a reader never sees a partial upload
	tmp, err := os.CreateTemp(fs.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(fs.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store media file: %w", err)
	}

	return fs.baseURL + "/" + name, nil
}

func (fs *FileStore) Dir() string {
	return fs.dir
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ext, ok := knownExtensions[ct]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
