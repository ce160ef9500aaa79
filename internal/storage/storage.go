package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"suture/internal/config"
)

// Backend stores and retrieves submitted videos by opaque handle.
type Backend interface {
	// Save writes the video and returns the handle recorded on the
	// submission. Size may be -1 when unknown.
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	// Open returns the stored video for streaming reads.
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	// LocalPath makes the video available as a file on disk for the
	// analyzer command. The cleanup func releases any staged copy.
	LocalPath(ctx context.Context, handle string) (string, func(), error)
	// Remove deletes the stored video.
	Remove(ctx context.Context, handle string) error
}

// New builds the backend selected by the configuration.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return NewLocal(cfg.Paths.VideoDir), nil
	case config.BackendS3:
		return NewS3(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// handleFor builds a collision-free handle that keeps the original extension
// so analyzer tooling can sniff the container format.
func handleFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006-01"), uuid.NewString(), ext)
}
