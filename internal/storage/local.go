package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"suture/internal/services"
)

// Local stores videos as files under the configured video directory.
type Local struct {
	root string
}

// NewLocal builds a filesystem backend rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

func (l *Local) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	handle := handleFor(filename)
	path, err := l.resolve(handle)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "save", "create video directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "save", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrStorage, "storage", "save", "write video", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrStorage, "storage", "save", "close video", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrStorage, "storage", "save", "finalize video", err)
	}
	return handle, nil
}

func (l *Local) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	path, err := l.resolve(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "storage", "open", handle, nil)
		}
		return nil, services.Wrap(services.ErrStorage, "storage", "open", handle, err)
	}
	return f, nil
}

// LocalPath returns the backing file directly; no staging copy is needed.
func (l *Local) LocalPath(ctx context.Context, handle string) (string, func(), error) {
	path, err := l.resolve(handle)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil, services.Wrap(services.ErrNotFound, "storage", "local_path", handle, nil)
		}
		return "", nil, services.Wrap(services.ErrStorage, "storage", "local_path", handle, err)
	}
	return path, func() {}, nil
}

func (l *Local) Remove(ctx context.Context, handle string) error {
	path, err := l.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrStorage, "storage", "remove", handle, err)
	}
	return nil
}

// resolve rejects handles that would escape the video directory.
func (l *Local) resolve(handle string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(handle))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", services.Wrap(services.ErrValidation, "storage", "resolve",
			fmt.Sprintf("invalid video handle %q", handle), nil)
	}
	return filepath.Join(l.root, cleaned), nil
}

// contextReader aborts long copies once the request context is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
