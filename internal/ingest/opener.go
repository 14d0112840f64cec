package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// RemotePrefix marks source paths served by the object store.
const RemotePrefix = "s3://"

// File is an opened input with the metadata the arrival-time derivation needs.
type File struct {
	Body    io.ReadCloser
	ModTime time.Time
}

// Opener resolves a source path to a readable file.
type Opener interface {
	Open(ctx context.Context, path string) (*File, error)
}

// LocalOpener reads from the local filesystem.
type LocalOpener struct{}

// Open opens path read-only.
func (LocalOpener) Open(_ context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stat: %w", err)
	}
	if st.IsDir() {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{Body: f, ModTime: st.ModTime()}, nil
}

type router struct {
	local  Opener
	remote Opener
}

// NewOpener returns an Opener that serves s3:// paths from remote and
// everything else from the local filesystem. A nil remote rejects s3:// paths.
func NewOpener(remote Opener) Opener {
	return &router{local: LocalOpener{}, remote: remote}
}

func (r *router) Open(ctx context.Context, path string) (*File, error) {
	if strings.HasPrefix(path, RemotePrefix) {
		if r.remote == nil {
			return nil, fmt.Errorf("object store not configured for %s", path)
		}
		return r.remote.Open(ctx, path)
	}
	return r.local.Open(ctx, path)
}
