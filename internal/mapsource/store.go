package mapsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

// Store is where descriptors come from. List returns the decodable sources
// ordered by ID; Get fails with errs.ErrSourceNotFound for unknown IDs.
type Store interface {
	List(ctx context.Context) ([]*Source, error)
	Get(ctx context.Context, id string) (*Source, error)
}

const descriptorExt = ".xml"

// CleanID normalizes a request path into a source ID. ok is false for paths
// that could escape the store root.
func CleanID(id string) (string, bool) {
	id = strings.Trim(id, "/")
	if id == "" || !fs.ValidPath(id) {
		return "", false
	}
	return id, true
}

// FSStore reads descriptors from a directory tree. The file a/b.xml has the
// ID "a/b".
type FSStore struct {
	fsys   fs.FS
	logger *slog.Logger
}

func NewFSStore(fsys fs.FS, logger *slog.Logger) *FSStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStore{fsys: fsys, logger: logger}
}

func (s *FSStore) List(ctx context.Context) ([]*Source, error) {
	var out []*Source
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(p), descriptorExt) {
			return nil
		}
		id := strings.TrimSuffix(p, path.Ext(p))
		src, err := s.read(p, id)
		switch {
		case errors.Is(err, ErrNotMapSource):
			return nil
		case err != nil:
			s.logger.Warn("skipping map source", "id", id, "err", err)
			return nil
		}
		out = append(out, src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan map sources: %w", err)
	}
	return out, nil
}

func (s *FSStore) Get(ctx context.Context, id string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, ok := CleanID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrSourceNotFound, id)
	}
	src, err := s.read(clean+descriptorExt, clean)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrNotMapSource) {
		return nil, fmt.Errorf("%w: %q", errs.ErrSourceNotFound, id)
	}
	return src, err
}

func (s *FSStore) read(name, id string) (*Source, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	if st, err := f.Stat(); err == nil && st.IsDir() {
		return nil, fs.ErrNotExist
	}
	return Decode(f, id)
}

// Check reports whether the root is readable; used by readiness.
func (s *FSStore) Check(context.Context) error {
	if _, err := fs.Stat(s.fsys, "."); err != nil {
		return fmt.Errorf("map source root: %w", err)
	}
	return nil
}
