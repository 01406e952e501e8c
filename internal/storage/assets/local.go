package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes assets below a directory that the server also serves
// under publicBaseURL.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local storage: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create %s: %w", abs, err)
	}
	return &LocalStore{root: abs, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Root is the directory files are written to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(ctx context.Context, folder, name string, image Image) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	publicID := path.Join(folder, name)
	dir, err := s.resolve(folder)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, fmt.Errorf("local storage: create folder: %w", err)
	}

	file := filepath.Join(dir, name+image.Extension)
	if err := os.WriteFile(file, image.Data, 0o644); err != nil {
		return Object{}, fmt.Errorf("local storage: write %s: %w", publicID, err)
	}
	return Object{
		URL:      s.baseURL + "/" + publicID + image.Extension,
		PublicID: publicID,
	}, nil
}

func (s *LocalStore) Delete(_ context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	base, err := s.resolve(publicID)
	if err != nil {
		return err
	}
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return fmt.Errorf("local storage: glob %s: %w", publicID, err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("local storage: remove %s: %w", m, err)
		}
	}
	return nil
}

func (s *LocalStore) DeleteFolder(_ context.Context, folder string) error {
	dir, err := s.resolve(folder)
	if err != nil {
		return err
	}
	if dir == s.root {
		return errors.New("local storage: refusing to delete the storage root")
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("local storage: remove folder %s: %w", folder, err)
	}
	return nil
}

// resolve maps a slash-separated asset path below the root, rejecting any
// path that would escape it.
func (s *LocalStore) resolve(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+rel)))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("local storage: path %q escapes the storage root", rel)
	}
	return full, nil
}
