// Package media stores uploaded profile photos on the local filesystem and
// maps stored paths to public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/duynhne/profile-service/config"
)

// PhotoDir is the directory, relative to the media root, holding profile photos.
const PhotoDir = "perfiles"

// ErrUnsafePath is returned for stored paths escaping the media root.
var ErrUnsafePath = errors.New("path escapes media root")

// Storage saves files below a root directory. Stored names are slash separated
// and relative to that root, which is what the profile foto column holds.
type Storage struct {
	root      string
	urlPrefix string
}

// NewStorage creates the media root if needed.
func NewStorage(cfg config.MediaConfig) (*Storage, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, PhotoDir), 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	prefix := cfg.URLPrefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Storage{root: root, urlPrefix: prefix}, nil
}

// Root returns the absolute media directory.
func (s *Storage) Root() string { return s.root }

// URLPrefix returns the public prefix files are served under.
func (s *Storage) URLPrefix() string { return s.urlPrefix }

// SavePhoto writes data under a fresh random name and returns its stored path.
// The file becomes visible only once completely written.
func (s *Storage) SavePhoto(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := path.Join(PhotoDir, strings.ReplaceAll(uuid.NewString(), "-", "")+ext)
	dest, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close photo: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("chmod photo: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("move photo into place: %w", err)
	}
	return name, nil
}

// Delete removes a stored file. A missing file is not an error.
func (s *Storage) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// URL returns the public path of a stored file, e.g. /media/perfiles/ab12.jpg.
func (s *Storage) URL(name string) string {
	return s.urlPrefix + strings.TrimPrefix(name, "/")
}

func (s *Storage) resolve(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(s.root, local), nil
}
