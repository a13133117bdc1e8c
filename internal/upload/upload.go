// Package upload stores group and profile images on the local filesystem
// and serves them back under /uploads/.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// URLPrefix is the path uploaded files are served under.
const URLPrefix = "/uploads/"

// ErrNotImage is returned when the uploaded bytes are not a supported image.
var ErrNotImage = errors.New("upload: file must be a png, jpeg, gif or webp image")

var allowed = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Store writes files below a base directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.dir }

// Save writes an image read from r under sub (a slash-separated
// sub-directory, may be empty) with a random name, and returns the URL path
// it is served at.
func (s *Store) Save(r io.Reader, sub string) (string, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	if !allowed[mt.String()] {
		return "", ErrNotImage
	}

	rel := path.Join(path.Clean("/"+sub), uuid.NewString()+mt.Extension())
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r)); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("write upload: %w", err)
	}
	return strings.TrimSuffix(URLPrefix, "/") + rel, nil
}

// Delete removes the file a stored image URL points at. URLs outside the
// upload prefix are ignored, as are files that are already gone.
func (s *Store) Delete(image string) error {
	if image == "" {
		return nil
	}
	p := image
	if u, err := url.Parse(image); err == nil {
		p = u.Path
	}
	if !strings.HasPrefix(p, URLPrefix) {
		return nil
	}
	rel := path.Clean("/" + strings.TrimPrefix(p, URLPrefix))
	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// Handler serves the uploaded files. Mount it at URLPrefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(strings.TrimSuffix(URLPrefix, "/"), http.FileServer(http.Dir(s.dir)))
}

// AbsoluteURL turns a path returned by Save into a full URL for r's host.
func AbsoluteURL(r *http.Request, p string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + p
}
