// Package uploads stores item images submitted with new items.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// URLPrefix is the public path under which stored images are served.
const URLPrefix = "/uploads"

// DefaultMaxBytes is the image size limit used when none is configured.
const DefaultMaxBytes = 5 << 20

// ErrTooLarge reports an image over the configured size limit.
var ErrTooLarge = errors.New("image exceeds size limit")

// ErrNotImage reports content that does not sniff as an image.
var ErrNotImage = errors.New("file is not an image")

// Store writes images into one directory.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates dir if needed and returns a Store writing into it.
// A non-positive maxBytes selects DefaultMaxBytes.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if dir == "" {
		return nil, errors.New("upload directory is empty")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory images are written to.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the size limit for one image.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// SaveFile stores a multipart file header and returns its public URL.
func (s *Store) SaveFile(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxBytes {
		return "", fmt.Errorf("%w: %w (%d bytes)", types.ErrValidation, ErrTooLarge, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return s.Save(f)
}

// Save sniffs r, rejects anything that is not an image or is larger than
// the limit, and writes it as <uuid><ext>. It returns the public URL of
// the stored file.
func (s *Store) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %w", types.ErrValidation, ErrTooLarge)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: %w (%s)", types.ErrValidation, ErrNotImage, mtype.String())
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate image name: %w", err)
	}
	name := id.String() + mtype.Extension()

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path.Join(URLPrefix, name), nil
}

// Remove deletes the file behind a URL returned by Save. URLs outside the
// upload prefix and already missing files are ignored.
func (s *Store) Remove(url string) error {
	name, ok := strings.CutPrefix(url, URLPrefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
