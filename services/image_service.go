package services

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// PublicPrefix is the URL path the upload directory is served under.
const PublicPrefix = "/uploads/"

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
	ErrImageNotFound    = errors.New("image not found")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageStore keeps uploaded images on local disk under root/<subdir>.
type ImageStore struct {
	root     string
	maxBytes int64
	logger   *zap.Logger
}

func NewImageStore(root string, maxBytes int64, logger *zap.Logger) *ImageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageStore{root: root, maxBytes: maxBytes, logger: logger}
}

func (s *ImageStore) Root() string { return s.root }

// Save writes data under subdir with a ULID file name and returns the path
// relative to the store root, e.g. "documents/01J...jpg".
func (s *ImageStore) Save(subdir, declaredType string, data []byte) (string, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", ErrImageTooLarge
	}
	ext, err := extensionFor(declaredType, data)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir uploads dir: %w", err)
	}

	name := ulid.Make().String() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	rel := path.Join(subdir, name)
	s.logger.Debug("image stored", zap.String("path", rel), zap.Int("bytes", len(data)))
	return rel, nil
}

// SaveUpload stores one multipart file.
func (s *ImageStore) SaveUpload(subdir string, fh *multipart.FileHeader) (string, error) {
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", ErrImageTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	limit := s.maxBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return s.Save(subdir, fh.Header.Get("Content-Type"), data)
}

// Remove deletes stored images; used to roll back a failed registration.
func (s *ImageStore) Remove(rels ...string) {
	for _, rel := range rels {
		if rel == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove image failed", zap.String("path", rel), zap.Error(err))
		}
	}
}

// URL is the public path of a stored image.
func (s *ImageStore) URL(rel string) string {
	return PublicPrefix + rel
}

// Resolve maps a public image URL (absolute or path-only) back to a file
// inside the store. URLs outside the upload prefix are rejected.
func (s *ImageStore) Resolve(imageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}
	p := path.Clean("/" + u.Path)
	if !strings.HasPrefix(p, PublicPrefix) {
		return "", ErrImageNotFound
	}
	rel := strings.TrimPrefix(p, PublicPrefix)
	if rel == "" || rel == "." {
		return "", ErrImageNotFound
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Read loads the bytes behind a public image URL.
func (s *ImageStore) Read(imageURL string) ([]byte, error) {
	full, err := s.Resolve(imageURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrImageNotFound
	}
	return data, err
}

func extensionFor(declaredType string, data []byte) (string, error) {
	if mt, _, err := mime.ParseMediaType(declaredType); err == nil {
		if ext, ok := imageExtensions[mt]; ok {
			return ext, nil
		}
	}
	if ext, ok := imageExtensions[http.DetectContentType(data)]; ok {
		return ext, nil
	}
	return "", ErrUnsupportedImage
}
