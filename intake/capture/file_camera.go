package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// FileCamera serves still image files as camera frames. Each facing mode
// maps to one file; a missing entry behaves like an absent camera.
type FileCamera struct {
	mu    sync.Mutex
	paths map[Facing]string
}

func NewFileCamera(paths map[Facing]string) *FileCamera {
	cp := make(map[Facing]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return &FileCamera{paths: cp}
}

// Load points a facing mode at a new file.
func (c *FileCamera) Load(facing Facing, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[facing] = path
}

func (c *FileCamera) Open(ctx context.Context, facing Facing) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	path, ok := c.paths[facing]
	c.mu.Unlock()
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: no %s camera", ErrNoCamera, facing)
	}
	return &fileStream{path: path}, nil
}

type fileStream struct {
	path    string
	stopped bool
}

func (s *fileStream) Frame() (image.Image, error) {
	if s.stopped {
		return nil, fmt.Errorf("capture: stream stopped")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return img, nil
}

func (s *fileStream) Stop() { s.stopped = true }
