package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ravin1100/multimodal-qa/pkg/models"
)

// FileImageSource loads images from one directory tree on the local file system
type FileImageSource struct {
	root     string
	maxBytes int64
}

// NewFileImageSource creates a file source confined to root and limited to
// maxBytes per image
func NewFileImageSource(root string, maxBytes int64) *FileImageSource {
	return &FileImageSource{root: filepath.Clean(root), maxBytes: maxBytes}
}

// Load reads the file at ref. ref is relative to the root; an absolute ref
// must lie inside it. Symlinks cannot escape the root either.
func (s *FileImageSource) Load(ctx context.Context, ref string) (*models.ImageFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := s.relative(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenInRoot(s.root, rel)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, s.maxBytes)
	if err != nil {
		return nil, err
	}

	return NewImageFile(filepath.Base(rel), "", data), nil
}

// relative maps ref onto the root; escapes are rejected by os.OpenInRoot
func (s *FileImageSource) relative(ref string) (string, error) {
	if !filepath.IsAbs(ref) {
		return ref, nil
	}
	rel, err := filepath.Rel(s.root, ref)
	if err != nil {
		return "", fmt.Errorf("%s is outside the image directory: %w", ref, err)
	}
	return rel, nil
}
