package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ravin1100/multimodal-qa/pkg/models"
)

// ImageSource loads a picked image from a reference such as a path or URL
type ImageSource interface {
	Load(ctx context.Context, ref string) (*models.ImageFile, error)
}

// NewImageFile builds an ImageFile, detecting the MIME type from content
// when the declared type is missing or generic.
func NewImageFile(name, declaredType string, data []byte) *models.ImageFile {
	mimeType := declaredType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMIMEType(data)
	}
	return &models.ImageFile{
		Name:     name,
		MIMEType: mimeType,
		Data:     data,
	}
}

// ErrNotImage is returned for content that does not sniff as an image
var ErrNotImage = errors.New("content is not an image")

// EnsureImage rejects content that is not an image by its bytes, whatever was
// declared. A non-image declared type is replaced by the detected one.
func EnsureImage(img *models.ImageFile) error {
	if img.Empty() {
		return ErrNotImage
	}
	detected := DetectMIMEType(img.Data)
	if !isImageType(detected) {
		return fmt.Errorf("%w: detected %s", ErrNotImage, detected)
	}
	if !isImageType(img.MIMEType) {
		img.MIMEType = detected
	}
	return nil
}

func isImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

// DetectMIMEType sniffs the content type of data
func DetectMIMEType(data []byte) string {
	return mimetype.Detect(data).String()
}

// FromUpload reads a multipart file upload into an ImageFile, up to maxBytes
func FromUpload(header *multipart.FileHeader, maxBytes int64) (*models.ImageFile, error) {
	if header == nil {
		return nil, fmt.Errorf("no file uploaded")
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, fmt.Errorf("file %q is too large (%d bytes, limit %d)", header.Filename, header.Size, maxBytes)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, maxBytes)
	if err != nil {
		return nil, err
	}
	return NewImageFile(header.Filename, header.Header.Get("Content-Type"), data), nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func baseName(p string) string {
	name := path.Base(p)
	if name == "." || name == "/" {
		return "image"
	}
	return name
}
