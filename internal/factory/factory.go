package factory

import (
	"fmt"
	"strings"

	"github.com/ravin1100/multimodal-qa/internal/storage"
	"github.com/ravin1100/multimodal-qa/pkg/validation"
)

// SourceType represents different places an image can be picked from
type SourceType string

const (
	// HTTPSource for images referenced by http(s) URL
	HTTPSource SourceType = "http"
	// AzureSource for Azure blob references
	AzureSource SourceType = "azure"
	// LocalSource for local file system paths
	LocalSource SourceType = "local"
)

// SourceFactory resolves an image reference to the source able to load it
type SourceFactory struct {
	local     storage.ImageSource
	http      storage.ImageSource
	azure     storage.ImageSource
	validator *validation.URLValidator
}

// NewSourceFactory creates a factory. azure may be nil when no account is configured.
func NewSourceFactory(local, http, azure storage.ImageSource) *SourceFactory {
	return &SourceFactory{
		local:     local,
		http:      http,
		azure:     azure,
		validator: validation.NewURLValidator(),
	}
}

// TypeOf classifies a reference by its scheme
func TypeOf(ref string) SourceType {
	lower := strings.ToLower(strings.TrimSpace(ref))
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return HTTPSource
	case strings.HasPrefix(lower, storage.AzureScheme+"://"):
		return AzureSource
	default:
		return LocalSource
	}
}

// ForRef returns the source that can load ref
func (f *SourceFactory) ForRef(ref string) (storage.ImageSource, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty image reference")
	}

	switch TypeOf(ref) {
	case HTTPSource:
		if err := f.validator.ValidateURL(ref); err != nil {
			return nil, err
		}
		return f.http, nil
	case AzureSource:
		if f.azure == nil {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		return f.azure, nil
	case LocalSource:
		if f.local == nil {
			return nil, fmt.Errorf("local files are not enabled")
		}
		return f.local, nil
	default:
		return nil, fmt.Errorf("unsupported image reference: %s", ref)
	}
}
