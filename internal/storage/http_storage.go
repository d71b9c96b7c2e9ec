package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ravin1100/multimodal-qa/pkg/models"
)

// HTTPImageSource downloads images by URL
type HTTPImageSource struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPImageSource creates an HTTP image source limited to maxBytes per image
func NewHTTPImageSource(maxBytes int64) *HTTPImageSource {
	// Transport tuned for single image downloads
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
	}
}

// Load fetches the image at ref. Non-200 responses are errors; there are no retries.
func (s *HTTPImageSource) Load(ctx context.Context, ref string) (*models.ImageFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Multimodal-QA/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status code %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	name := "image"
	if u, err := url.Parse(ref); err == nil {
		name = baseName(u.Path)
	}
	return NewImageFile(name, resp.Header.Get("Content-Type"), data), nil
}
