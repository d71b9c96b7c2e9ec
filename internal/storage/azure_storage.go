package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/ravin1100/multimodal-qa/pkg/models"
)

// AzureScheme prefixes blob references: azblob://<container>/<blob path>
const AzureScheme = "azblob"

// AzureImageSource downloads images from Azure Blob Storage
type AzureImageSource struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureImageSource creates a blob source for the given storage account
func NewAzureImageSource(accountName, accountKey string, maxBytes int64) (*AzureImageSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureImageSource{client: client, maxBytes: maxBytes}, nil
}

// ParseBlobRef splits azblob://container/path/to/blob into its parts
func ParseBlobRef(ref string) (container, blob string, err error) {
	parsedURL, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob reference: %w", err)
	}
	if parsedURL.Scheme != AzureScheme {
		return "", "", fmt.Errorf("invalid blob reference: scheme must be %s", AzureScheme)
	}

	container = parsedURL.Host
	blob = strings.TrimPrefix(parsedURL.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob reference: expected %s://<container>/<blob>", AzureScheme)
	}
	return container, blob, nil
}

// Load downloads the blob referenced by ref
func (s *AzureImageSource) Load(ctx context.Context, ref string) (*models.ImageFile, error) {
	containerName, blobName, err := ParseBlobRef(ref)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	data, err := readLimited(retryReader, s.maxBytes)
	if err != nil {
		return nil, err
	}

	declared := ""
	if downloadResponse.ContentType != nil {
		declared = *downloadResponse.ContentType
	}
	return NewImageFile(baseName(blobName), declared, data), nil
}
