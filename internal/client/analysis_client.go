package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
	"github.com/ravin1100/multimodal-qa/internal/logger"
	"github.com/ravin1100/multimodal-qa/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	// AnalyzePath is the endpoint path on the analysis service
	AnalyzePath = "/analyze"

	// GenericFailureMessage is reported when the service gives no explanation
	GenericFailureMessage = "Failed to analyze image"

	imageField    = "image"
	questionField = "question"

	// error bodies larger than this are not worth decoding
	maxErrorBodyBytes = 64 * 1024
)

// AnalysisClient sends an image and a question to the analysis service
type AnalysisClient interface {
	Analyze(ctx context.Context, image *models.ImageFile, question string) (*models.AnalysisResult, error)
}

// HTTPAnalysisClient implements AnalysisClient over a multipart POST
type HTTPAnalysisClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAnalysisClient creates a client for the service at baseURL.
// The client sets no overall request timeout and never retries.
func NewHTTPAnalysisClient(baseURL string) *HTTPAnalysisClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return NewHTTPAnalysisClientWithHTTPClient(baseURL, &http.Client{Transport: transport})
}

// NewHTTPAnalysisClientWithHTTPClient creates a client that uses the given http.Client
func NewHTTPAnalysisClientWithHTTPClient(baseURL string, httpClient *http.Client) *HTTPAnalysisClient {
	return &HTTPAnalysisClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Endpoint returns the full URL requests are sent to
func (c *HTTPAnalysisClient) Endpoint() string {
	return c.baseURL + AnalyzePath
}

// Analyze posts the image and question and returns the service's answer.
// Failures are *errors.AppError values whose Message is meant for the user.
func (c *HTTPAnalysisClient) Analyze(ctx context.Context, image *models.ImageFile, question string) (*models.AnalysisResult, error) {
	body, contentType, err := encodeForm(image, question)
	if err != nil {
		return nil, apperrors.NewInternalError(GenericFailureMessage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), body)
	if err != nil {
		return nil, apperrors.NewInternalError(GenericFailureMessage, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.WithError(err).WithField("endpoint", c.Endpoint()).Error("Analysis request failed")
		return nil, apperrors.NewNetworkError(GenericFailureMessage, err)
	}
	defer resp.Body.Close()

	logger.WithFields(logrus.Fields{
		"endpoint":    c.Endpoint(),
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Analysis response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeServiceError(resp)
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewServiceError(GenericFailureMessage, resp.StatusCode,
			fmt.Errorf("decode analysis result: %w", err))
	}
	return &result, nil
}

func decodeServiceError(resp *http.Response) error {
	cause := fmt.Errorf("service error: status code %d", resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return apperrors.NewServiceError(GenericFailureMessage, resp.StatusCode, cause)
	}

	var payload models.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Detail == "" {
		return apperrors.NewServiceError(GenericFailureMessage, resp.StatusCode, cause)
	}
	return apperrors.NewServiceError(payload.Detail, resp.StatusCode, cause)
}

// encodeForm builds the multipart body with the image and question parts
func encodeForm(image *models.ImageFile, question string) (io.Reader, string, error) {
	if image == nil {
		return nil, "", fmt.Errorf("no image")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := image.Name
	if name == "" {
		name = "image"
	}
	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, escapeQuotes(name)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", err
	}

	if err := w.WriteField(questionField, question); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
