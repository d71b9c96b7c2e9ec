package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
)

// URLValidator checks image references and the analysis service base URL
type URLValidator struct {
	schemes []string
	hosts   []string // empty allows any host
	// bare rejects query strings and fragments, for URLs that get paths appended
	bare bool
}

// Option customizes a URLValidator
type Option func(*URLValidator)

// WithSchemes replaces the accepted schemes
func WithSchemes(schemes ...string) Option {
	return func(v *URLValidator) { v.schemes = schemes }
}

// WithHosts restricts URLs to the given host names
func WithHosts(hosts ...string) Option {
	return func(v *URLValidator) { v.hosts = hosts }
}

// NewURLValidator accepts http(s) image URLs on any host
func NewURLValidator(opts ...Option) *URLValidator {
	v := &URLValidator{schemes: []string{"http", "https"}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewServiceURLValidator accepts a base URL that endpoint paths such as
// /analyze can be appended to
func NewServiceURLValidator(opts ...Option) *URLValidator {
	v := NewURLValidator(opts...)
	v.bare = true
	return v
}

// ValidateURL returns a validation AppError describing the first rule rawURL breaks
func (v *URLValidator) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	switch {
	case !slices.ContainsFunc(v.schemes, func(s string) bool { return strings.EqualFold(s, u.Scheme) }):
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	case u.Host == "":
		return apperrors.NewValidationError("URL must have a valid host", nil)
	case u.User != nil:
		return apperrors.NewValidationError("URL must not contain credentials", nil)
	case len(v.hosts) > 0 && !slices.Contains(v.hosts, u.Hostname()):
		return apperrors.NewValidationError("URL host not allowed", nil)
	case v.bare && (u.RawQuery != "" || u.Fragment != "" || u.ForceQuery):
		return apperrors.NewValidationError("Base URL must not have a query or fragment", nil)
	}
	return nil
}
