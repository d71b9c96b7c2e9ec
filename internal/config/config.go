package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ravin1100/multimodal-qa/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ClientConfig configures the web client (cmd/webclient)
type ClientConfig struct {
	Host               string
	Port               string        `validate:"required,numeric"`
	AnalysisBaseURL    string        `validate:"required,url"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	MaxRequestBodySize int64         `validate:"gt=0"`

	ValidationToastDuration time.Duration `validate:"gt=0"`
	ErrorToastDuration      time.Duration `validate:"gt=0"`
	WarningToastDuration    time.Duration `validate:"gt=0"`

	// SubmitTimeout bounds one analysis from the web UI
	SubmitTimeout time.Duration `validate:"gt=0"`

	// LocalImageDir is the only directory local source references may read
	// from. Empty disables local references.
	LocalImageDir string `validate:"omitempty,dir"`

	AzureAccountName string
	AzureAccountKey  string `validate:"required_with=AzureAccountName"`

	LogLevel string `validate:"omitempty,oneof=debug info warn error"`
}

// ServiceConfig configures the analysis service (cmd/analyzer)
type ServiceConfig struct {
	Host               string
	Port               string        `validate:"required,numeric"`
	GoogleAPIKey       string        `validate:"required"`
	GeminiModel        string        `validate:"required"`
	CORSAllowOrigins   []string      `validate:"min=1"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	MaxRequestBodySize int64         `validate:"gt=0"`
	LogLevel           string        `validate:"omitempty,oneof=debug info warn error"`
}

var validate = validator.New()

// ServerAddress returns the listen address of the web client
func (c *ClientConfig) ServerAddress() string {
	return joinHostPort(c.Host, c.Port)
}

// LocalImagesEnabled reports whether local path references are accepted
func (c *ClientConfig) LocalImagesEnabled() bool {
	return c.LocalImageDir != ""
}

// AzureEnabled reports whether blob references can be resolved
func (c *ClientConfig) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// ServerAddress returns the listen address of the analysis service
func (c *ServiceConfig) ServerAddress() string {
	return joinHostPort(c.Host, c.Port)
}

func joinHostPort(host, port string) string {
	// Trim any whitespace from host and port
	return net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(port))
}

// LoadClientFromEnv reads the web client configuration from the environment
func LoadClientFromEnv() (*ClientConfig, error) {
	v := viper.New()
	v.SetDefault("HOST", "127.0.0.1")
	v.SetDefault("PORT", "3000")
	v.SetDefault("ANALYSIS_BASE_URL", "http://localhost:8000")
	v.SetDefault("REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("VALIDATION_TOAST_DURATION", 3*time.Second)
	v.SetDefault("ERROR_TOAST_DURATION", 5*time.Second)
	v.SetDefault("WARNING_TOAST_DURATION", 5*time.Second)
	v.SetDefault("SUBMIT_TIMEOUT", 5*time.Minute)
	v.SetDefault("LOCAL_IMAGE_DIR", "")
	v.SetDefault("AZURE_STORAGE_ACCOUNT", "")
	v.SetDefault("AZURE_STORAGE_KEY", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	cfg := &ClientConfig{
		Host:                    v.GetString("HOST"),
		Port:                    strings.TrimSpace(v.GetString("PORT")),
		AnalysisBaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("ANALYSIS_BASE_URL")), "/"),
		RequestTimeout:          v.GetDuration("REQUEST_TIMEOUT"),
		MaxRequestBodySize:      v.GetInt64("MAX_REQUEST_BODY_SIZE"),
		ValidationToastDuration: v.GetDuration("VALIDATION_TOAST_DURATION"),
		ErrorToastDuration:      v.GetDuration("ERROR_TOAST_DURATION"),
		WarningToastDuration:    v.GetDuration("WARNING_TOAST_DURATION"),
		SubmitTimeout:           v.GetDuration("SUBMIT_TIMEOUT"),
		LocalImageDir:           strings.TrimSpace(v.GetString("LOCAL_IMAGE_DIR")),
		AzureAccountName:        v.GetString("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:         v.GetString("AZURE_STORAGE_KEY"),
		LogLevel:                strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if err := validatePort(cfg.Port); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if err := validation.NewServiceURLValidator().ValidateURL(cfg.AnalysisBaseURL); err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_BASE_URL: %w", err)
	}
	return cfg, nil
}

// LoadServiceFromEnv reads the analysis service configuration from the environment
func LoadServiceFromEnv() (*ServiceConfig, error) {
	v := viper.New()
	v.SetDefault("SERVICE_HOST", "0.0.0.0")
	v.SetDefault("SERVICE_PORT", "8000")
	v.SetDefault("GOOGLE_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	cfg := &ServiceConfig{
		Host:               v.GetString("SERVICE_HOST"),
		Port:               strings.TrimSpace(v.GetString("SERVICE_PORT")),
		GoogleAPIKey:       strings.TrimSpace(v.GetString("GOOGLE_API_KEY")),
		GeminiModel:        v.GetString("GEMINI_MODEL"),
		CORSAllowOrigins:   splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		MaxRequestBodySize: v.GetInt64("MAX_REQUEST_BODY_SIZE"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY environment variable not set")
	}
	if err := validatePort(cfg.Port); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}
	return cfg, nil
}

// Validate port is numeric and in range
func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", port)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
