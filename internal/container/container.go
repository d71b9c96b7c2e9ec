package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ravin1100/multimodal-qa/internal/client"
	"github.com/ravin1100/multimodal-qa/internal/config"
	"github.com/ravin1100/multimodal-qa/internal/factory"
	"github.com/ravin1100/multimodal-qa/internal/generator"
	"github.com/ravin1100/multimodal-qa/internal/logger"
	"github.com/ravin1100/multimodal-qa/internal/markdown"
	"github.com/ravin1100/multimodal-qa/internal/notify"
	"github.com/ravin1100/multimodal-qa/internal/observer"
	"github.com/ravin1100/multimodal-qa/internal/preview"
	"github.com/ravin1100/multimodal-qa/internal/service"
	"github.com/ravin1100/multimodal-qa/internal/storage"
	"github.com/ravin1100/multimodal-qa/internal/strategy"
	"github.com/ravin1100/multimodal-qa/internal/transport"
	"github.com/ravin1100/multimodal-qa/internal/workflow"
)

// ClientContainer holds the web client dependencies
type ClientContainer struct {
	config     *config.ClientConfig
	controller *workflow.Controller
	previews   *preview.Store
	events     *observer.EventPublisher
	handler    http.Handler
}

// NewClientContainer wires the web client
func NewClientContainer(cfg *config.ClientConfig) (*ClientContainer, error) {
	var azure storage.ImageSource
	if cfg.AzureEnabled() {
		src, err := storage.NewAzureImageSource(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.MaxRequestBodySize)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure image source: %w", err)
		}
		azure = src
	}

	var local storage.ImageSource
	if cfg.LocalImagesEnabled() {
		local = storage.NewFileImageSource(cfg.LocalImageDir, cfg.MaxRequestBodySize)
	}

	sources := factory.NewSourceFactory(local, storage.NewHTTPImageSource(cfg.MaxRequestBodySize), azure)

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	queue := notify.NewQueue()
	previews := preview.NewStore()
	controller := workflow.NewController(
		client.NewHTTPAnalysisClient(cfg.AnalysisBaseURL),
		queue,
		previews,
		events,
		workflow.Options{
			ValidationToastDuration: cfg.ValidationToastDuration,
			ErrorToastDuration:      cfg.ErrorToastDuration,
			WarningToastDuration:    cfg.WarningToastDuration,
		},
	)

	handler := transport.NewClientHandler(transport.ClientDeps{
		Controller:    controller,
		Notifications: queue,
		Previews:      previews,
		Renderer:      markdown.NewRenderer(),
		Sources:       sources,
		Metrics:       metrics,
	}, cfg)

	return &ClientContainer{
		config:     cfg,
		controller: controller,
		previews:   previews,
		events:     events,
		handler:    handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *ClientContainer) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *ClientContainer) Config() *config.ClientConfig {
	return c.config
}

// Close releases the session preview and flushes pending events
func (c *ClientContainer) Close() {
	c.controller.Close()
	c.previews.Close()
	c.events.Wait()
}

// ServiceContainer holds the analysis service dependencies
type ServiceContainer struct {
	config    *config.ServiceConfig
	generator *generator.GeminiGenerator
	handler   http.Handler
}

// NewServiceContainer wires the analysis service
func NewServiceContainer(ctx context.Context, cfg *config.ServiceConfig) (*ServiceContainer, error) {
	gen, err := generator.NewGeminiGenerator(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	svc := service.NewAnalysisService(
		strategy.NewMultimodalStrategy(gen),
		strategy.NewTextOnlyStrategy(gen),
	)

	return &ServiceContainer{
		config:    cfg,
		generator: gen,
		handler:   transport.NewServiceHandler(svc, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *ServiceContainer) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *ServiceContainer) Config() *config.ServiceConfig {
	return c.config
}

// Close releases the model client
func (c *ServiceContainer) Close() error {
	return c.generator.Close()
}
