package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ravin1100/multimodal-qa/internal/config"
	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
	"github.com/ravin1100/multimodal-qa/internal/logger"
	"github.com/ravin1100/multimodal-qa/internal/service"
	"github.com/ravin1100/multimodal-qa/internal/storage"
	"github.com/ravin1100/multimodal-qa/pkg/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewServiceHandler builds the analysis service routes
func NewServiceHandler(svc service.AnalysisService, cfg *config.ServiceConfig) http.Handler {
	r := gin.Default()

	r.Use(
		corsMiddleware(cfg.CORSAllowOrigins),
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", serviceHealth)
	r.POST("/analyze", analyzeUpload(svc, cfg))

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}

func analyzeUpload(svc service.AnalysisService, cfg *config.ServiceConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
			"request_id": c.GetString("request_id"),
		}).Info("Processing analysis request")

		fileHeader, err := c.FormFile("image")
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				respondDetail(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
				return
			}
			respondDetail(c, http.StatusUnprocessableEntity, "Field required: image", err)
			return
		}

		question, ok := c.GetPostForm("question")
		if !ok {
			respondDetail(c, http.StatusUnprocessableEntity, "Field required: question", nil)
			return
		}

		img, err := storage.FromUpload(fileHeader, cfg.MaxRequestBodySize)
		if err != nil {
			respondDetail(c, http.StatusUnprocessableEntity, "Could not read uploaded image", err)
			return
		}

		result, err := svc.Analyze(ctx, img, question)
		if err != nil {
			respondDetail(c, apperrors.GetStatusCode(err), apperrors.Message(err), err)
			return
		}

		logger.WithFields(logrus.Fields{
			"image_name":         img.Name,
			"fallback":           result.Fallback,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"request_id":         c.GetString("request_id"),
		}).Info("Analysis request completed")

		c.JSON(http.StatusOK, result)
	}
}

func serviceHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "healthy"})
}
