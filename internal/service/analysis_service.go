package service

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
	"github.com/ravin1100/multimodal-qa/internal/logger"
	"github.com/ravin1100/multimodal-qa/internal/strategy"
	"github.com/ravin1100/multimodal-qa/pkg/models"

	"github.com/sirupsen/logrus"
)

// ModelUnavailableMessage is the detail returned when no strategy produced an answer
const ModelUnavailableMessage = "Model unavailable"

// AnalysisService answers questions about uploaded images
type AnalysisService interface {
	Analyze(ctx context.Context, img *models.ImageFile, question string) (*models.AnalysisResult, error)
}

// analysisService tries the primary strategy and degrades to the fallback one
type analysisService struct {
	primary  strategy.AnswerStrategy
	fallback strategy.AnswerStrategy
}

// NewAnalysisService creates a service. When primary fails, fallback answers
// and the result is flagged as a fallback.
func NewAnalysisService(primary, fallback strategy.AnswerStrategy) AnalysisService {
	return &analysisService{
		primary:  primary,
		fallback: fallback,
	}
}

// Analyze returns the answer, or a service error with status 503 when both strategies fail
func (s *analysisService) Analyze(ctx context.Context, img *models.ImageFile, question string) (*models.AnalysisResult, error) {
	start := time.Now()
	fields := logrus.Fields{
		"image_name": img.Name,
		"mime_type":  img.MIMEType,
		"image_size": img.Size(),
	}

	answer, err := s.primary.Answer(ctx, img, question)
	if err == nil {
		logger.WithFields(fields).WithFields(logrus.Fields{
			"strategy":           s.primary.GetStrategyName(),
			"processing_time_ms": time.Since(start).Milliseconds(),
		}).Info("Question answered")
		return &models.AnalysisResult{Answer: answer}, nil
	}

	logger.WithError(err).WithFields(fields).
		WithField("strategy", s.primary.GetStrategyName()).
		Warn("Image analysis failed, falling back")

	answer, err = s.fallback.Answer(ctx, img, question)
	if err != nil {
		logger.WithError(err).WithFields(fields).
			WithField("strategy", s.fallback.GetStrategyName()).
			Error("Fallback answer failed")
		return nil, apperrors.NewServiceError(ModelUnavailableMessage, http.StatusServiceUnavailable, err)
	}

	logger.WithFields(fields).WithFields(logrus.Fields{
		"strategy":           s.fallback.GetStrategyName(),
		"processing_time_ms": time.Since(start).Milliseconds(),
	}).Info("Question answered without image")
	return &models.AnalysisResult{Answer: answer, Fallback: true}, nil
}
