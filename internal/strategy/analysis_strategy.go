package strategy

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ravin1100/multimodal-qa/internal/generator"
	"github.com/ravin1100/multimodal-qa/pkg/models"
)

const (
	multimodalPrompt = "Please answer this question about the image: %s"
	textOnlyPrompt   = "The accompanying image could not be analyzed. Answer this question as well as you can without it: %s"
)

// AnswerStrategy defines the interface for different ways of answering a question
type AnswerStrategy interface {
	Answer(ctx context.Context, img *models.ImageFile, question string) (string, error)
	GetStrategyName() string
}

// MultimodalStrategy sends the image together with the question
type MultimodalStrategy struct {
	generator generator.Generator
}

// NewMultimodalStrategy creates a new multimodal strategy
func NewMultimodalStrategy(g generator.Generator) AnswerStrategy {
	return &MultimodalStrategy{
		generator: g,
	}
}

// Answer validates that the image decodes, then asks the model about it
func (s *MultimodalStrategy) Answer(ctx context.Context, img *models.ImageFile, question string) (string, error) {
	if err := ValidateImage(img); err != nil {
		return "", err
	}
	return s.generator.Generate(ctx, fmt.Sprintf(multimodalPrompt, question), img)
}

// GetStrategyName returns the strategy name
func (s *MultimodalStrategy) GetStrategyName() string {
	return "multimodal"
}

// TextOnlyStrategy answers from the question alone
type TextOnlyStrategy struct {
	generator generator.Generator
}

// NewTextOnlyStrategy creates a new text-only strategy
func NewTextOnlyStrategy(g generator.Generator) AnswerStrategy {
	return &TextOnlyStrategy{
		generator: g,
	}
}

// Answer ignores the image
func (s *TextOnlyStrategy) Answer(ctx context.Context, _ *models.ImageFile, question string) (string, error) {
	return s.generator.Generate(ctx, fmt.Sprintf(textOnlyPrompt, question), nil)
}

// GetStrategyName returns the strategy name
func (s *TextOnlyStrategy) GetStrategyName() string {
	return "text_only"
}

// ValidateImage checks that the content is a decodable jpeg, png or gif
func ValidateImage(img *models.ImageFile) error {
	if img.Empty() {
		return fmt.Errorf("image is empty")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err != nil {
		return fmt.Errorf("cannot identify image file: %w", err)
	}
	return nil
}
