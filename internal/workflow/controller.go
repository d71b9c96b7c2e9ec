package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ravin1100/multimodal-qa/internal/client"
	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
	"github.com/ravin1100/multimodal-qa/internal/notify"
	"github.com/ravin1100/multimodal-qa/internal/observer"
	"github.com/ravin1100/multimodal-qa/internal/preview"
	"github.com/ravin1100/multimodal-qa/pkg/models"
)

const (
	// MissingInputMessage is shown when submit is attempted without an image or question
	MissingInputMessage = "Please select an image and enter a question"

	// FallbackMessage is shown when the service answered without looking at the image
	FallbackMessage = "Image analysis failed. Using text-only response."
)

var (
	// ErrMissingInput is returned by Submit when the form is incomplete
	ErrMissingInput = apperrors.NewValidationError(MissingInputMessage, nil)

	// ErrBusy is returned by Submit while another submission is in flight
	ErrBusy = apperrors.NewBusyError("An analysis is already in progress")
)

// Options tune the notifications emitted by the controller
type Options struct {
	ValidationToastDuration time.Duration
	ErrorToastDuration      time.Duration
	WarningToastDuration    time.Duration
}

// DefaultOptions returns the standard notification durations
func DefaultOptions() Options {
	return Options{
		ValidationToastDuration: 3 * time.Second,
		ErrorToastDuration:      5 * time.Second,
		WarningToastDuration:    5 * time.Second,
	}
}

// Snapshot is a copy of the controller state for the view layer
type Snapshot struct {
	ImageName  string `json:"image_name,omitempty"`
	ImageType  string `json:"image_type,omitempty"`
	ImageSize  int    `json:"image_size,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Fallback   bool   `json:"fallback"`
	Loading    bool   `json:"loading"`
}

// HasImage reports whether an image is selected
func (s Snapshot) HasImage() bool {
	return s.PreviewURL != ""
}

// Controller owns the state of one upload-and-ask session.
// The mutex is never held across the analysis request.
type Controller struct {
	client   client.AnalysisClient
	notifier notify.Notifier
	previews *preview.Store
	events   observer.Subject
	opts     Options

	mu       sync.Mutex
	image    *models.ImageFile
	handle   preview.Handle
	question string
	answer   string
	fallback bool
	loading  bool
}

// NewController creates a controller. events may be nil.
func NewController(
	analysisClient client.AnalysisClient,
	notifier notify.Notifier,
	previews *preview.Store,
	events observer.Subject,
	opts Options,
) *Controller {
	return &Controller{
		client:   analysisClient,
		notifier: notifier,
		previews: previews,
		events:   events,
		opts:     opts,
	}
}

// SelectImage replaces the selected image and regenerates its preview.
// The previous preview handle is released. A nil image is ignored.
func (c *Controller) SelectImage(img *models.ImageFile) {
	if img == nil {
		return
	}

	c.mu.Lock()
	old := c.handle
	c.image = img
	c.handle = c.previews.Create(img)
	c.mu.Unlock()

	c.previews.Release(old.ID)

	c.publish(context.Background(), observer.SubmissionEvent{
		EventType: observer.ImageSelected,
		ImageName: img.Name,
		Success:   true,
		Metadata: map[string]interface{}{
			"mime_type": img.MIMEType,
			"size":      img.Size(),
		},
	})
}

// SetQuestion replaces the question text verbatim
func (c *Controller) SetQuestion(text string) {
	c.mu.Lock()
	c.question = text
	c.mu.Unlock()
}

// Submit sends the selected image and question for analysis.
//
// An incomplete form emits an error notification and returns ErrMissingInput
// without touching the loading flag. While a submission is in flight further
// calls return ErrBusy. Any other error is the analysis failure, already
// reported as a notification.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	img, question := c.image, c.question
	if img == nil || question == "" {
		c.mu.Unlock()
		c.notifier.Notify(notify.Error(MissingInputMessage, c.opts.ValidationToastDuration))
		c.publish(ctx, observer.SubmissionEvent{
			EventType:    observer.SubmissionRejected,
			ErrorMessage: MissingInputMessage,
		})
		return ErrMissingInput
	}
	c.loading = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	start := time.Now()
	c.publish(ctx, observer.SubmissionEvent{EventType: observer.SubmissionStarted, ImageName: img.Name})

	result, err := c.analyze(ctx, img, question)
	if err != nil {
		message := apperrors.Message(err)
		c.notifier.Notify(notify.Error(message, c.opts.ErrorToastDuration))
		c.publish(ctx, observer.SubmissionEvent{
			EventType:      observer.SubmissionFailed,
			ImageName:      img.Name,
			ProcessingTime: time.Since(start),
			ErrorMessage:   message,
		})
		return err
	}

	c.mu.Lock()
	c.answer = result.Answer
	c.fallback = result.Fallback
	c.mu.Unlock()

	if result.Fallback {
		c.notifier.Notify(notify.Warning(FallbackMessage, c.opts.WarningToastDuration))
	}

	c.publish(ctx, observer.SubmissionEvent{
		EventType:      observer.SubmissionSucceeded,
		ImageName:      img.Name,
		ProcessingTime: time.Since(start),
		Success:        true,
		Fallback:       result.Fallback,
	})
	return nil
}

// analyze calls the client and turns a panic or an empty result into an error
func (c *Controller) analyze(ctx context.Context, img *models.ImageFile, question string) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.NewInternalError(client.GenericFailureMessage, fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	result, err = c.client.Analyze(ctx, img, question)
	if err == nil && result == nil {
		err = apperrors.NewInternalError(client.GenericFailureMessage, fmt.Errorf("empty analysis result"))
	}
	return result, err
}

// State returns a copy of the current state
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		PreviewURL: c.handle.URL,
		Question:   c.question,
		Answer:     c.answer,
		Fallback:   c.fallback,
		Loading:    c.loading,
	}
	if c.image != nil {
		s.ImageName = c.image.Name
		s.ImageType = c.image.MIMEType
		s.ImageSize = c.image.Size()
	}
	return s
}

// Loading reports whether a submission is in flight
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Close tears the session down and releases the current preview
func (c *Controller) Close() {
	c.mu.Lock()
	old := c.handle
	c.handle = preview.Handle{}
	c.image = nil
	c.mu.Unlock()

	c.previews.Release(old.ID)
}

func (c *Controller) publish(ctx context.Context, event observer.SubmissionEvent) {
	if c.events == nil {
		return
	}
	c.events.NotifyObservers(ctx, event)
}
