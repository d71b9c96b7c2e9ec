package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SubmissionEvent represents one step of a submission cycle
type SubmissionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	ImageName      string                 `json:"image_name,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	Fallback       bool                   `json:"fallback,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of submission event
type EventType string

const (
	// SubmissionRejected when input validation fails before any request
	SubmissionRejected EventType = "submission_rejected"
	// SubmissionStarted when the analysis request is sent
	SubmissionStarted EventType = "submission_started"
	// SubmissionSucceeded when an answer was received
	SubmissionSucceeded EventType = "submission_succeeded"
	// SubmissionFailed when the request failed
	SubmissionFailed EventType = "submission_failed"
	// ImageSelected when the user picks a new image
	ImageSelected EventType = "image_selected"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SubmissionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SubmissionEvent)
}

// LoggingObserver logs submission events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles submission events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event SubmissionEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"image_name":      event.ImageName,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.Fallback {
		fields["fallback"] = true
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case SubmissionStarted:
		o.logger.WithFields(fields).Info("Submission started")
	case SubmissionSucceeded:
		o.logger.WithFields(fields).Info("Submission succeeded")
	case SubmissionFailed:
		o.logger.WithFields(fields).Error("Submission failed")
	case SubmissionRejected:
		o.logger.WithFields(fields).Warn("Submission rejected")
	case ImageSelected:
		o.logger.WithFields(fields).Debug("Image selected")
	default:
		o.logger.WithFields(fields).Info("Submission event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from submission events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalSubmissions    int64
	rejectedSubmissions int64
	successfulRequests  int64
	fallbackAnswers     int64
	failedRequests      int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles submission events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SubmissionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SubmissionRejected:
		o.rejectedSubmissions++
	case SubmissionStarted:
		o.totalSubmissions++
	case SubmissionSucceeded:
		o.successfulRequests++
		o.totalProcessingTime += event.ProcessingTime
		if event.Fallback {
			o.fallbackAnswers++
		}
	case SubmissionFailed:
		o.failedRequests++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulRequests > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulRequests)
	}

	return map[string]interface{}{
		"total_submissions":    o.totalSubmissions,
		"rejected_submissions": o.rejectedSubmissions,
		"successful_requests":  o.successfulRequests,
		"fallback_answers":     o.fallbackAnswers,
		"failed_requests":      o.failedRequests,
		"avg_processing_ms":    avgProcessingTime.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SubmissionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every in-flight notification has been delivered
func (p *EventPublisher) Wait() {
	p.wg.Wait()
}
