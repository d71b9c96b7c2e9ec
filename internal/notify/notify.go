package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity of a notification
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a transient, user-dismissible message
type Notification struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    Severity      `json:"status"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration"`
	Closable    bool          `json:"is_closable"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ExpiresAt returns the moment the notification auto-dismisses
func (n Notification) ExpiresAt() time.Time {
	return n.CreatedAt.Add(n.Duration)
}

// Error builds an error notification
func Error(description string, d time.Duration) Notification {
	return Notification{Title: "Error", Description: description, Severity: SeverityError, Duration: d, Closable: true}
}

// Warning builds a warning notification
func Warning(description string, d time.Duration) Notification {
	return Notification{Title: "Notice", Description: description, Severity: SeverityWarning, Duration: d, Closable: true}
}

// Info builds an informational notification
func Info(description string, d time.Duration) Notification {
	return Notification{Title: "Info", Description: description, Severity: SeverityInfo, Duration: d, Closable: true}
}

// Notifier accepts notifications for display
type Notifier interface {
	Notify(n Notification) Notification
}

// Queue keeps notifications in arrival order until they expire or are dismissed
type Queue struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
}

// NewQueue creates an empty queue using the wall clock
func NewQueue() *Queue {
	return NewQueueWithClock(time.Now)
}

// NewQueueWithClock creates an empty queue with a custom clock
func NewQueueWithClock(now func() time.Time) *Queue {
	return &Queue{now: now}
}

// Notify stores n, assigning an ID and creation time when missing
func (q *Queue) Notify(n Notification) Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}
	n.DurationMS = n.Duration.Milliseconds()

	q.pruneLocked()
	q.items = append(q.items, n)
	return n
}

// Active returns the notifications that have not yet expired, oldest first
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pruneLocked()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Dismiss removes a notification by ID. It reports whether it was present.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of active notifications
func (q *Queue) Len() int {
	return len(q.Active())
}

func (q *Queue) pruneLocked() {
	now := q.now()
	kept := q.items[:0]
	for _, n := range q.items {
		if now.Before(n.ExpiresAt()) {
			kept = append(kept, n)
		}
	}
	q.items = kept
}
