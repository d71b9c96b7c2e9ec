package observer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []SubmissionEvent
}

func (o *recordingObserver) OnEvent(ctx context.Context, event SubmissionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) GetObserverName() string { return o.name }

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event SubmissionEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                              { return "panicking" }

func TestEventPublisher_NotifiesAllObservers(t *testing.T) {
	p := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	p.Subscribe(a)
	p.Subscribe(b)

	p.NotifyObservers(context.Background(), SubmissionEvent{EventType: SubmissionStarted})
	p.Wait()

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("Expected both observers notified once, got a=%d b=%d", a.count(), b.count())
	}
	if a.events[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	p := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	p.Subscribe(a)
	p.Unsubscribe(a)

	p.NotifyObservers(context.Background(), SubmissionEvent{EventType: SubmissionStarted})
	p.Wait()

	if a.count() != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", a.count())
	}
}

func TestEventPublisher_RecoversFromPanics(t *testing.T) {
	p := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	p.Subscribe(panickingObserver{})
	p.Subscribe(a)

	p.NotifyObservers(context.Background(), SubmissionEvent{EventType: SubmissionFailed})
	p.Wait()

	if a.count() != 1 {
		t.Errorf("Expected healthy observer to still be notified, got %d", a.count())
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionRejected})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionStarted})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionSucceeded, ProcessingTime: 200 * time.Millisecond})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionStarted})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionSucceeded, ProcessingTime: 400 * time.Millisecond, Fallback: true})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionStarted})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionFailed})

	metrics := m.GetMetrics()
	expected := map[string]int64{
		"total_submissions":    3,
		"rejected_submissions": 1,
		"successful_requests":  2,
		"fallback_answers":     1,
		"failed_requests":      1,
		"avg_processing_ms":    300,
	}
	for key, want := range expected {
		if got := metrics[key].(int64); got != want {
			t.Errorf("%s: expected %d, got %d", key, want, got)
		}
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	o := NewLoggingObserver(l)
	o.OnEvent(context.Background(), SubmissionEvent{
		EventType:    SubmissionFailed,
		ImageName:    "blurry.png",
		ErrorMessage: "Model unavailable",
	})

	out := buf.String()
	for _, want := range []string{"Submission failed", "blurry.png", "Model unavailable", `"level":"error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q, got %s", want, out)
		}
	}
}
