package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ravin1100/multimodal-qa/internal/client"
	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
	"github.com/ravin1100/multimodal-qa/internal/logger"
	"github.com/ravin1100/multimodal-qa/internal/notify"
	"github.com/ravin1100/multimodal-qa/internal/observer"
	"github.com/ravin1100/multimodal-qa/internal/preview"
	"github.com/ravin1100/multimodal-qa/pkg/models"
)

func init() {
	logger.SetOutput(io.Discard)
}

// fakeClient records calls and the loading flag seen while in flight
type fakeClient struct {
	mu           sync.Mutex
	calls        int
	result       *models.AnalysisResult
	err          error
	panicWith    interface{}
	loadingSeen  bool
	controller   *Controller
	block        chan struct{}
	started      chan struct{}
	lastQuestion string
}

func (f *fakeClient) Analyze(ctx context.Context, image *models.ImageFile, question string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuestion = question
	f.mu.Unlock()

	if f.controller != nil {
		f.loadingSeen = f.controller.Loading()
	}
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result, f.err
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return n
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.items))
	copy(out, r.items)
	return out
}

func catImage() *models.ImageFile {
	return &models.ImageFile{Name: "cat.png", MIMEType: "image/png", Data: []byte{0x89, 0x50, 0x4E, 0x47}}
}

func newTestController(c client.AnalysisClient) (*Controller, *recordingNotifier, *preview.Store) {
	n := &recordingNotifier{}
	store := preview.NewStore()
	ctrl := NewController(c, n, store, nil, DefaultOptions())
	if f, ok := c.(*fakeClient); ok {
		f.controller = ctrl
	}
	return ctrl, n, store
}

func TestSubmit_MissingInput(t *testing.T) {
	tests := []struct {
		name     string
		image    *models.ImageFile
		question string
	}{
		{"no image", nil, "test"},
		{"empty question", catImage(), ""},
		{"nothing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{result: &models.AnalysisResult{Answer: "unused"}}
			ctrl, n, _ := newTestController(fc)
			ctrl.SelectImage(tt.image)
			ctrl.SetQuestion(tt.question)

			err := ctrl.Submit(context.Background())
			if !errors.Is(err, ErrMissingInput) {
				t.Errorf("Expected ErrMissingInput, got %v", err)
			}
			if fc.callCount() != 0 {
				t.Errorf("Expected no network call, got %d", fc.callCount())
			}
			if ctrl.Loading() {
				t.Error("Expected loading flag to stay false")
			}

			got := n.all()
			if len(got) != 1 {
				t.Fatalf("Expected 1 notification, got %d", len(got))
			}
			if got[0].Description != MissingInputMessage || got[0].Severity != notify.SeverityError {
				t.Errorf("Unexpected notification: %+v", got[0])
			}
			if got[0].Duration != 3*time.Second {
				t.Errorf("Expected 3s duration, got %v", got[0].Duration)
			}
		})
	}
}

func TestSubmit_WhitespaceQuestionIsAccepted(t *testing.T) {
	fc := &fakeClient{result: &models.AnalysisResult{Answer: "ok"}}
	ctrl, _, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("  ")

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if fc.lastQuestion != "  " {
		t.Errorf("Expected question forwarded verbatim, got %q", fc.lastQuestion)
	}
}

func TestSubmit_Success(t *testing.T) {
	fc := &fakeClient{result: &models.AnalysisResult{Answer: "A cat.", Fallback: false}}
	ctrl, n, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("What animal is this?")

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	state := ctrl.State()
	if state.Answer != "A cat." {
		t.Errorf("Expected answer 'A cat.', got %q", state.Answer)
	}
	if state.Loading {
		t.Error("Expected loading flag to be reset")
	}
	if !fc.loadingSeen {
		t.Error("Expected loading flag to be true during the request")
	}
	if len(n.all()) != 0 {
		t.Errorf("Expected no notifications, got %+v", n.all())
	}
}

func TestSubmit_Fallback(t *testing.T) {
	fc := &fakeClient{result: &models.AnalysisResult{Answer: "Probably a cat.", Fallback: true}}
	ctrl, n, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("What animal is this?")

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	state := ctrl.State()
	if state.Answer != "Probably a cat." || !state.Fallback {
		t.Errorf("Unexpected state: %+v", state)
	}

	got := n.all()
	if len(got) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(got))
	}
	if got[0].Severity != notify.SeverityWarning || got[0].Description != FallbackMessage {
		t.Errorf("Unexpected notification: %+v", got[0])
	}
	if got[0].Duration <= DefaultOptions().ValidationToastDuration {
		t.Errorf("Expected warning to last longer than validation errors, got %v", got[0].Duration)
	}
}

func TestSubmit_Failure(t *testing.T) {
	fc := &fakeClient{err: apperrors.NewServiceError("Model unavailable", http.StatusServiceUnavailable, nil)}
	ctrl, n, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("Describe this")

	err := ctrl.Submit(context.Background())
	if err == nil {
		t.Fatal("Expected error, got none")
	}
	if ctrl.Loading() {
		t.Error("Expected loading flag to be reset after failure")
	}
	if !fc.loadingSeen {
		t.Error("Expected loading flag to be true during the request")
	}

	got := n.all()
	if len(got) != 1 || got[0].Description != "Model unavailable" || got[0].Severity != notify.SeverityError {
		t.Fatalf("Unexpected notifications: %+v", got)
	}
	if got[0].Duration != 5*time.Second {
		t.Errorf("Expected 5s duration, got %v", got[0].Duration)
	}
}

func TestSubmit_FailureKeepsPreviousAnswer(t *testing.T) {
	fc := &fakeClient{result: &models.AnalysisResult{Answer: "first"}}
	ctrl, _, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("q")
	ctrl.Submit(context.Background())

	fc.result = nil
	fc.err = errors.New("boom")
	ctrl.Submit(context.Background())

	if ctrl.State().Answer != "first" {
		t.Errorf("Expected previous answer to remain, got %q", ctrl.State().Answer)
	}
}

func TestSubmit_PanicReleasesLoading(t *testing.T) {
	fc := &fakeClient{panicWith: "transport exploded"}
	ctrl, n, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("q")

	if err := ctrl.Submit(context.Background()); err == nil {
		t.Fatal("Expected error from panicking client")
	}
	if ctrl.Loading() {
		t.Error("Expected loading flag to be reset after panic")
	}
	got := n.all()
	if len(got) != 1 || got[0].Description != client.GenericFailureMessage {
		t.Errorf("Unexpected notifications: %+v", got)
	}
}

func TestSubmit_NilResult(t *testing.T) {
	fc := &fakeClient{}
	ctrl, _, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("q")

	if err := ctrl.Submit(context.Background()); err == nil {
		t.Fatal("Expected error for empty result")
	}
	if ctrl.Loading() {
		t.Error("Expected loading flag to be reset")
	}
}

func TestSubmit_RejectsWhileLoading(t *testing.T) {
	fc := &fakeClient{
		result:  &models.AnalysisResult{Answer: "done"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	ctrl, n, _ := newTestController(fc)
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("q")

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background()) }()

	<-fc.started
	if err := ctrl.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(fc.block)
	if err := <-done; err != nil {
		t.Fatalf("Expected first submission to succeed, got %v", err)
	}

	if fc.callCount() != 1 {
		t.Errorf("Expected exactly 1 request, got %d", fc.callCount())
	}
	if len(n.all()) != 0 {
		t.Errorf("Expected busy rejection to be silent, got %+v", n.all())
	}
}

func TestSelectImage_ReplacesPreview(t *testing.T) {
	ctrl, _, store := newTestController(&fakeClient{})

	ctrl.SelectImage(catImage())
	first := ctrl.State().PreviewURL
	if first == "" {
		t.Fatal("Expected a preview after selecting an image")
	}

	second := &models.ImageFile{Name: "dog.jpg", MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}
	ctrl.SelectImage(second)

	state := ctrl.State()
	if state.PreviewURL == first {
		t.Error("Expected a new preview for a new image")
	}
	if state.ImageName != "dog.jpg" {
		t.Errorf("Expected dog.jpg to replace cat.png, got %s", state.ImageName)
	}
	if store.Len() != 1 {
		t.Errorf("Expected the superseded preview to be released, %d live", store.Len())
	}
}

func TestSelectImage_NilIsIgnored(t *testing.T) {
	ctrl, _, store := newTestController(&fakeClient{})
	ctrl.SelectImage(catImage())
	ctrl.SelectImage(nil)

	if ctrl.State().ImageName != "cat.png" {
		t.Error("Expected nil selection to keep the current image")
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 live preview, got %d", store.Len())
	}
}

func TestClose_ReleasesPreview(t *testing.T) {
	ctrl, _, store := newTestController(&fakeClient{})
	ctrl.SelectImage(catImage())
	ctrl.Close()

	if store.Len() != 0 {
		t.Errorf("Expected no live previews after Close, got %d", store.Len())
	}
	if ctrl.State().HasImage() {
		t.Error("Expected no image after Close")
	}
}

func TestSubmit_PublishesEvents(t *testing.T) {
	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(metrics)

	fc := &fakeClient{result: &models.AnalysisResult{Answer: "a", Fallback: true}}
	ctrl := NewController(fc, &recordingNotifier{}, preview.NewStore(), publisher, DefaultOptions())

	ctrl.Submit(context.Background())
	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("q")
	ctrl.Submit(context.Background())
	publisher.Wait()

	m := metrics.GetMetrics()
	if m["rejected_submissions"].(int64) != 1 || m["total_submissions"].(int64) != 1 || m["fallback_answers"].(int64) != 1 {
		t.Errorf("Unexpected metrics: %+v", m)
	}
}

// The scenarios below exercise the controller against a real HTTP client.

func newServerController(t *testing.T, handler http.HandlerFunc) (*Controller, *notify.Queue, *int) {
	t.Helper()
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	queue := notify.NewQueue()
	ctrl := NewController(client.NewHTTPAnalysisClient(server.URL), queue, preview.NewStore(), nil, DefaultOptions())
	return ctrl, queue, &requests
}

func TestScenario_CatAnswer(t *testing.T) {
	ctrl, queue, requests := newServerController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"A cat.","fallback":false}`))
	})

	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("What animal is this?")
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if ctrl.State().Answer != "A cat." {
		t.Errorf("Expected 'A cat.', got %q", ctrl.State().Answer)
	}
	if queue.Len() != 0 {
		t.Errorf("Expected no notifications, got %+v", queue.Active())
	}
	if *requests != 1 {
		t.Errorf("Expected 1 request, got %d", *requests)
	}
}

func TestScenario_ModelUnavailable(t *testing.T) {
	ctrl, queue, _ := newServerController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"Model unavailable"}`))
	})

	ctrl.SelectImage(&models.ImageFile{Name: "blurry.png", MIMEType: "image/png", Data: []byte{1}})
	ctrl.SetQuestion("Describe this")
	ctrl.Submit(context.Background())

	active := queue.Active()
	if len(active) != 1 || active[0].Description != "Model unavailable" {
		t.Fatalf("Expected 'Model unavailable' notification, got %+v", active)
	}
	if ctrl.Loading() {
		t.Error("Expected loading flag reset")
	}
}

func TestScenario_TransportFailure(t *testing.T) {
	ctrl, queue, _ := newServerController(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	})

	ctrl.SelectImage(catImage())
	ctrl.SetQuestion("q")
	ctrl.Submit(context.Background())

	active := queue.Active()
	if len(active) != 1 || active[0].Description != "Failed to analyze image" {
		t.Fatalf("Expected generic failure notification, got %+v", active)
	}
}

func TestScenario_NoImage(t *testing.T) {
	ctrl, queue, requests := newServerController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"unused"}`))
	})

	ctrl.SetQuestion("test")
	ctrl.Submit(context.Background())

	if *requests != 0 {
		t.Errorf("Expected zero HTTP requests, got %d", *requests)
	}
	active := queue.Active()
	if len(active) != 1 || active[0].Description != MissingInputMessage {
		t.Fatalf("Expected validation notification, got %+v", active)
	}
}
