package transport

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/ravin1100/multimodal-qa/internal/config"
	apperrors "github.com/ravin1100/multimodal-qa/internal/errors"
	"github.com/ravin1100/multimodal-qa/internal/factory"
	"github.com/ravin1100/multimodal-qa/internal/logger"
	"github.com/ravin1100/multimodal-qa/internal/markdown"
	"github.com/ravin1100/multimodal-qa/internal/notify"
	"github.com/ravin1100/multimodal-qa/internal/observer"
	"github.com/ravin1100/multimodal-qa/internal/preview"
	"github.com/ravin1100/multimodal-qa/internal/storage"
	"github.com/ravin1100/multimodal-qa/internal/workflow"
	"github.com/ravin1100/multimodal-qa/pkg/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// ClientDeps are the collaborators the web client routes bind to
type ClientDeps struct {
	Controller    *workflow.Controller
	Notifications *notify.Queue
	Previews      *preview.Store
	Renderer      markdown.Renderer
	Sources       *factory.SourceFactory
	Metrics       *observer.MetricsObserver
}

type pageData struct {
	State         workflow.Snapshot
	AnswerHTML    template.HTML
	Notifications []notify.Notification
}

// NewClientHandler builds the web client routes
func NewClientHandler(deps ClientDeps, cfg *config.ClientConfig) http.Handler {
	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	r.Use(
		sameOriginOnly(),
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/", indexPage(deps))
	r.POST("/image", selectImage(deps, cfg))
	r.POST("/question", setQuestion(deps))
	r.POST("/submit", submit(deps, cfg))
	r.GET(preview.PathPrefix+":id", servePreview(deps.Previews))

	api := r.Group("/api")
	{
		api.GET("/state", func(c *gin.Context) { c.JSON(http.StatusOK, deps.Controller.State()) })
		api.GET("/notifications", listNotifications(deps.Notifications))
		api.DELETE("/notifications/:id", dismissNotification(deps.Notifications))
		api.GET("/metrics", func(c *gin.Context) { c.JSON(http.StatusOK, deps.Metrics.GetMetrics()) })
	}

	r.GET("/health", clientHealth)

	return r
}

// sameOriginOnly refuses requests sent from other sites. Same-origin
// requests and requests without an Origin header pass through.
func sameOriginOnly() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return false },
		AllowMethods:    []string{"GET", "POST", "DELETE"},
	})
}

func indexPage(deps ClientDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := deps.Controller.State()

		answerHTML, err := deps.Renderer.Render(state.Answer)
		if err != nil {
			logger.WithError(err).Error("Failed to render answer")
			answerHTML = template.HTML(template.HTMLEscapeString(state.Answer))
		}

		c.HTML(http.StatusOK, "index.html", pageData{
			State:         state,
			AnswerHTML:    answerHTML,
			Notifications: deps.Notifications.Active(),
		})
	}
}

// selectImage accepts either an uploaded file or a source reference
func selectImage(deps ClientDeps, cfg *config.ClientConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The page sends the unsaved question along with the picked image
		if question, ok := c.GetPostForm("question"); ok {
			deps.Controller.SetQuestion(question)
		}

		img, err := readSelectedImage(c, deps.Sources, cfg.MaxRequestBodySize)
		if err != nil {
			deps.Notifications.Notify(notify.Error(apperrors.Message(err), cfg.ErrorToastDuration))
			respondAfterAction(c, deps, http.StatusUnprocessableEntity, err)
			return
		}
		// An empty picker change leaves the current selection alone
		deps.Controller.SelectImage(img)
		respondAfterAction(c, deps, http.StatusOK, nil)
	}
}

func readSelectedImage(c *gin.Context, sources *factory.SourceFactory, maxBytes int64) (*models.ImageFile, error) {
	img, err := loadSelectedImage(c, sources, maxBytes)
	if err != nil || img == nil {
		return nil, err
	}
	if err := storage.EnsureImage(img); err != nil {
		return nil, apperrors.NewValidationError("The selected file is not an image", err)
	}
	return img, nil
}

func loadSelectedImage(c *gin.Context, sources *factory.SourceFactory, maxBytes int64) (*models.ImageFile, error) {
	fileHeader, err := c.FormFile("image")
	switch {
	case err == nil:
		img, err := storage.FromUpload(fileHeader, maxBytes)
		if err != nil {
			return nil, apperrors.NewValidationError("Could not read the selected image", err)
		}
		return img, nil
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return nil, apperrors.NewValidationError("Could not read the selected image", err)
	}

	ref := strings.TrimSpace(c.PostForm("source"))
	if ref == "" {
		return nil, nil
	}

	src, err := sources.ForRef(ref)
	if err != nil {
		return nil, apperrors.NewValidationError("Unsupported image source", err)
	}
	img, err := src.Load(c.Request.Context(), ref)
	if err != nil {
		return nil, apperrors.NewNetworkError("Could not load image from "+ref, err)
	}
	return img, nil
}

func setQuestion(deps ClientDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps.Controller.SetQuestion(c.PostForm("question"))
		respondAfterAction(c, deps, http.StatusOK, nil)
	}
}

func submit(deps ClientDeps, cfg *config.ClientConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// HTML forms post the question together with the submit
		if question, ok := c.GetPostForm("question"); ok {
			deps.Controller.SetQuestion(question)
		}

		// Leaving the page must not abort the analysis, only the deadline does
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), cfg.SubmitTimeout)
		defer cancel()

		err := deps.Controller.Submit(ctx)
		if errors.Is(err, workflow.ErrBusy) {
			respondAfterAction(c, deps, http.StatusConflict, err)
			return
		}
		// Other failures are already queued as notifications
		respondAfterAction(c, deps, http.StatusOK, nil)
	}
}

func servePreview(store *preview.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, apperrors.NewNotFoundError("Preview not found", nil))
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'none'; sandbox")
		c.Data(http.StatusOK, img.MIMEType, img.Data)
	}
}

func listNotifications(queue *notify.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, queue.Active())
	}
}

func dismissNotification(queue *notify.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !queue.Dismiss(c.Param("id")) {
			respondError(c, apperrors.NewNotFoundError("Notification not found", nil))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// respondAfterAction redirects browsers back to the page and answers API
// callers with the state, or with the error detail when status is not 200.
func respondAfterAction(c *gin.Context, deps ClientDeps, status int, err error) {
	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if status != http.StatusOK {
		respondDetail(c, status, apperrors.Message(err), err)
		return
	}
	c.JSON(http.StatusOK, deps.Controller.State())
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func clientHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Version: "1.0.0",
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}
