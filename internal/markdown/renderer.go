package markdown

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns answer text into displayable HTML
type Renderer interface {
	Render(text string) (template.HTML, error)
}

// GoldmarkRenderer renders CommonMark plus GFM and lets raw HTML in the
// source through unchanged.
type GoldmarkRenderer struct {
	md goldmark.Markdown
}

// NewRenderer creates the default renderer
func NewRenderer() *GoldmarkRenderer {
	return &GoldmarkRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
				html.WithHardWraps(),
			),
		),
	}
}

// Render converts text to HTML. Empty text renders to nothing.
func (r *GoldmarkRenderer) Render(text string) (template.HTML, error) {
	if text == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
