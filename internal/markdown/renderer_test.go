package markdown

import (
	"strings"
	"testing"
)

func TestRender_Markdown(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{"emphasis", "A **cat**.", []string{"<strong>cat</strong>"}},
		{"heading", "# Answer", []string{"<h1>Answer</h1>"}},
		{"list", "- one\n- two", []string{"<ul>", "<li>one</li>", "<li>two</li>"}},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}},
		{"raw inline markup", "This is <mark>highlighted</mark> text", []string{"<mark>highlighted</mark>"}},
		{"raw block markup", "<div class=\"note\">kept</div>", []string{`<div class="note">kept</div>`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(string(out), want) {
					t.Errorf("Expected output to contain %q, got %s", want, out)
				}
			}
		})
	}
}

func TestRender_Empty(t *testing.T) {
	out, err := NewRenderer().Render("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("Expected empty output, got %q", out)
	}
}
