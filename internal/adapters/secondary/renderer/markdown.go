package renderer

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownRenderer converts assistant markdown to sanitized HTML for UI
// embedding. Gemini summaries routinely contain lists, emphasis, and inline
// code; sanitization strips anything else the model might produce.
type MarkdownRenderer struct {
	md       goldmark.Markdown
	sanitize *bluemonday.Policy
}

// NewMarkdownRenderer creates a renderer with GFM extensions and a UGC
// sanitization policy.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		sanitize: bluemonday.UGCPolicy(),
	}
}

// RenderMarkdown converts markdown to sanitized HTML.
func (r *MarkdownRenderer) RenderMarkdown(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	return r.sanitize.Sanitize(buf.String()), nil
}
