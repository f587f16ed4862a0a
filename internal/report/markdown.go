package report

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderHTML renders a markdown fragment. Drafts and critiques are model
// output, so raw HTML in them is dropped rather than passed to the page.
// A gomarkdown parser must not be reused, so each call builds its own.
func renderHTML(md []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML})
	return string(markdown.Render(p.Parse(md), r))
}
