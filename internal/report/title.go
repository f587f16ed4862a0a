package report

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const maxTitleRunes = 80

// Title picks a document title for a draft: its first heading, or else the
// first line of its plain text, shortened to maxTitleRunes.
func Title(draft string) string {
	src := []byte(draft)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = inlineText(h, src)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if title == "" {
		title = firstLine(doc, src)
	}
	return shorten(strings.TrimSpace(title))
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

// firstLine returns the first line of text of the first block that has
// any. Raw HTML carries no text nodes and is skipped.
func firstLine(doc ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && strings.TrimSpace(sb.String()) != "" {
				return ast.WalkStop, nil
			}
			return ast.WalkContinue, nil
		}
		t, ok := n.(*ast.Text)
		if !ok {
			return ast.WalkContinue, nil
		}
		sb.Write(t.Segment.Value(src))
		if (t.SoftLineBreak() || t.HardLineBreak()) && strings.TrimSpace(sb.String()) != "" {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleRunes {
		return s
	}
	return strings.TrimSpace(string(r[:maxTitleRunes-1])) + "…"
}
