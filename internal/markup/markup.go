// Package markup shields structured fragments of a draft (fenced code
// blocks, inline code spans, HTML tags) from an editing oracle. Fragments
// are swapped for numbered [KEEPn] tokens before the draft is sent and
// swapped back afterwards.
package markup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`\n]+`")
	reHTMLTag    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	reToken      = regexp.MustCompile(`\[KEEP(\d+)\]`)
)

// Shield is a draft with its structured fragments replaced by tokens.
type Shield struct {
	Text      string
	fragments []string
}

// Protect builds a Shield for text. Fenced blocks are taken first so that
// backticks and tags inside them stay part of one fragment.
func Protect(text string) *Shield {
	s := &Shield{}
	replace := func(match string) string {
		tok := token(len(s.fragments))
		s.fragments = append(s.fragments, match)
		return tok
	}

	text = reFencedCode.ReplaceAllStringFunc(text, replace)
	text = reInlineCode.ReplaceAllStringFunc(text, replace)
	text = reHTMLTag.ReplaceAllStringFunc(text, replace)
	s.Text = text
	return s
}

// Len reports how many fragments were shielded.
func (s *Shield) Len() int { return len(s.fragments) }

// Restore puts the original fragments back into edited text. Unknown
// token indices are left untouched.
func (s *Shield) Restore(edited string) string {
	return reToken.ReplaceAllStringFunc(edited, func(match string) string {
		sub := reToken.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(s.fragments) {
			return match
		}
		return s.fragments[idx]
	})
}

// Missing returns the indices of tokens the editor dropped.
func (s *Shield) Missing(edited string) []int {
	var missing []int
	for i := range s.fragments {
		if !strings.Contains(edited, token(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Hint is appended to an editing prompt whenever the shield is non-empty.
func Hint() string {
	return "The draft contains [KEEPn] tokens standing for code and markup. Keep every token exactly as written and in a sensible position; do not invent new ones."
}

func token(i int) string {
	return fmt.Sprintf("[KEEP%d]", i)
}
