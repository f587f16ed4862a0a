package markup_test

import (
	"strings"
	"testing"

	"github.com/valpere/redraft/internal/markup"
)

func TestProtect_NoMarkup(t *testing.T) {
	s := markup.Protect("Buy now.")
	if s.Text != "Buy now." {
		t.Errorf("expected unchanged text, got %q", s.Text)
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 fragments, got %d", s.Len())
	}
}

func TestProtect_HTMLTags(t *testing.T) {
	s := markup.Protect("<p>Hello <b>world</b></p>")
	if s.Len() != 4 {
		t.Fatalf("expected 4 fragments, got %d", s.Len())
	}
	if strings.Contains(s.Text, "<") {
		t.Errorf("tags still present in %q", s.Text)
	}
}

func TestProtect_FencedBlockIsOneFragment(t *testing.T) {
	text := "Intro\n```html\n<div>`x`</div>\n```\nOutro"
	s := markup.Protect(text)
	if s.Len() != 1 {
		t.Fatalf("expected 1 fragment, got %d", s.Len())
	}
	if s.Text != "Intro\n[KEEP0]\nOutro" {
		t.Errorf("unexpected shielded text %q", s.Text)
	}
}

func TestProtect_LessThanIsNotATag(t *testing.T) {
	s := markup.Protect("if a < b and c > d")
	if s.Len() != 0 {
		t.Errorf("expected comparison operators to be left alone, got %d fragments", s.Len())
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	original := "Use `go test` then see <a href=\"#\">docs</a>.\n```\nmake\n```"
	s := markup.Protect(original)
	if got := s.Restore(s.Text); got != original {
		t.Errorf("round trip failed:\n  want %q\n  got  %q", original, got)
	}
}

func TestRestore_EditedText(t *testing.T) {
	s := markup.Protect("Run `make` now.")
	edited := "Now, run [KEEP0]!"
	if got := s.Restore(edited); got != "Now, run `make`!" {
		t.Errorf("unexpected restore %q", got)
	}
}

func TestRestore_UnknownIndexKept(t *testing.T) {
	s := markup.Protect("<p>x</p>")
	if got := s.Restore("[KEEP9] x"); got != "[KEEP9] x" {
		t.Errorf("expected unknown token to survive, got %q", got)
	}
}

func TestMissing(t *testing.T) {
	s := markup.Protect("<p>a</p> <b>b</b>")
	missing := s.Missing("[KEEP0] a [KEEP3]")
	if len(missing) != 2 || missing[0] != 1 || missing[1] != 2 {
		t.Errorf("expected missing [1 2], got %v", missing)
	}
}

func TestHint(t *testing.T) {
	if !strings.Contains(markup.Hint(), "[KEEPn]") {
		t.Error("hint should mention the token format")
	}
}
