// Package language detects the language of tasks and drafts and guards
// editing oracles against answering in the wrong language.
package language

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// Detector is expensive to build; create one and share it.
type Detector struct {
	detector lingua.LanguageDetector
}

func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

// Detect returns the lowercase ISO 639-1 code of text ("en", "uk", ...).
func (d *Detector) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Name returns the English name for an ISO 639-1 code, or the code itself
// when it is unknown. Prompts read better with "Ukrainian" than "uk".
func Name(code string) string {
	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.IsoCode639_1().String(), code) {
			return titleCase(lang.String())
		}
	}
	return code
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
