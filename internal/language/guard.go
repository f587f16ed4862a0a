package language

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/redraft/internal/oracle"
)

// minGuardLength is the rune count below which detection is unreliable and
// output is accepted as is.
const minGuardLength = 20

// Check reports an error when text is detectably not in lang.
func (d *Detector) Check(text, lang string) error {
	if lang == "" {
		return nil
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minGuardLength {
		return nil
	}
	detected, ok := d.Detect(text)
	if !ok {
		return nil
	}
	if !strings.EqualFold(detected, lang) {
		return fmt.Errorf("expected %s but detected %s", lang, detected)
	}
	return nil
}

// GuardOracle rejects completions written in a language other than lang.
type GuardOracle struct {
	next oracle.TextOracle
	det  *Detector
	lang string
}

func Guard(next oracle.TextOracle, det *Detector, lang string) *GuardOracle {
	return &GuardOracle{next: next, det: det, lang: lang}
}

func (g *GuardOracle) Name() string { return g.next.Name() }

func (g *GuardOracle) Complete(ctx context.Context, p oracle.Prompt) (string, error) {
	out, err := g.next.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	if err := g.det.Check(out, g.lang); err != nil {
		return "", fmt.Errorf("%s: wrong output language: %w", g.next.Name(), err)
	}
	return out, nil
}
