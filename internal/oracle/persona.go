package oracle

import (
	"context"
	"strings"
)

// Roles used by the refinement loop. They are personas of one capability,
// not distinct oracle types.
const (
	RoleWriter = "writer"
	RoleCritic = "critic"
	RoleEditor = "editor"
	RoleJudge  = "judge"
)

var roleInstructions = map[string]string{
	RoleWriter: "You are a skilled writer. Produce the requested text directly, without commentary.",
	RoleCritic: "You are a demanding reviewer. Evaluate the draft honestly and list concrete, actionable problems.",
	RoleEditor: "You are a careful editor. Rewrite the draft to address every point of the critique while keeping what already works.",
	RoleJudge:  "You are an impartial judge. Grade drafts strictly and answer only in the requested format.",
}

// PersonaOracle prefixes every system prompt with a role description.
type PersonaOracle struct {
	role         string
	instructions string
	next         TextOracle
}

// Persona wraps next so that it answers as role. Unknown roles are used
// verbatim as the instruction text, which allows ad-hoc personas such as
// "a terse copywriter".
func Persona(role string, next TextOracle) *PersonaOracle {
	instr, ok := roleInstructions[role]
	if !ok {
		instr = "You are " + role + "."
	}
	return &PersonaOracle{role: role, instructions: instr, next: next}
}

func (p *PersonaOracle) Name() string {
	return p.role + "@" + p.next.Name()
}

func (p *PersonaOracle) Role() string { return p.role }

func (p *PersonaOracle) Complete(ctx context.Context, prompt Prompt) (string, error) {
	system := p.instructions
	if s := strings.TrimSpace(prompt.System); s != "" {
		system += "\n\n" + s
	}
	prompt.System = system
	return p.next.Complete(ctx, prompt)
}
