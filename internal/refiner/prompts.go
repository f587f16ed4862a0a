package refiner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valpere/redraft/internal/language"
	"github.com/valpere/redraft/internal/markup"
	"github.com/valpere/redraft/internal/oracle"
)

func renderCriteria(c Criteria) string {
	if len(c) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Criteria:\n")
	for _, name := range c.Names() {
		fmt.Fprintf(&b, "- %s: %s\n", name, c[name])
	}
	return b.String()
}

func languageHint(code string) string {
	if code == "" {
		return ""
	}
	return "\n\nWrite in " + language.Name(code) + "."
}

func stageContext(stage StepKind, round int, task string) map[string]string {
	return map[string]string{
		"stage": string(stage),
		"round": strconv.Itoa(round),
		"task":  task,
	}
}

func generatePrompt(task string, cfg Config) oracle.Prompt {
	var user strings.Builder
	user.WriteString("Task:\n")
	user.WriteString(task)
	if c := renderCriteria(cfg.Criteria); c != "" {
		user.WriteString("\n\n")
		user.WriteString(c)
	}
	return oracle.Prompt{
		System:  "Complete the task. Output only the requested text." + languageHint(cfg.Language),
		User:    user.String(),
		Context: stageContext(StepGenerate, 0, task),
	}
}

func critiquePrompt(task string, d Draft, cfg Config) oracle.Prompt {
	system := "Review the draft against the task"
	if len(cfg.Criteria) > 0 {
		system += " and every criterion"
	}
	system += ". List what should change."
	if len(cfg.StopMarkers) > 0 {
		system += fmt.Sprintf(" If the draft needs no changes, say %q.", cfg.StopMarkers[0])
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Task:\n%s\n\n", task)
	if c := renderCriteria(cfg.Criteria); c != "" {
		user.WriteString(c)
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "Draft (round %d):\n%s", d.Round, d.Content)

	return oracle.Prompt{
		System:  system,
		User:    user.String(),
		Context: stageContext(StepCritique, d.Round, task),
	}
}

func revisePrompt(task, draft string, round int, c Critique, cfg Config, shielded bool) oracle.Prompt {
	system := "Rewrite the draft so that it addresses the critique. Output only the revised text." + languageHint(cfg.Language)
	if shielded {
		system += "\n\n" + markup.Hint()
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Task:\n%s\n\n", task)
	if s := renderCriteria(cfg.Criteria); s != "" {
		user.WriteString(s)
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "Draft:\n%s\n\nCritique:\n%s", draft, c.Content)

	return oracle.Prompt{
		System:  system,
		User:    user.String(),
		Context: stageContext(StepRevise, round, task),
	}
}
