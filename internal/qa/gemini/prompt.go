package gemini

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var prompts embed.FS

const (
	promptSystem       = "system"
	promptQuestions    = "questions"
	promptEvaluate     = "evaluate"
	promptFollowUp     = "follow_up"
	promptSampleAnswer = "sample_answer"
	promptSummary      = "summary"
)

// render fills the {{KEY}} placeholders of the named prompt.
func render(name string, values map[string]string) (string, error) {
	raw, err := prompts.ReadFile("prompts/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", name, err)
	}

	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}

	return strings.NewReplacer(pairs...).Replace(string(raw)), nil
}
