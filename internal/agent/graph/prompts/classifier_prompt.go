package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/classifier_prompt.txt
var classifierSystemPrompt string

// ClassifierSystemPrompt exposes the fixed classification instruction.
func ClassifierSystemPrompt() string {
	return classifierSystemPrompt
}

// RenderClassifier renders the classification messages via the Eino prompt
// component so prompt callbacks fire.
func RenderClassifier(ctx context.Context, query string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage("Classify this query: {{.Query}}"),
	)
	msgs, err := tpl.Format(ctx, map[string]any{"Query": query})
	if err != nil {
		return nil, fmt.Errorf("classifier prompt render: %w", err)
	}
	if len(msgs) != 2 {
		return nil, fmt.Errorf("classifier prompt render: expected 2 messages, got %d", len(msgs))
	}
	return msgs, nil
}
