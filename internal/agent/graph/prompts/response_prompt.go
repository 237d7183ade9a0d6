package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/bc-legal-assistant/server/internal/agent/model"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

//go:embed template/document_prompt.txt
var documentPrompt string

//go:embed template/retrieval_prompt.txt
var retrievalPrompt string

const (
	DefaultMaxContextChars = 24000
	truncatedMarker        = "\n[truncated]"
)

// Assembler builds the answer model input: persona as system message and the
// grounded question as user message.
type Assembler struct {
	maxContextChars int
}

func NewAssembler(cfg model.PromptConfig) *Assembler {
	max := cfg.MaxContextChars
	if max <= 0 {
		max = DefaultMaxContextChars
	}
	return &Assembler{maxContextChars: max}
}

// BuildDocumentPrompt grounds the question in the attached document only.
func (a *Assembler) BuildDocumentPrompt(ctx context.Context, persona model.AgentConfig, question, document string) ([]*schema.Message, error) {
	return a.render(ctx, persona, documentPrompt, map[string]any{
		"Document": a.truncate(document, "document"),
		"Question": question,
	})
}

// BuildRetrievalPrompt grounds the question in retrieved official text for year.
func (a *Assembler) BuildRetrievalPrompt(ctx context.Context, persona model.AgentConfig, question string, rc model.ContextResult, year int) ([]*schema.Message, error) {
	return a.render(ctx, persona, retrievalPrompt, map[string]any{
		"Context":   a.truncate(rc.Content, "context"),
		"SourceURL": rc.SourceURL,
		"Question":  question,
		"Year":      year,
	})
}

func (a *Assembler) render(ctx context.Context, persona model.AgentConfig, userTemplate string, vars map[string]any) ([]*schema.Message, error) {
	// persona text goes in as a value so it is never parsed as a template
	vars["Instructions"] = persona.Instructions
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage("{{.Instructions}}"),
		schema.UserMessage(userTemplate),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("response prompt render: %w", err)
	}
	if len(msgs) != 2 {
		return nil, fmt.Errorf("response prompt render: expected 2 messages, got %d", len(msgs))
	}
	return msgs, nil
}

func (a *Assembler) truncate(s, what string) string {
	out, cut := TruncateHead(s, a.maxContextChars)
	if cut {
		logx.Warn().
			Str("component", "prompt_assembler").
			Str("source", what).
			Int("max_chars", a.maxContextChars).
			Int("orig_chars", utf8.RuneCountInString(s)).
			Msg("grounding text truncated to fit model input")
	}
	return out
}

// TruncateHead keeps the first max runes of s and appends a marker when it cuts.
func TruncateHead(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]) + truncatedMarker, true
}
