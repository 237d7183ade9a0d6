// Package classifier maps a user's question to one of the fixed legal categories.
package classifier

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/bc-legal-assistant/server/internal/agent/graph/parsers"
	"github.com/bc-legal-assistant/server/internal/agent/graph/prompts"
	"github.com/bc-legal-assistant/server/internal/agent/model"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// Classifier wraps the classification chat model. The model must be configured
// with minimum temperature so identical input yields identical labels.
type Classifier struct {
	chat      einomodel.BaseChatModel
	modelName string
	timeout   time.Duration
}

func New(chat einomodel.BaseChatModel, cfg model.ClassifierModelConfig) *Classifier {
	return &Classifier{chat: chat, modelName: cfg.Model, timeout: cfg.Timeout}
}

// Classify never fails. Call errors, timeouts and off-list answers all resolve
// to the default category with Fallback set.
func (c *Classifier) Classify(ctx context.Context, text string) model.Classification {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msgs, err := prompts.RenderClassifier(ctx, text)
	if err != nil {
		return fallback(err, "render classifier prompt")
	}

	out, err := c.chat.Generate(ctx, msgs)
	if err != nil {
		return fallback(err, "classifier call failed")
	}
	if out == nil {
		return fallback(nil, "classifier returned no message")
	}

	result := parsers.ParseCategory(out.Content)
	if usage, cost := model.UsageCost(out, c.modelName); usage != nil {
		logx.Debug().
			Str("node", "classifier").
			Str("model", c.modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Float64("total_cost_usd", cost).
			Msg("LLM usage")
	}
	if result.Fallback {
		logx.Warn().Str("reason", result.Reason).Msg("classifier output not recognized, defaulting category")
	}
	return result
}

func fallback(err error, reason string) model.Classification {
	logx.Warn().Err(err).Str("reason", reason).Msg("classification fell back to default category")
	return model.Classification{Category: model.DefaultCategory, Fallback: true, Reason: reason}
}
