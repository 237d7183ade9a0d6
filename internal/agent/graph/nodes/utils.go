package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bc-legal-assistant/server/internal/agent/model"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// snapshotState copies the local state out of a node. Reads happen inside
// ProcessState so they are serialized with the state handlers.
func snapshotState(ctx context.Context) (model.AppState, error) {
	var snap model.AppState
	err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		snap = *state
		return nil
	})
	if err != nil {
		return model.AppState{}, fmt.Errorf("failed to access state: %w", err)
	}
	return snap, nil
}

// recordUsage attaches usage cost to the message Extra and accumulates it in state.
func recordUsage(out *schema.Message, state *model.AppState, node, modelName string) {
	usage, totalC := model.UsageCost(out, modelName)
	if usage == nil {
		return
	}
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"total_cost":        totalC,
	}
	state.TotalCostUSD += totalC
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

	logx.Debug().
		Str("category", state.Classification.Category.String()).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
