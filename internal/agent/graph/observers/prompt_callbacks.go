package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// newPromptHandler logs rendered prompts. Variables are not logged since they
// may carry uploaded document text.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			ev := logx.Debug().Str("component", info.Type).Str("name", info.Name)
			if output != nil {
				ev = ev.Int("message_count", len(output.Result))
				if n := len(output.Result); n > 0 && output.Result[n-1] != nil {
					ev = ev.Str("rendered", clip(output.Result[n-1].Content))
				}
			}
			ev.Msg("prompt rendered")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", info.Type).Str("name", info.Name).Msg("prompt error")
			return ctx
		},
	}
}
