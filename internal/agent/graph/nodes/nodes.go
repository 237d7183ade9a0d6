package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bc-legal-assistant/server/internal/agent/graph/prompts"
	"github.com/bc-legal-assistant/server/internal/agent/model"
	"github.com/bc-legal-assistant/server/internal/agent/retriever"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

const (
	NodeClassifier        = "Classifier"
	NodeDocumentPrompt    = "DocumentPrompt"
	NodeSmallTalk         = "SmallTalk"
	NodeContextRetriever  = "ContextRetriever"
	NodeRetrievalPrompt   = "RetrievalPrompt"
	NodeResponseChatModel = "ResponseChatModel"
	NodeFinalizer         = "Finalizer"
)

// SmallTalkMessage is returned for greetings and off-topic chat without calling the answer model.
const SmallTalkMessage = "Hi! I'm your BC Legal Assistant. I can help you with specific questions " +
	"about **Rent**, **Work**, or **Immigration** in British Columbia. " +
	"How can I help you with those today?"

type IntentClassifier interface {
	Classify(ctx context.Context, text string) model.Classification
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, searchQuery string, category model.Category) model.ContextResult
}

type PersonaRegistry interface {
	ConfigAt(category string, now time.Time) model.AgentConfig
}

// NewClassifierPreHandler seeds the state with the query and the request clock.
func NewClassifierPreHandler(now func() time.Time) func(context.Context, model.Query, *model.AppState) (model.Query, error) {
	return func(ctx context.Context, in model.Query, s *model.AppState) (model.Query, error) {
		s.Query = in
		s.Now = now()
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewClassifierNode runs intent classification. It cannot fail.
func NewClassifierNode(c IntentClassifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.Query) (model.Classification, error) {
		return c.Classify(ctx, in.Text), nil
	})
}

// NewClassifierPostHandler saves the classification to state.
func NewClassifierPostHandler() func(context.Context, model.Classification, *model.AppState) (model.Classification, error) {
	return func(ctx context.Context, out model.Classification, state *model.AppState) (model.Classification, error) {
		state.Classification = out
		logx.Info().
			Str("category", out.Category.String()).
			Bool("fallback", out.Fallback).
			Bool("has_document", state.Query.HasDocument()).
			Msg("Detected intent")
		return out, nil
	}
}

// NewRouteCondition picks the next node. Precedence: attached document, then
// the "other" short-circuit, then retrieval.
func NewRouteCondition() func(context.Context, model.Classification) (string, error) {
	return func(ctx context.Context, in model.Classification) (string, error) {
		var hasDocument bool
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			hasDocument = state.Query.HasDocument()
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}

		switch {
		case hasDocument:
			logx.Debug().Str("category", in.Category.String()).Msg("Routing to document prompt")
			return NodeDocumentPrompt, nil
		case in.Category == model.CategoryOther:
			logx.Debug().Msg("Routing to small talk - skipping generation")
			return NodeSmallTalk, nil
		default:
			logx.Debug().Str("category", in.Category.String()).Msg("Routing to context retriever")
			return NodeContextRetriever, nil
		}
	}
}

// NewSmallTalkNode returns the fixed informational message.
func NewSmallTalkNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.Classification) (*schema.Message, error) {
		return schema.AssistantMessage(SmallTalkMessage, nil), nil
	})
}

// NewDocumentPromptNode grounds the question in the attached document; retrieval is skipped.
func NewDocumentPromptNode(registry PersonaRegistry, assembler *prompts.Assembler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.Classification) ([]*schema.Message, error) {
		state, err := snapshotState(ctx)
		if err != nil {
			return nil, err
		}
		persona := registry.ConfigAt(in.Category.String(), state.Now)
		msgs, err := assembler.BuildDocumentPrompt(ctx, persona, state.Query.Text, state.Query.DocumentText)
		if err != nil {
			return nil, fmt.Errorf("build document prompt: %w", err)
		}
		return msgs, nil
	})
}

// NewContextRetrieverNode enriches the question and fetches official context.
func NewContextRetrieverNode(r ContextRetriever, jurisdiction string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.Classification) (model.ContextResult, error) {
		state, err := snapshotState(ctx)
		if err != nil {
			return model.ContextResult{}, err
		}
		searchQuery := retriever.BuildSearchQuery(state.Query.Text, in.Category, jurisdiction, state.Now.Year())
		return r.Retrieve(ctx, searchQuery, in.Category), nil
	})
}

// NewContextRetrieverPostHandler saves the retrieved context to state.
func NewContextRetrieverPostHandler() func(context.Context, model.ContextResult, *model.AppState) (model.ContextResult, error) {
	return func(ctx context.Context, out model.ContextResult, state *model.AppState) (model.ContextResult, error) {
		state.Context = out
		logx.Debug().Bool("found", out.Found).Str("source_url", out.SourceURL).Msg("Context ready")
		return out, nil
	}
}

// NewRetrievalPromptNode grounds the question in the retrieved context.
func NewRetrievalPromptNode(registry PersonaRegistry, assembler *prompts.Assembler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, rc model.ContextResult) ([]*schema.Message, error) {
		state, err := snapshotState(ctx)
		if err != nil {
			return nil, err
		}
		category := state.Classification.Category.String()
		persona := registry.ConfigAt(category, state.Now)
		msgs, err := assembler.BuildRetrievalPrompt(ctx, persona, state.Query.Text, rc, state.Now.Year())
		if err != nil {
			return nil, fmt.Errorf("build retrieval prompt: %w", err)
		}
		return msgs, nil
	})
}

// NewResponseChatModelPostHandler computes and logs usage cost for the response model.
func NewResponseChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("response model returned no message")
		}
		recordUsage(out, state, NodeResponseChatModel, modelName)
		logx.Debug().Float64("total_cost_usd", state.TotalCostUSD).Msg("AI response ready")
		return out, nil
	}
}

// NewFinalizerNode pairs the answer text with the classified category.
func NewFinalizerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (model.Response, error) {
		if msg == nil {
			return model.Response{}, fmt.Errorf("finalizer received nil message")
		}
		state, err := snapshotState(ctx)
		if err != nil {
			return model.Response{}, err
		}
		category := state.Classification.Category
		if !category.Valid() {
			category = model.DefaultCategory
		}
		return model.Response{Text: msg.Content, Category: category}, nil
	})
}
