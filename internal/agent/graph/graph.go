package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	"github.com/bc-legal-assistant/server/internal/agent/classifier"
	"github.com/bc-legal-assistant/server/internal/agent/graph/nodes"
	"github.com/bc-legal-assistant/server/internal/agent/graph/observers"
	"github.com/bc-legal-assistant/server/internal/agent/graph/prompts"
	"github.com/bc-legal-assistant/server/internal/agent/model"
	"github.com/bc-legal-assistant/server/internal/agent/personas"
	"github.com/bc-legal-assistant/server/internal/agent/retriever"
	"github.com/bc-legal-assistant/server/internal/agent/search"
	errx "github.com/bc-legal-assistant/server/internal/core/error"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// Runner answers a single query end to end.
type Runner interface {
	Answer(ctx context.Context, q model.Query) (model.Response, error)
}

// Config holds everything needed to compose the full response graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat
// models, the search client and the pipeline components.
type Config struct {
	APIKey          string
	BaseURL         string
	ClassifierModel model.ClassifierModelConfig
	ResponseModel   model.ResponseModelConfig
	Search          model.SearchConfig
	Prompt          model.PromptConfig
	Pipeline        model.PipelineConfig

	// SearchProvider overrides the Tavily client when set.
	SearchProvider search.Provider
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Classifier        nodes.IntentClassifier
	Retriever         nodes.ContextRetriever
	Personas          nodes.PersonaRegistry
	Assembler         *prompts.Assembler
	ResponseModel     einomodel.BaseChatModel
	ResponseModelName string
	Jurisdiction      string
	Now               func() time.Time
	Timeout           time.Duration
}

// GraphBuilder handles the construction of the answer graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.Query, model.Response]
}

type graphRunner struct {
	runnable compose.Runnable[model.Query, model.Response]
	timeout  time.Duration
}

// Answer runs the graph. Classification and retrieval degrade silently; any
// error that reaches here comes from generation and is returned as fatal.
func (r *graphRunner) Answer(ctx context.Context, q model.Query) (model.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return model.Response{}, errx.Validation("query cannot be empty")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.runnable.Invoke(ctx, q, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("answer generation failed")
		return model.Response{}, errx.Generation(err)
	}

	logx.Info().
		Str("category", out.Category.String()).
		Dur("elapsed", time.Since(start)).
		Msg("answer generated")
	return out, nil
}

// BuildResponseGraph wires the production components and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		ClassifierConfig: &cfg.ClassifierModel,
		RespConfig:       &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	provider := cfg.SearchProvider
	if provider == nil {
		provider = search.NewTavily(cfg.Search.APIKey, cfg.Search.Endpoint, nil, cfg.Search.Timeout)
	}

	runner, err := BuildRunner(ctx, &GraphConfig{
		Classifier:        classifier.New(cms.Classifier, cfg.ClassifierModel),
		Retriever:         retriever.New(provider, cfg.Search),
		Personas:          personas.NewRegistry(cfg.Prompt.Jurisdiction, time.Now),
		Assembler:         prompts.NewAssembler(cfg.Prompt),
		ResponseModel:     cms.Response,
		ResponseModelName: cms.ResponseModelName,
		Jurisdiction:      cfg.Prompt.Jurisdiction,
		Now:               time.Now,
		Timeout:           cfg.Pipeline.Timeout,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return runner, nil
}

// BuildRunner compiles the graph from ready components.
func BuildRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable, timeout: config.Timeout}, nil
}

// BuildGraph constructs and returns the compiled answer graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.Query, model.Response], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Classifier == nil || config.Retriever == nil || config.Personas == nil || config.Assembler == nil {
		return nil, fmt.Errorf("pipeline components are not properly initialized")
	}
	if config.ResponseModel == nil {
		return nil, fmt.Errorf("response model is nil")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.Query, model.Response](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cfg := b.config
	steps := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeClassifier,
				nodes.NewClassifierNode(cfg.Classifier),
				compose.WithStatePreHandler(nodes.NewClassifierPreHandler(cfg.Now)),
				compose.WithStatePostHandler(nodes.NewClassifierPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeDocumentPrompt, nodes.NewDocumentPromptNode(cfg.Personas, cfg.Assembler))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeSmallTalk, nodes.NewSmallTalkNode())
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeContextRetriever,
				nodes.NewContextRetrieverNode(cfg.Retriever, cfg.Jurisdiction),
				compose.WithStatePostHandler(nodes.NewContextRetrieverPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeRetrievalPrompt, nodes.NewRetrievalPromptNode(cfg.Personas, cfg.Assembler))
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeResponseChatModel, cfg.ResponseModel,
				compose.WithStatePostHandler(nodes.NewResponseChatModelPostHandler(cfg.ResponseModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeFinalizer, nodes.NewFinalizerNode())
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			logx.Error().Err(err).Msg("Error adding graph node")
			return fmt.Errorf("error adding graph node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifier},
		{nodes.NodeDocumentPrompt, nodes.NodeResponseChatModel},
		{nodes.NodeContextRetriever, nodes.NodeRetrievalPrompt},
		{nodes.NodeRetrievalPrompt, nodes.NodeResponseChatModel},
		{nodes.NodeResponseChatModel, nodes.NodeFinalizer},
		{nodes.NodeSmallTalk, nodes.NodeFinalizer},
		{nodes.NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates the routing branch after classification
func (b *GraphBuilder) addBranches() error {
	routeBranch := compose.NewGraphBranch(
		nodes.NewRouteCondition(),
		map[string]bool{
			nodes.NodeDocumentPrompt:   true,
			nodes.NodeSmallTalk:        true,
			nodes.NodeContextRetriever: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassifier, routeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding route branch")
		return fmt.Errorf("error adding route branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.Query, model.Response], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
