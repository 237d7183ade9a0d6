// Package retriever turns a search query into grounding text for the answer model.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bc-legal-assistant/server/internal/agent/model"
	"github.com/bc-legal-assistant/server/internal/agent/search"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// DefaultTimeout bounds a whole retrieval, retries included.
const DefaultTimeout = 20 * time.Second

// Retriever picks the top-ranked official result for a query.
type Retriever struct {
	provider search.Provider
	cfg      model.SearchConfig
}

func New(provider search.Provider, cfg model.SearchConfig) *Retriever {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Depth == "" {
		cfg.Depth = "advanced"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Retriever{provider: provider, cfg: cfg}
}

// BuildSearchQuery biases the user's question toward numeric regulatory facts
// for the given year.
func BuildSearchQuery(question string, category model.Category, jurisdiction string, year int) string {
	parts := []string{strings.TrimSpace(question), "official"}
	if jurisdiction != "" {
		parts = append(parts, jurisdiction)
	}
	parts = append(parts, category.String(), "limit rate", fmt.Sprint(year))
	return strings.Join(parts, " ")
}

// Retrieve never fails: search errors and empty result sets yield the
// not-found sentinel. The search gets its own deadline so a stalled provider
// cannot consume the caller's budget for generation.
func (r *Retriever) Retrieve(ctx context.Context, searchQuery string, category model.Category) model.ContextResult {
	searchCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	results, err := r.provider.Search(searchCtx, search.Request{
		Query:          searchQuery,
		Depth:          r.cfg.Depth,
		MaxResults:     r.cfg.MaxResults,
		IncludeDomains: r.cfg.IncludeDomains,
	})
	if err != nil {
		logx.Warn().Err(err).Str("category", category.String()).Msg("search failed, using not-found context")
		return model.NotFoundContext()
	}
	if len(results) == 0 {
		logx.Warn().Str("category", category.String()).Str("query", searchQuery).Msg("search returned no results")
		return model.NotFoundContext()
	}

	best := results[0]
	if strings.TrimSpace(best.Content) == "" {
		logx.Warn().Str("url", best.URL).Msg("top search result has no content")
		return model.NotFoundContext()
	}

	logx.Debug().
		Str("category", category.String()).
		Str("source_url", best.URL).
		Int("result_count", len(results)).
		Msg("context retrieved")
	return model.ContextResult{Content: best.Content, SourceURL: best.URL, Found: true}
}
