// Package search is the web-search collaborator used to ground answers.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTavilyEndpoint = "https://api.tavily.com/search"

// Result is a single ranked search hit.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Request scopes a search call.
type Request struct {
	Query          string
	Depth          string // "basic" or "advanced"
	MaxResults     int
	IncludeDomains []string
}

// Provider executes a search and returns results ordered by rank.
type Provider interface {
	Search(ctx context.Context, req Request) ([]Result, error)
}

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	endpoint string
	client   *http.Client
	// maxBackoff bounds the delay between retries on 429.
	maxBackoff time.Duration
}

// NewTavily constructs a Tavily provider. A nil client gets one with timeout.
func NewTavily(apiKey, endpoint string, client *http.Client, timeout time.Duration) *Tavily {
	if endpoint == "" {
		endpoint = DefaultTavilyEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Tavily{apiKey: apiKey, endpoint: endpoint, client: client, maxBackoff: 8 * time.Second}
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search posts a query to Tavily, backing off on 429 until ctx expires.
func (t *Tavily) Search(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:         t.apiKey,
		Query:          req.Query,
		SearchDepth:    req.Depth,
		MaxResults:     req.MaxResults,
		IncludeDomains: req.IncludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	var resp *http.Response
	delay := 500 * time.Millisecond
	for {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("tavily: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < t.maxBackoff {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("tavily: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	results := make([]Result, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			break
		}
	}
	return results, nil
}

var _ Provider = (*Tavily)(nil)
