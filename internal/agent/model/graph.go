package model

import "time"

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState, so each
//     Invoke gets a fresh value and nothing is shared across requests.
//   - All reads/writes happen inside Eino state handlers or compose.ProcessState,
//     which serialize access.
type AppState struct {
	Query          Query
	Now            time.Time      // single clock read so persona and prompt agree on the date
	Classification Classification // set by classifier post-handler
	Context        ContextResult  // set by retriever post-handler, zero in document mode

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}
