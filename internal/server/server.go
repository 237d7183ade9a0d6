package server

import (
	"net/http"
)

// NewServeMux wires routes and middleware. Only /api/query is rate limited.
func NewServeMux(h *Handler, limiter Limiter, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("POST /api/query", RateLimit(limiter, cfg.TrustProxyHeaders)(http.HandlerFunc(h.Query)))

	// outermost last
	var handler http.Handler = mux
	handler = Logging(handler)
	handler = CORS(cfg.AllowOrigin)(handler)
	handler = RequestID(handler)
	handler = Recovery(handler)

	return handler
}

// New builds the http.Server with the configured timeouts.
func New(cfg Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
