package server

import "time"

// Config binds the HTTP surface settings from the environment.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	AllowOrigin    string        `envconfig:"ALLOW_ORIGIN" default:"*"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	ReadTimeout    time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	IdleTimeout    time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`

	// RateLimitRequests requests are allowed per client per RateLimitWindow.
	// Zero disables limiting.
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	// TrustProxyHeaders keys clients on X-Forwarded-For. Enable only behind a
	// proxy that overwrites the header.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`
}
