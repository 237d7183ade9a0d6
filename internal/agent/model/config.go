package model

import (
	"fmt"
	"time"
)

// ClassifierTemperature is fixed at the minimum so identical questions get
// identical labels.
const ClassifierTemperature float32 = 0

// ================ Config ================
type ClassifierModelConfig struct {
	Model     string        `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens int           `envconfig:"CLASSIFIER_MAX_TOKENS" default:"16"`
	Timeout   time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"15s"`
}

type ResponseModelConfig struct {
	Model          string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.1"`
	ThinkingBudget int32   `envconfig:"RESPONSE_THINKING_BUDGET" default:"1024"`
}

// Validate rejects a response temperature outside (0, 1].
func (c ResponseModelConfig) Validate() error {
	if c.Temperature <= 0 || c.Temperature > 1 {
		return fmt.Errorf("RESPONSE_TEMPERATURE must be in (0, 1], got %v", c.Temperature)
	}
	return nil
}

type SearchConfig struct {
	APIKey         string        `envconfig:"TAVILY_API_KEY" required:"true"`
	Endpoint       string        `envconfig:"TAVILY_ENDPOINT" default:"https://api.tavily.com/search"`
	Depth          string        `envconfig:"SEARCH_DEPTH" default:"advanced"`
	MaxResults     int           `envconfig:"SEARCH_MAX_RESULTS" default:"3"`
	IncludeDomains []string      `envconfig:"SEARCH_INCLUDE_DOMAINS" default:"canada.ca,gov.bc.ca,ircc.canada.ca"`
	Timeout        time.Duration `envconfig:"SEARCH_TIMEOUT" default:"20s"`
}

type PromptConfig struct {
	Jurisdiction    string `envconfig:"PROMPT_JURISDICTION" default:"BC"`
	MaxContextChars int    `envconfig:"PROMPT_MAX_CONTEXT_CHARS" default:"24000"`
}

type PipelineConfig struct {
	Timeout time.Duration `envconfig:"PIPELINE_TIMEOUT" default:"60s"`
}
