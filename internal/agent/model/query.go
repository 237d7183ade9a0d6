package model

import "strings"

// Category is the topic label that selects the persona and extraction rules.
type Category string

const (
	CategoryRent        Category = "rent"
	CategoryWork        Category = "work"
	CategoryImmigration Category = "immigration"
	CategoryOther       Category = "other"
)

// DefaultCategory is used whenever a label cannot be resolved.
const DefaultCategory = CategoryRent

func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRent, CategoryWork, CategoryImmigration, CategoryOther:
		return true
	}
	return false
}

// ParseCategory resolves a label case-insensitively. ok is false for unknown labels.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// Query is a single inbound question, optionally with extracted document text.
type Query struct {
	Text         string
	DocumentText string
}

// HasDocument reports whether usable document text is attached.
func (q Query) HasDocument() bool {
	return strings.TrimSpace(q.DocumentText) != ""
}

// Classification is the outcome of intent classification. Fallback is set when
// the category is the default because the model failed or answered off-list.
type Classification struct {
	Category Category
	Fallback bool
	Reason   string
}

// AgentConfig is a persona: a name plus its system instructions.
type AgentConfig struct {
	Name         string
	Instructions string
}

const (
	NotFoundContent   = "No official records found."
	NotFoundSourceURL = "https://www.gov.bc.ca"
)

// ContextResult is the grounding text picked for a query.
type ContextResult struct {
	Content   string
	SourceURL string
	Found     bool
}

// NotFoundContext returns the sentinel used when retrieval yields nothing.
func NotFoundContext() ContextResult {
	return ContextResult{Content: NotFoundContent, SourceURL: NotFoundSourceURL, Found: false}
}

// Response is the final pipeline output.
type Response struct {
	Text     string   `json:"response"`
	Category Category `json:"category"`
}
