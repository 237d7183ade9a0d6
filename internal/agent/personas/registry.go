// Package personas maps a category to the persona used as the system prompt
// of the answer model.
package personas

import (
	_ "embed"
	"strings"
	"time"

	"github.com/bc-legal-assistant/server/internal/agent/model"
)

var (
	//go:embed template/base.txt
	baseInstructions string
	//go:embed template/rent.txt
	rentInstructions string
	//go:embed template/work.txt
	workInstructions string
	//go:embed template/immigration.txt
	immigrationInstructions string
)

type persona struct {
	name     string
	template string
}

var personas = map[model.Category]persona{
	model.CategoryRent:        {name: "RentExpert", template: rentInstructions},
	model.CategoryWork:        {name: "WorkLawExpert", template: workInstructions},
	model.CategoryImmigration: {name: "ImmigrationExpert", template: immigrationInstructions},
}

// Registry builds AgentConfigs. It holds no mutable state and is safe for concurrent use.
type Registry struct {
	jurisdiction string
	now          func() time.Time
}

func NewRegistry(jurisdiction string, now func() time.Time) *Registry {
	if jurisdiction == "" {
		jurisdiction = "BC"
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{jurisdiction: jurisdiction, now: now}
}

// Config returns the persona for category using the registry clock.
func (r *Registry) Config(category string) model.AgentConfig {
	return r.ConfigAt(category, r.now())
}

// ConfigAt returns the persona for category dated at now. Lookup is
// case-insensitive; unknown or empty categories (including "other") resolve to rent.
func (r *Registry) ConfigAt(category string, now time.Time) model.AgentConfig {
	c, ok := model.ParseCategory(category)
	p, found := personas[c]
	if !ok || !found {
		p = personas[model.DefaultCategory]
	}

	replacer := strings.NewReplacer(
		"{current_date}", CurrentDate(now),
		"{jurisdiction}", r.jurisdiction,
	)
	return model.AgentConfig{
		Name:         p.name,
		Instructions: replacer.Replace(baseInstructions) + replacer.Replace(p.template),
	}
}

// CurrentDate formats now as "Month YYYY".
func CurrentDate(now time.Time) string {
	return now.Format("January 2006")
}
