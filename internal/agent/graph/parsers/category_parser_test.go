package parsers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bc-legal-assistant/server/internal/agent/model"
)

func TestParseCategory_ValidLabels(t *testing.T) {
	cases := map[string]model.Category{
		"rent":            model.CategoryRent,
		"work":            model.CategoryWork,
		"immigration":     model.CategoryImmigration,
		"other":           model.CategoryOther,
		"  Work \n":       model.CategoryWork,
		"IMMIGRATION":     model.CategoryImmigration,
		"'rent'":          model.CategoryRent,
		"\"immigration\".": model.CategoryImmigration,
		"`work`":          model.CategoryWork,
	}
	for raw, want := range cases {
		got := ParseCategory(raw)
		assert.Equal(t, want, got.Category, "raw %q", raw)
		assert.False(t, got.Fallback, "raw %q", raw)
	}
}

func TestParseCategory_UnknownFallsBackToRent(t *testing.T) {
	for _, raw := range []string{"housing", "N/A", "", "   ", "rent or work", "移民", strings.Repeat("x", 500)} {
		got := ParseCategory(raw)
		assert.Equal(t, model.CategoryRent, got.Category, "raw %q", raw)
		assert.True(t, got.Fallback, "raw %q", raw)
		assert.NotEmpty(t, got.Reason)
		assert.LessOrEqual(t, utf8.RuneCountInString(got.Reason), len("unrecognized label: ")+maxLabelLen)
		assert.True(t, utf8.ValidString(got.Reason), "raw %q", raw)
	}
}

func TestParseCategory_ReasonKeepsRunesWhole(t *testing.T) {
	// 63 ASCII bytes followed by multi-byte runes straddle the cap in bytes.
	raw := strings.Repeat("a", maxLabelLen-1) + strings.Repeat("é", 10)
	got := ParseCategory(raw)

	require.True(t, got.Fallback)
	assert.True(t, utf8.ValidString(got.Reason))
	assert.Equal(t, "unrecognized label: "+strings.Repeat("a", maxLabelLen-1)+"é", got.Reason)
}
