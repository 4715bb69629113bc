package i18n

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsBothLanguages(t *testing.T) {
	ja, err := New("ja")
	require.NoError(t, err)
	assert.Equal(t, "ja", ja.Language())

	en, err := New("en")
	require.NoError(t, err)
	assert.Equal(t, "en", en.Language())

	assert.NotEqual(t, ja.T("prompts.estimate_system"), en.T("prompts.estimate_system"))
}

func TestNew_UnknownLanguageFallsBackToJapanese(t *testing.T) {
	b, err := New("fr")
	require.NoError(t, err)
	assert.Equal(t, "ja", b.Language())
}

func TestT_DottedLookup(t *testing.T) {
	b, err := New("en")
	require.NoError(t, err)

	assert.Equal(t, "Subtotal", b.T("messages.summary_subtotal"))
	assert.Equal(t, "person-days", b.T("prompts.estimate_unit"))
}

func TestT_PlaceholderSubstitution(t *testing.T) {
	b, err := New("en")
	require.NoError(t, err)

	got := b.T("messages.rate_limit_exceeded", "retry_after", 30)
	assert.Equal(t, "Too many requests. Retry after 30 seconds.", got)
}

func TestT_WholeNumberFloatsRenderWithoutDecimal(t *testing.T) {
	b, err := New("ja")
	require.NoError(t, err)

	got := b.T("messages.unit_cost_changed", "unit_cost", 35000.0)
	assert.Contains(t, got, "35000")
	assert.NotContains(t, got, "35000.0")
}

func TestT_MissingKey(t *testing.T) {
	b, err := New("ja")
	require.NoError(t, err)

	assert.Equal(t, "[Missing: messages.nope]", b.T("messages.nope"))
	assert.Equal(t, "[Missing: nope.deeper.still]", b.T("nope.deeper.still"))
	// A non-leaf node is not a message.
	assert.True(t, strings.HasPrefix(b.T("messages"), "[Missing:"))
}

func TestSection(t *testing.T) {
	b, err := New("en")
	require.NoError(t, err)

	defaults := b.Section("defaults")
	require.Len(t, defaults, 3)
	assert.Contains(t, defaults, "question1")

	assert.Empty(t, b.Section("no.such.prefix"))
}
