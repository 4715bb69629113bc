package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Japanese(t *testing.T) {
	cfg := Default(LanguageJapanese)

	assert.Equal(t, LanguageJapanese, cfg.Language)
	assert.Equal(t, "JPY", cfg.Locale.Currency)
	assert.Equal(t, 40000.0, cfg.Locale.DailyUnitCost)
	assert.Equal(t, 0.10, cfg.Locale.TaxRate)
	require.NoError(t, cfg.Validate())
}

func TestDefault_English(t *testing.T) {
	cfg := Default(LanguageEnglish)

	assert.Equal(t, "USD", cfg.Locale.Currency)
	assert.Equal(t, 400.0, cfg.Locale.DailyUnitCost)
	assert.Equal(t, 0.0, cfg.Locale.TaxRate)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, LanguageJapanese, cfg.Language)
	assert.Equal(t, 5, cfg.Estimator.MaxParallel)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"language": "en", "locale": {"currency": "USD", "daily_unit_cost": 500, "tax_rate": 0}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, LanguageEnglish, cfg.Language)
	assert.Equal(t, 500.0, cfg.Locale.DailyUnitCost)
	// Unset sections fall back to defaults.
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad language", func(c *Config) { c.Language = "fr" }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "cohere" }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
		{"zero max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }},
		{"negative unit cost", func(c *Config) { c.Locale.DailyUnitCost = -1 }},
		{"tax rate too high", func(c *Config) { c.Locale.TaxRate = 0.5 }},
		{"zero attempts", func(c *Config) { c.Resilience.MaxAttempts = 0 }},
		{"zero parallel", func(c *Config) { c.Estimator.MaxParallel = 0 }},
		{"schema mismatch", func(c *Config) { c.SchemaVersion = "0.9" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(LanguageJapanese)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPricingFor(t *testing.T) {
	info, ok := PricingFor("gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, info.Provider)
	assert.Equal(t, 0.15, info.InputCPM)
	assert.Equal(t, 0.60, info.OutputCPM)

	_, ok = PricingFor("made-up-model")
	assert.False(t, ok)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default(LanguageEnglish)
	cfg.LLM.Model = "gpt-4o"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
