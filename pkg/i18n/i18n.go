// Package i18n provides the localized message catalogue for prompts, replies,
// and UI strings. Catalogues are embedded YAML bundles keyed by language code;
// lookups use dotted keys with {placeholder} substitution.
package i18n

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Bundle is a loaded message catalogue for one language.
type Bundle struct {
	language string
	messages map[string]any
}

// New loads the catalogue for the given language code ("ja" or "en").
// Unknown languages fall back to Japanese, matching the original deployment.
func New(language string) (*Bundle, error) {
	data, err := localeFS.ReadFile("locales/" + language + ".yaml")
	if err != nil {
		data, err = localeFS.ReadFile("locales/ja.yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to load locale bundle: %w", err)
		}
		language = "ja"
	}

	var messages map[string]any
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse locale bundle %s: %w", language, err)
	}

	return &Bundle{language: language, messages: messages}, nil
}

// Language returns the language code of the loaded bundle.
func (b *Bundle) Language() string {
	return b.language
}

// T looks up a dotted key (e.g. "messages.fit_budget_adjusted") and applies
// placeholder substitution from alternating key/value pairs:
//
//	b.T("messages.rate_limit_exceeded", "retry_after", 30)
//
// Missing keys return "[Missing: <key>]" so broken lookups surface in output
// instead of failing silently.
func (b *Bundle) T(key string, kv ...any) string {
	value := any(b.messages)
	for _, part := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return "[Missing: " + key + "]"
		}
		value, ok = m[part]
		if !ok {
			return "[Missing: " + key + "]"
		}
	}

	text, ok := value.(string)
	if !ok {
		return "[Missing: " + key + "]"
	}

	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			continue
		}
		text = strings.ReplaceAll(text, "{"+name+"}", formatValue(kv[i+1]))
	}
	return text
}

// Section returns all string entries under a dotted prefix, keyed by their
// leaf name. Non-string and nested entries are skipped.
func (b *Bundle) Section(prefix string) map[string]string {
	value := any(b.messages)
	for _, part := range strings.Split(prefix, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return map[string]string{}
		}
		value, ok = m[part]
		if !ok {
			return map[string]string{}
		}
	}

	m, ok := value.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, isStr := v.(string); isStr {
			out[k] = s
		}
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// Whole numbers render without a decimal point (amounts in replies).
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
