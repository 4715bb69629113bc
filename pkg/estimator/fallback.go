package estimator

import "strings"

// fallbackRule maps deliverable keywords to a heuristic person-day figure
// used when the model cannot be reached. First match wins.
type fallbackRule struct {
	keywords   []string
	personDays float64
}

// fallbackDefaultDays applies when no keyword matches.
const fallbackDefaultDays = 5.0

//nolint:gochecknoglobals // Static heuristic table
var fallbackRules = []fallbackRule{
	{[]string{"要件", "requirements"}, 10.0},
	{[]string{"設計", "design"}, 15.0},
	{[]string{"実装", "implementation", "development"}, 30.0},
	{[]string{"テスト", "testing"}, 10.0},
	{[]string{"データベース", "database"}, 12.0},
	{[]string{"api", "backend"}, 20.0},
	{[]string{"frontend", "ui", "画面"}, 18.0},
	{[]string{"認証", "auth"}, 8.0},
	{[]string{"マニュアル", "manual", "documentation"}, 5.0},
}

// fallbackPersonDays returns the keyword-heuristic effort for a deliverable.
func fallbackPersonDays(name, description string) float64 {
	text := strings.ToLower(name + " " + description)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.personDays
			}
		}
	}
	return fallbackDefaultDays
}
