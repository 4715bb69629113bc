package estimator

import (
	"fmt"
	"strings"

	"estimator/pkg/estimate"
	"estimator/pkg/i18n"
)

// buildSystemPrompt composes the estimation system prompt with the language
// instruction so replies come back in the configured locale.
func buildSystemPrompt(bundle *i18n.Bundle) string {
	return bundle.T("prompts.estimate_system") + "\n\n" + bundle.T("prompts.language_instruction")
}

// buildEstimatePrompt renders the per-deliverable user prompt: deliverable
// info, system requirements, Q&A context, and the strict JSON output contract.
func buildEstimatePrompt(bundle *i18n.Bundle, d estimate.Deliverable, requirements string, qaPairs []estimate.QAPair) string {
	unit := bundle.T("prompts.estimate_unit")

	var qa strings.Builder
	for _, pair := range qaPairs {
		fmt.Fprintf(&qa, "Q: %s\nA: %s\n", pair.Question, pair.Answer)
	}

	var b strings.Builder
	b.WriteString(bundle.T("prompts.estimate_instruction"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n", bundle.T("ui.label_deliverable_name"), d.Name)
	fmt.Fprintf(&b, "%s: %s\n\n", bundle.T("ui.label_deliverable_desc"), d.Description)
	fmt.Fprintf(&b, "[%s]\n%s\n\n", bundle.T("ui.label_system_requirements"), requirements)
	if qa.Len() > 0 {
		b.WriteString(qa.String())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Respond with exactly one JSON object and nothing else:\n"+
		"{\n"+
		"  \"person_days\": <number with one decimal, unit %s>,\n"+
		"  \"reasoning_breakdown\": \"<per-phase %s breakdown as a bulleted list>\",\n"+
		"  \"reasoning_notes\": \"<assumptions, risks, remarks>\"\n"+
		"}\n\n", unit, unit)
	fmt.Fprintf(&b, "Breakdown format:\n%s\n", bundle.T("prompts.estimate_breakdown_format"))
	return b.String()
}
