package estimate

import "strings"

// bulletPrefixes mark a section as a breakdown list rather than prose.
var bulletPrefixes = []string{"-", "*", "•", "・"}

// SeparateReasoning splits a combined reasoning text into breakdown (bulleted
// sections) and notes (prose paragraphs). When notes already exist or the
// breakdown is empty, both are returned unchanged.
func SeparateReasoning(breakdown, notes string) (string, string) {
	if notes != "" || breakdown == "" {
		return breakdown, notes
	}

	var breakdownParts, notesParts []string
	for _, part := range strings.Split(breakdown, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if isBreakdownSection(part) {
			breakdownParts = append(breakdownParts, part)
		} else {
			notesParts = append(notesParts, part)
		}
	}

	// Only separate when some prose was actually found.
	if len(notesParts) == 0 {
		return breakdown, notes
	}
	return strings.Join(breakdownParts, "\n\n"), strings.Join(notesParts, "\n\n")
}

func isBreakdownSection(part string) bool {
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(part, p) {
			return true
		}
		// Multi-line sections containing a bulleted line also count.
		if strings.Contains(part, "\n"+p) {
			return true
		}
	}
	return false
}
