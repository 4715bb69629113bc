package chat

import "regexp"

// Conversation history is persisted verbatim, so anything that looks like a
// credential pasted into the chat gets redacted before it reaches the store.
//
//nolint:gochecknoglobals // Compiled once, read-only
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{48,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{95,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{48}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)api[_-]?key[_-]?[:=]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`),
	regexp.MustCompile(`(?i)secret[_-]?[:=]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`),
	regexp.MustCompile(`Bearer\s+[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`gh[opurs]_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`-----BEGIN\s+(?:RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY-----`),
}

// redactSecrets replaces credential-shaped substrings with a placeholder.
func redactSecrets(text string) string {
	for _, pattern := range secretPatterns {
		text = pattern.ReplaceAllString(text, "[redacted]")
	}
	return text
}
