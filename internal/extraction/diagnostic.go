package extraction

import (
	"strings"
	"unicode/utf8"
)

// MaxDiagnosticBytes caps raw_error text.
const MaxDiagnosticBytes = 500

const redacted = "[REDACTED]"

// Diagnostic redacts the credential, flattens whitespace and truncates the
// message to MaxDiagnosticBytes without splitting a rune. Redaction happens
// before truncation so no prefix of the credential survives a cut.
func Diagnostic(msg, credential string) string {
	if credential != "" {
		msg = strings.ReplaceAll(msg, credential, redacted)
	}
	msg = strings.Join(strings.Fields(msg), " ")
	return truncate(msg, MaxDiagnosticBytes)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
