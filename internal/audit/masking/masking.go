package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a token, keeping its last four characters so repeated
// submissions of the same value can still be correlated in audit rows.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}
