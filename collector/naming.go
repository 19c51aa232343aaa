package collector

import "strings"

// SnakeCase converts a mixed-case identifier such as "subDeviceId" to its
// canonical snake_case form ("sub_device_id"). A separator is inserted before
// every uppercase letter that immediately follows a lowercase letter or a
// digit, then the whole string is lowercased. The function is pure and
// idempotent; metric names are derived from its output every cycle, so the
// same input must always yield the same result.
func SnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && isLowerOrDigit(prev) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.ToLower(b.String())
}

func isLowerOrDigit(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
