package models

import (
	"strings"
	"unicode"
)

// SafeName turns an archive or folder name into a submission identifier that is
// safe to use as a single path element. Letters, digits, '-', '_' and '.' are
// kept, whitespace becomes '-', everything else is dropped. Leading dots are
// trimmed so the result can never be "." or "..".
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
