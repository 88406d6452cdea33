package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// honorific suffixes dropped from the end of a name
var suffixes = map[string]bool{
	"jr": true, "sr": true,
	"ii": true, "iii": true, "iv": true, "v": true,
}

// NormalizeName is the lookup key of a surface name: diacritics stripped,
// case folded, trailing Jr./Sr./II-V removed, punctuation stripped.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '/', r == '+', r == '&':
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	for len(fields) > 1 && suffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	out := strings.Join(fields, " ")
	if out == "" {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// displayName is how a raw name is stored when it becomes canonical.
func displayName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
