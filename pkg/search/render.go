package search

import (
	"fmt"
	"strings"
)

const specialChars = `\+-&|!(){}[]^"~*?:/`

// Escape backslash-escapes the index query language's reserved characters.
func Escape(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(specialChars, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RenderText renders the query text in the index's query syntax.
func RenderText(text string, match MatchType) string {
	words := strings.Fields(text)
	switch match {
	case MatchPrefix:
		for i, w := range words {
			words[i] = Escape(strings.ToLower(w)) + "*"
		}
		return strings.Join(words, " ")
	case MatchTerms:
		for i, w := range words {
			words[i] = Escape(w)
		}
		return strings.Join(words, " ")
	default:
		return `"` + strings.ReplaceAll(strings.ReplaceAll(text, `\`, `\\`), `"`, `\"`) + `"`
	}
}

// RenderFilter renders a filter as a field query, negated with a leading "-".
func RenderFilter(filter Filter) string {
	rendered := fmt.Sprintf(`%s:"%s"`, filter.Field, strings.ReplaceAll(filter.Value, `"`, `\"`))
	if filter.Negate {
		return "-" + rendered
	}
	return rendered
}
