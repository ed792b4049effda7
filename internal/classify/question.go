package classify

import "strings"

// Question pairs the raw inbound text with its normalized form. Values are
// immutable once created.
type Question struct {
	RawText        string
	NormalizedText string
}

func NewQuestion(raw string) Question {
	return Question{RawText: raw, NormalizedText: Normalize(raw)}
}

// Normalize lowercases the text, strips chat mention tokens like <@U123>,
// and collapses runs of whitespace.
func Normalize(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); {
		if lower[i] == '<' {
			if end := strings.IndexByte(lower[i:], '>'); end >= 0 {
				i += end + 1
				continue
			}
		}
		b.WriteByte(lower[i])
		i++
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
