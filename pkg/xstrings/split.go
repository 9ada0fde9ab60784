package xstrings

import (
	"strings"
	"unicode/utf8"
)

// SplitParagraph splits text into chunks of at most maxLength bytes, breaking
// on whitespace. A newline at a break stays with the chunk before it. Words
// longer than maxLength are never cut: the chunk grows to the next
// whitespace instead.
func SplitParagraph(text string, maxLength int) []string {
	if maxLength <= 0 || len(text) == 0 {
		return []string{text}
	}

	var chunks []string
	rest := text

	for len(rest) > maxLength {
		cut := strings.LastIndexFunc(rest[:maxLength+1], isWhitespace)
		if cut <= 0 {
			next := strings.IndexFunc(rest[maxLength:], isWhitespace)
			if next < 0 {
				return append(chunks, rest)
			}
			cut = maxLength + next
		}

		chunk := rest[:cut]
		if rest[cut] == '\n' {
			chunk += "\n"
			cut++
		}
		chunks = append(chunks, chunk)

		rest = strings.TrimLeftFunc(rest[cut:], isWhitespace)
	}

	if len(rest) > 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// SplitRunes cuts text into chunks of at most maxLength bytes without
// splitting a UTF-8 sequence. It ignores word boundaries.
func SplitRunes(text string, maxLength int) []string {
	if maxLength <= 0 || len(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
