package security

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	spaceRunRegex   = regexp.MustCompile(`[ \t]+`)
	scriptBodyRegex = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

// SanitizeString trims input and drops NUL and control characters other
// than newlines and tabs.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return removeControlCharacters(input)
}

// StripHTMLTags removes markup, including the bodies of script and style
// elements.
func StripHTMLTags(input string) string {
	input = scriptBodyRegex.ReplaceAllString(input, "")
	return htmlTagRegex.ReplaceAllString(input, "")
}

// NormalizeWhitespace collapses runs of spaces and tabs on each line and
// trims the result. Newlines are kept.
func NormalizeWhitespace(input string) string {
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRegex.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// TruncateString cuts input to at most maxRunes runes.
func TruncateString(input string, maxRunes int) string {
	if maxRunes <= 0 {
		return input
	}
	runes := []rune(input)
	if len(runes) <= maxRunes {
		return input
	}
	return string(runes[:maxRunes])
}

// SanitizeText cleans user supplied free text (locations, cancellation
// reasons, chat messages) before it is stored. maxRunes <= 0 means no limit.
func SanitizeText(input string, maxRunes int) string {
	input = SanitizeString(input)
	input = StripHTMLTags(input)
	input = NormalizeWhitespace(input)
	return TruncateString(input, maxRunes)
}

func removeControlCharacters(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
