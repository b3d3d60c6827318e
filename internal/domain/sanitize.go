package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxAnswerLength caps answers handed back to the platform.
const MaxAnswerLength = 4000

// CleanText is the default sanitization pass applied to every answer,
// whatever its source. It strips control characters, normalizes line
// endings and collapses runs of blank lines.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}

	lines := strings.Split(builder.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// TruncateAnswer bounds an answer to max characters, preferring to cut at
// a sentence end and falling back to a word boundary. Cuts happen on rune
// boundaries so multibyte text never yields invalid UTF-8.
func TruncateAnswer(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	cut := string([]rune(s)[:max])

	if idx := lastSentenceEnd(cut); idx > len(cut)/2 {
		return strings.TrimSpace(cut[:idx+1])
	}

	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > len(cut)/2 {
		return strings.TrimSpace(cut[:idx]) + "…"
	}

	return strings.TrimSpace(cut) + "…"
}

func lastSentenceEnd(s string) int {
	last := -1
	for _, terminator := range []string{". ", ".\n", "! ", "? ", "!\n", "?\n"} {
		if idx := strings.LastIndex(s, terminator); idx > last {
			last = idx
		}
	}
	if last == -1 {
		for _, terminator := range []byte{'.', '!', '?'} {
			if idx := strings.LastIndexByte(s, terminator); idx > last {
				last = idx
			}
		}
	}
	return last
}

// SplitSentences breaks text on sentence terminators, returning trimmed
// sentences longer than minLen characters.
func SplitSentences(text string, minLen int) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if len(sentence) > minLen {
			sentences = append(sentences, sentence)
		}
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()

	return sentences
}
