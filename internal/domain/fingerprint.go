package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PromptTemplateVersion is folded into every fingerprint so cache entries
// are invalidated whenever prompt wording changes.
const PromptTemplateVersion = "v3"

// NormalizeQuestion canonicalizes a question for fingerprinting:
// lower-case, trimmed, diacritics stripped, whitespace collapsed.
func NormalizeQuestion(question string) string {
	lowered := strings.ToLower(strings.TrimSpace(question))

	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, lowered)
	if err != nil {
		stripped = lowered
	}

	return strings.Join(strings.Fields(stripped), " ")
}

// Fingerprint derives the deterministic cache key for a question asked in
// the context of a lesson against a given provider.
func Fingerprint(question, lessonID, providerName string) string {
	payload := strings.Join([]string{
		NormalizeQuestion(question),
		lessonID,
		strings.ToLower(providerName),
		PromptTemplateVersion,
	}, "|")

	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}
