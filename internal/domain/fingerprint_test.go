package domain_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/domain"
)

func TestNormalizeQuestion(t *testing.T) {
	t.Run("should lower-case and trim", func(t *testing.T) {
		require.Equal(t, "que es la peep", domain.NormalizeQuestion("  Que es la PEEP  "))
	})

	t.Run("should strip diacritics", func(t *testing.T) {
		require.Equal(t, "¿que es la ventilacion mecanica?",
			domain.NormalizeQuestion("¿Qué es la ventilación mecánica?"))
	})

	t.Run("should collapse internal whitespace", func(t *testing.T) {
		require.Equal(t, "a b c", domain.NormalizeQuestion("a \t b\n\nc"))
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("should be deterministic", func(t *testing.T) {
		a := domain.Fingerprint("¿Qué es la PEEP?", "lesson-42", "openai")
		b := domain.Fingerprint("¿Qué es la PEEP?", "lesson-42", "openai")
		require.Equal(t, a, b)
		require.Len(t, a, 64)
	})

	t.Run("should normalize question variants to the same key", func(t *testing.T) {
		a := domain.Fingerprint("  ¿Qué es la PEEP?  ", "lesson-42", "openai")
		b := domain.Fingerprint("¿que es la peep?", "lesson-42", "OpenAI")
		require.Equal(t, a, b)
	})

	t.Run("should vary with lesson and provider", func(t *testing.T) {
		base := domain.Fingerprint("¿Qué es la PEEP?", "lesson-42", "openai")
		require.NotEqual(t, base, domain.Fingerprint("¿Qué es la PEEP?", "lesson-43", "openai"))
		require.NotEqual(t, base, domain.Fingerprint("¿Qué es la PEEP?", "lesson-42", "anthropic"))
	})

	t.Run("should vary with a different question", func(t *testing.T) {
		a := domain.Fingerprint("¿Qué es la PEEP?", "lesson-42", "openai")
		b := domain.Fingerprint("¿Qué es el volumen tidal?", "lesson-42", "openai")
		require.NotEqual(t, a, b)
	})

	t.Run("should fold the template version into the key", func(t *testing.T) {
		hash := func(version string) string {
			payload := strings.Join([]string{
				domain.NormalizeQuestion("¿Qué es la PEEP?"),
				"lesson-42",
				"openai",
				version,
			}, "|")
			sum := sha256.Sum256([]byte(payload))
			return hex.EncodeToString(sum[:])
		}

		fingerprint := domain.Fingerprint("¿Qué es la PEEP?", "lesson-42", "openai")
		require.Equal(t, hash(domain.PromptTemplateVersion), fingerprint)

		// A version bump must invalidate every prior cache entry.
		require.NotEqual(t, hash(domain.PromptTemplateVersion+"-next"), fingerprint)
	})
}
