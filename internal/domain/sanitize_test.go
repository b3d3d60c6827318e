package domain_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/domain"
)

func TestCleanText(t *testing.T) {
	t.Run("should normalize CRLF line endings", func(t *testing.T) {
		require.Equal(t, "línea uno\nlínea dos", domain.CleanText("línea uno\r\nlínea dos"))
	})

	t.Run("should strip control characters but keep tabs and newlines", func(t *testing.T) {
		require.Equal(t, "a\tb\nc", domain.CleanText("a\tb\x00\nc\x07"))
	})

	t.Run("should collapse runs of blank lines", func(t *testing.T) {
		cleaned := domain.CleanText("párrafo uno\n\n\n\npárrafo dos")
		require.Equal(t, "párrafo uno\n\npárrafo dos", cleaned)
	})

	t.Run("should trim trailing whitespace per line", func(t *testing.T) {
		require.Equal(t, "hola\nmundo", domain.CleanText("hola   \nmundo\t"))
	})
}

func TestTruncateAnswer(t *testing.T) {
	t.Run("should leave short answers untouched", func(t *testing.T) {
		require.Equal(t, "corto", domain.TruncateAnswer("corto", 100))
	})

	t.Run("should prefer cutting at a sentence end", func(t *testing.T) {
		text := "Primera frase completa. Segunda frase completa. Tercera frase que no cabe entera en el límite."
		truncated := domain.TruncateAnswer(text, 60)
		require.Equal(t, "Primera frase completa. Segunda frase completa.", truncated)
	})

	t.Run("should fall back to a word boundary with ellipsis", func(t *testing.T) {
		text := strings.Repeat("palabra ", 20)
		truncated := domain.TruncateAnswer(text, 50)
		require.LessOrEqual(t, len(truncated), 53)
		require.True(t, strings.HasSuffix(truncated, "…"))
		require.NotContains(t, truncated, "palabr…")
	})

	t.Run("should hard-cut when there is no usable boundary", func(t *testing.T) {
		text := strings.Repeat("x", 200)
		truncated := domain.TruncateAnswer(text, 50)
		require.True(t, strings.HasSuffix(truncated, "…"))
	})

	t.Run("should cut multibyte text on rune boundaries", func(t *testing.T) {
		text := strings.Repeat("á", 200)
		truncated := domain.TruncateAnswer(text, 50)
		require.True(t, utf8.ValidString(truncated))
		require.Equal(t, 51, utf8.RuneCountInString(truncated))
		require.True(t, strings.HasSuffix(truncated, "…"))
	})

	t.Run("should not truncate multibyte text under the character limit", func(t *testing.T) {
		// 40 characters but 80 bytes.
		text := strings.Repeat("é", 40)
		require.Equal(t, text, domain.TruncateAnswer(text, 50))
	})
}

func TestSplitSentences(t *testing.T) {
	t.Run("should split on terminators and drop short fragments", func(t *testing.T) {
		text := "La PEEP mantiene los alvéolos abiertos al final de la espiración. Sí. ¿Cómo se ajusta en pacientes con SDRA?"
		sentences := domain.SplitSentences(text, 20)
		require.Len(t, sentences, 2)
		require.Equal(t, "La PEEP mantiene los alvéolos abiertos al final de la espiración.", sentences[0])
	})

	t.Run("should keep a trailing sentence without terminator", func(t *testing.T) {
		sentences := domain.SplitSentences("una frase final sin punto que es suficientemente larga", 20)
		require.Len(t, sentences, 1)
	})
}
