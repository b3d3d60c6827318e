package domain

import (
	"fmt"
	"strings"
)

// Limits for the auxiliary fallback generators.
const (
	maxFallbackSentences  = 5
	maxFallbackKeyPoints  = 6
	maxFallbackReferences = 6
	maxFallbackLinks      = 5
	maxSuggestions        = 4
	minSentenceLength     = 20
)

// StructuredAnswer is the uniform output contract produced by the
// deterministic generator. Every field goes through the same
// sanitization pass as LLM output.
type StructuredAnswer struct {
	Answer     string   `json:"answer"`
	KeyPoints  []string `json:"key_points,omitempty"`
	References []string `json:"references,omitempty"`
	Links      []string `json:"links,omitempty"`
}

// Markdown renders the full structured answer as a single document, so
// the auxiliary sections reach consumers that only see the token stream.
func (a StructuredAnswer) Markdown() string {
	sections := []string{a.Answer}
	sections = appendBulletSection(sections, "**Puntos clave:**", a.KeyPoints)
	sections = appendBulletSection(sections, "**Referencias:**", a.References)
	sections = appendBulletSection(sections, "**Enlaces útiles:**", a.Links)
	return strings.Join(sections, "\n\n")
}

func appendBulletSection(sections []string, heading string, items []string) []string {
	if len(items) == 0 {
		return sections
	}

	var builder strings.Builder
	builder.WriteString(heading)
	for _, item := range items {
		builder.WriteString("\n- ")
		builder.WriteString(item)
	}
	return append(sections, builder.String())
}

// categoryAdvice maps lesson-title keywords to study advice appended to
// fallback answers. Matched case-insensitively, first match wins, so the
// list is ordered to keep output deterministic.
var categoryAdvice = []struct {
	keyword string
	advice  string
}{
	{"ventilación", "En ventilación mecánica, revisa siempre los parámetros programados frente a los medidos y la curva de presión antes de sacar conclusiones."},
	{"farmacología", "En farmacología conviene fijar primero el mecanismo de acción y después las dosis; memorizar dosis sin mecanismo lleva a errores."},
	{"anatomía", "Para anatomía, apóyate en esquemas y repite la localización de cada estructura en relación con sus vecinas."},
	{"urgencias", "En urgencias, el orden de actuación (ABCDE) es más importante que el detalle de cada técnica aislada."},
	{"cuidados", "En cuidados del paciente, prioriza la valoración sistemática y registra siempre los cambios observados."},
}

// FallbackGenerator produces deterministic, LLM-free answers from lesson
// context. It makes no network calls: identical inputs always produce
// identical output.
type FallbackGenerator struct {
	sanitize Sanitizer
}

// NewFallbackGenerator creates a generator using the given sanitization
// pass. A nil sanitizer falls back to CleanText.
func NewFallbackGenerator(sanitize Sanitizer) *FallbackGenerator {
	if sanitize == nil {
		sanitize = CleanText
	}
	return &FallbackGenerator{sanitize: sanitize}
}

// Generate assembles a structured answer for a question about a lesson.
func (g *FallbackGenerator) Generate(lesson LessonContext, question string) StructuredAnswer {
	topic := topicLabel(lesson)

	var sections []string
	sections = append(sections, "## "+topic)
	sections = append(sections, fmt.Sprintf(
		"Este tema forma parte de la lección «%s». A continuación tienes un resumen elaborado a partir del material disponible.",
		firstNonEmpty(lesson.Title, topic)))

	if q := strings.TrimSpace(question); q != "" {
		sections = append(sections, fmt.Sprintf("Tu pregunta: «%s»", q))
	}

	if extract := contextExtract(lesson); extract != "" {
		sections = append(sections, extract)
	}

	if advice := adviceForTitle(lesson.Title); advice != "" {
		sections = append(sections, advice)
	}

	sections = append(sections,
		"Este resumen se ha generado a partir del contenido de la lección. Para una explicación más completa, repasa la sección correspondiente del material y consulta las referencias recomendadas.")

	return StructuredAnswer{
		Answer:     g.sanitize(strings.Join(sections, "\n\n")),
		KeyPoints:  g.KeyPoints(lesson),
		References: g.References(lesson),
		Links:      g.Links(lesson),
	}
}

// KeyPoints derives up to six study points from objectives and tags.
func (g *FallbackGenerator) KeyPoints(lesson LessonContext) []string {
	var points []string
	for _, objective := range lesson.Objectives {
		if strings.TrimSpace(objective) == "" {
			continue
		}
		points = append(points, g.sanitize(objective))
	}
	for _, tag := range lesson.Tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		points = append(points, g.sanitize(fmt.Sprintf("Repasa el concepto de %s en el contexto de la lección.", tag)))
	}
	return capList(points, maxFallbackKeyPoints)
}

// References produces up to six templated study references.
func (g *FallbackGenerator) References(lesson LessonContext) []string {
	title := firstNonEmpty(lesson.Title, "la lección")
	refs := []string{
		fmt.Sprintf("Material de la lección: %s", title),
		fmt.Sprintf("Guía de estudio del módulo de %s", firstNonEmpty(lesson.LessonType, "teoría")),
	}
	for _, tag := range lesson.Tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		refs = append(refs, fmt.Sprintf("Bibliografía recomendada sobre %s", tag))
	}
	sanitized := make([]string, 0, len(refs))
	for _, ref := range refs {
		sanitized = append(sanitized, g.sanitize(ref))
	}
	return capList(sanitized, maxFallbackReferences)
}

// Links produces up to five internal platform links.
func (g *FallbackGenerator) Links(lesson LessonContext) []string {
	if lesson.LessonID == "" {
		return nil
	}

	links := []string{fmt.Sprintf("/lecciones/%s", lesson.LessonID)}
	if lesson.Section != "" {
		links = append(links, fmt.Sprintf("/lecciones/%s#%s", lesson.LessonID, slugify(lesson.Section)))
	}
	for _, tag := range lesson.Tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		links = append(links, fmt.Sprintf("/buscar?tema=%s", slugify(tag)))
	}
	return capList(links, maxFallbackLinks)
}

// Suggestions produces follow-up questions for a lesson. Used for the
// trailing suggestions event on every answer.
func (g *FallbackGenerator) Suggestions(lesson LessonContext) []string {
	topic := topicLabel(lesson)
	suggestions := []string{
		fmt.Sprintf("¿Puedes explicar %s con un ejemplo clínico?", topic),
		fmt.Sprintf("¿Cuáles son los errores más frecuentes al estudiar %s?", topic),
	}
	for _, objective := range lesson.Objectives {
		if strings.TrimSpace(objective) == "" {
			continue
		}
		suggestions = append(suggestions, fmt.Sprintf("¿Cómo se relaciona esto con «%s»?", objective))
	}
	sanitized := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		sanitized = append(sanitized, g.sanitize(s))
	}
	return capList(sanitized, maxSuggestions)
}

// topicLabel picks the most specific available label: highlighted text,
// then section title, then lesson title.
func topicLabel(lesson LessonContext) string {
	return firstNonEmpty(lesson.Highlight, lesson.Section, lesson.Title, "el tema de la lección")
}

// contextExtract pulls up to five sentences verbatim from the longest
// available context text.
func contextExtract(lesson LessonContext) string {
	source := lesson.Body
	for _, candidate := range []string{lesson.Highlight, lesson.Section} {
		if len(candidate) > len(source) {
			source = candidate
		}
	}
	if source == "" {
		return ""
	}

	sentences := SplitSentences(source, minSentenceLength)
	sentences = capList(sentences, maxFallbackSentences)
	return strings.Join(sentences, " ")
}

func adviceForTitle(title string) string {
	lowered := strings.ToLower(title)
	for _, entry := range categoryAdvice {
		if strings.Contains(lowered, entry.keyword) {
			return entry.advice
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func capList(values []string, max int) []string {
	if len(values) > max {
		return values[:max]
	}
	return values
}

func slugify(s string) string {
	s = NormalizeQuestion(s)
	return strings.ReplaceAll(s, " ", "-")
}
