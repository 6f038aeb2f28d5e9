package narration

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/language"
)

// Step is one named text transformation applied before speaking.
type Step struct {
	Name  string
	Apply func(lang language.Tag, text string) string
}

// Steps is the cleanup pipeline in the order it runs.
var Steps = []Step{
	{Name: "strip_pictographs", Apply: stripPictographs},
	{Name: "markdown_emphasis", Apply: plainEmphasis},
	{Name: "newlines_to_sentences", Apply: newlinesToSentences},
	{Name: "collapse_whitespace", Apply: collapseWhitespace},
	{Name: "punctuation_spacing", Apply: punctuationSpacing},
}

// Clean runs text through every step and logs the steps that changed it.
func Clean(lang language.Tag, text string, logger *zap.Logger) string {
	for _, step := range Steps {
		out := step.Apply(lang, text)
		if logger != nil && out != text {
			logger.Debug("narration cleanup",
				zap.String("step", step.Name),
				zap.Int("before", len(text)),
				zap.Int("after", len(out)),
			)
		}
		text = out
	}
	return text
}

const (
	zeroWidthJoiner   = '\u200d'
	variationSelector = '\ufe0f'
)

func stripPictographs(_ language.Tag, text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == zeroWidthJoiner, r == variationSelector:
			return -1
		case unicode.Is(unicode.So, r):
			return -1
		case r > unicode.MaxLatin1 && unicode.Is(unicode.Sk, r):
			return -1
		}
		return r
	}, text)
}

var emphasis = []*regexp.Regexp{
	regexp.MustCompile(`\*\*([^*]+)\*\*`),
	regexp.MustCompile(`__([^_]+)__`),
	regexp.MustCompile(`\*([^*\s][^*]*)\*`),
	regexp.MustCompile("`([^`]+)`"),
}

var (
	headingMarker = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	bulletMarker  = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
)

func plainEmphasis(_ language.Tag, text string) string {
	for _, re := range emphasis {
		text = re.ReplaceAllString(text, "$1")
	}
	text = headingMarker.ReplaceAllString(text, "")
	return bulletMarker.ReplaceAllString(text, "")
}

func newlinesToSentences(_ language.Tag, text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}

	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	sentences := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !endsSentence(line) {
			line += "."
		}
		sentences = append(sentences, line)
	}
	return strings.Join(sentences, " ")
}

func endsSentence(s string) bool {
	r := []rune(s)
	return strings.ContainsRune(".!?:;…", r[len(r)-1])
}

func collapseWhitespace(_ language.Tag, text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// punctuationSpacing adds a space after punctuation for Vietnamese so the
// synthesizer pauses. Decimal points are left alone.
func punctuationSpacing(lang language.Tag, text string) string {
	if language.Primary(lang) != "vi" {
		return text
	}

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text) + 8)
	for i, r := range runes {
		b.WriteRune(r)
		if !strings.ContainsRune(",.;:!?", r) || i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		if unicode.IsSpace(next) || strings.ContainsRune(",.;:!?)\"'", next) {
			continue
		}
		if i > 0 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(next) {
			continue
		}
		b.WriteRune(' ')
	}
	return b.String()
}
