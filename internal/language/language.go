// Package language guesses the language of short texts and tracks which
// language the interview speaks and listens in.
package language

import (
	"strings"
	"unicode"
)

// Tag is a BCP-47 style locale identifier such as "vi-VN".
type Tag string

const (
	Unknown    Tag = ""
	Vietnamese Tag = "vi-VN"
	English    Tag = "en-US"
	Russian    Tag = "ru-RU"

	// Default is used when neither the text nor any declared language gives a hint.
	Default = English
)

const (
	letterWeight   = 3
	stopWordWeight = 1
)

var supported = []Tag{Vietnamese, English, Russian}

// Supported returns the tags the classifier can produce.
func Supported() []Tag {
	out := make([]Tag, len(supported))
	copy(out, supported)
	return out
}

// vietnameseLetters holds letters that only show up in Vietnamese among the supported languages.
const vietnameseLetters = "ăđơư" +
	"ằắẳẵặầấẩẫậảạ" +
	"ềếểễệẻẹẽ" +
	"ỉịĩ" +
	"ồốổỗộờớởỡợỏọ" +
	"ừứửữựủụũ" +
	"ỳỷỹỵ"

// sharedLetters are accented letters Vietnamese shares with French or Spanish
// loanwords such as "résumé" or "café". They count only next to another
// Vietnamese signal.
const sharedLetters = "àáâãèéêìíòóôõùúý"

var stopWords = map[Tag]map[string]struct{}{
	Vietnamese: setOf(
		"và", "là", "của", "có", "không", "tôi", "bạn", "được", "trong", "cho",
		"với", "này", "một", "những", "các", "đã", "sẽ", "rất", "khi", "chào",
		"xin", "em", "anh", "chị", "làm", "việc", "năm", "kinh", "nghiệm",
	),
	English: setOf(
		"the", "a", "an", "and", "is", "are", "was", "were", "i", "you",
		"he", "she", "we", "they", "it", "to", "of", "in", "on", "for",
		"with", "my", "your", "have", "has", "how", "what", "why", "when",
		"hello", "today", "this", "that", "be", "do", "can", "would",
	),
	Russian: setOf(
		"и", "в", "не", "что", "я", "на", "с", "как", "это", "по",
		"мы", "вы", "он", "она", "у", "к", "из", "за", "для", "мой",
	),
}

func setOf(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Classify returns the most likely language of text, or Unknown when nothing points anywhere.
// It has no side effects.
func Classify(text string) Tag {
	lower := strings.ToLower(text)

	scores := make(map[Tag]int, len(supported))
	letters := make(map[Tag]bool, len(supported))
	shared := 0

	for _, r := range lower {
		switch {
		case strings.ContainsRune(vietnameseLetters, r):
			scores[Vietnamese] += letterWeight
			letters[Vietnamese] = true
		case strings.ContainsRune(sharedLetters, r):
			shared++
		case unicode.Is(unicode.Cyrillic, r):
			scores[Russian] += letterWeight
			letters[Russian] = true
		}
	}

	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		for _, tag := range supported {
			if _, ok := stopWords[tag][word]; ok {
				scores[tag] += stopWordWeight
			}
		}
	}

	if scores[Vietnamese] > 0 {
		scores[Vietnamese] += shared * stopWordWeight
	}

	best := Unknown
	bestScore := 0
	for _, tag := range supported {
		score := scores[tag]
		if score == 0 {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore = tag, score
		case score == bestScore && letters[tag] && !letters[best]:
			best = tag
		}
	}

	return best
}

// Normalize canonicalises a tag: "VI_vn" becomes "vi-VN". Unknown stays Unknown.
func Normalize(tag string) Tag {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return Unknown
	}

	parts := strings.Split(tag, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) > 1 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return Tag(strings.Join(parts, "-"))
}

// Primary returns the primary subtag in lower case ("vi" for "vi-VN").
func Primary(tag Tag) string {
	s := strings.ToLower(strings.ReplaceAll(string(tag), "_", "-"))
	if idx := strings.Index(s, "-"); idx != -1 {
		return s[:idx]
	}
	return s
}

// Expand maps a bare primary subtag to the supported full tag ("vi" to "vi-VN").
// Tags that are not supported are returned normalized.
func Expand(tag string) Tag {
	n := Normalize(tag)
	if n == Unknown {
		return Unknown
	}
	for _, s := range supported {
		if s == n {
			return s
		}
	}
	if !strings.Contains(string(n), "-") {
		for _, s := range supported {
			if Primary(s) == string(n) {
				return s
			}
		}
	}
	return n
}

// FirstKnown returns the first candidate that is not Unknown, or Default.
func FirstKnown(candidates ...Tag) Tag {
	for _, c := range candidates {
		if c != Unknown {
			return c
		}
	}
	return Default
}
