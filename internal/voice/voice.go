// Package voice picks a synthesis voice for a language from whatever voices are installed.
package voice

import (
	"strings"

	"github.com/spigell/hh-interviewer/internal/language"
)

// Voice describes an installed synthesis voice.
type Voice struct {
	Name    string `yaml:"name" json:"name"`
	Lang    string `yaml:"lang" json:"lang"`
	Default bool   `yaml:"default" json:"default"`
	Local   bool   `yaml:"local" json:"local"`
}

// Selection is the outcome of Resolve.
type Selection struct {
	Voice Voice
	// Found is false when the voice list was empty.
	Found bool
	// Lang is the language the chosen voice should be asked to speak.
	Lang language.Tag
	// Missing is set when no voice exists for the requested language and a
	// fallback-language voice was substituted instead.
	Missing bool
}

var vendors = []string{"google", "microsoft", "apple"}

// preferred lists engine-branded natural voices per primary subtag, best first.
var preferred = map[string][]string{
	"vi": {"Microsoft HoaiMy Online (Natural)", "Microsoft NamMinh Online (Natural)", "Google Tiếng Việt"},
	"en": {"Microsoft Aria Online (Natural)", "Microsoft Jenny Online (Natural)", "Google US English"},
	"ru": {"Microsoft Svetlana Online (Natural)", "Microsoft Dmitry Online (Natural)", "Google русский"},
}

// Select returns the best voice for lang following a fixed cascade:
// branded natural voice, vendor voice, exact locale, primary subtag, first voice.
func Select(lang language.Tag, voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	primary := language.Primary(lang)

	for _, name := range preferred[primary] {
		for _, v := range voices {
			if strings.EqualFold(v.Name, name) && samePrimary(v, primary) {
				return v, true
			}
		}
	}

	for _, v := range voices {
		if samePrimary(v, primary) && isNatural(v) && hasVendor(v) {
			return v, true
		}
	}

	for _, v := range voices {
		if samePrimary(v, primary) && hasVendor(v) {
			return v, true
		}
	}

	for _, v := range voices {
		if language.Normalize(v.Lang) == language.Normalize(string(lang)) {
			return v, true
		}
	}

	for _, v := range voices {
		if samePrimary(v, primary) {
			return v, true
		}
	}

	return voices[0], true
}

// Resolve selects a voice for lang and applies the missing Vietnamese voice rule:
// when no Vietnamese voice is installed at all, a fallback-language voice is used
// and the selection is flagged Missing.
func Resolve(lang, fallback language.Tag, voices []Voice) Selection {
	if language.Primary(lang) == "vi" && !HasLanguage(lang, voices) {
		fallback = language.FirstKnown(fallback)
		v, ok := Select(fallback, voices)
		return Selection{Voice: v, Found: ok, Lang: fallback, Missing: true}
	}

	v, ok := Select(lang, voices)
	return Selection{Voice: v, Found: ok, Lang: lang}
}

// HasLanguage reports whether any voice shares the primary subtag of lang.
func HasLanguage(lang language.Tag, voices []Voice) bool {
	primary := language.Primary(lang)
	for _, v := range voices {
		if samePrimary(v, primary) {
			return true
		}
	}
	return false
}

func samePrimary(v Voice, primary string) bool {
	return primary != "" && language.Primary(language.Tag(v.Lang)) == primary
}

func hasVendor(v Voice) bool {
	name := strings.ToLower(v.Name)
	for _, vendor := range vendors {
		if strings.Contains(name, vendor) {
			return true
		}
	}
	return false
}

func isNatural(v Voice) bool {
	name := strings.ToLower(v.Name)
	return strings.Contains(name, "natural") || strings.Contains(name, "neural")
}
