package translation

import (
	"strings"

	"github.com/adverant/nexus/pagetranslate-worker/internal/langtag"
)

// punctuation-only tokens that never go to the translator, in their neutral
// (ASCII) form.
var neutralPunctuation = map[string]string{
	"!":   "!",
	"?":   "?",
	"!?":  "!?",
	"?!":  "?!",
	"!!":  "!!",
	"??":  "??",
	".":   ".",
	"..":  "..",
	"...": "...",
	"…":   "…",
	"'":   "'",
}

// targetPunctuation overrides the neutral form for languages with their own
// conventions.
var targetPunctuation = map[string]map[string]string{
	"es": {
		"!":  "¡!",
		"?":  "¿?",
		"!?": "¡¿?!",
		"?!": "¡¿?!",
		"!!": "¡¡!!",
		"??": "¿¿??",
	},
}

var fullWidth = strings.NewReplacer(
	"！", "!",
	"？", "?",
	"。", ".",
	"……", "...",
	"・・・", "...",
	"．", ".",
)

// LookupPunctuation returns the target-language form of a punctuation-only
// token, and false when text is not one of the known tokens.
func LookupPunctuation(text, targetLanguage string) (string, bool) {
	key := fullWidth.Replace(strings.TrimSpace(text))
	neutral, ok := neutralPunctuation[key]
	if !ok {
		return "", false
	}
	if forms, ok := targetPunctuation[langtag.Base(targetLanguage, "")]; ok {
		if form, ok := forms[key]; ok {
			return form, true
		}
	}
	return neutral, true
}
