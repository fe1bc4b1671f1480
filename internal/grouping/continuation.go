package grouping

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adverant/nexus/pagetranslate-worker/internal/langtag"
)

// connectors lists words that open a clause which continues the previous
// sentence. Keyed by base language.
var connectors = map[string][]string{
	"en": {"because", "since", "although", "though", "but", "and", "if", "when", "or", "so", "unless", "while", "until"},
	"es": {"porque", "por", "ya que", "debido", "pues", "si", "cuando", "y", "pero", "aunque", "mientras", "o"},
	"pt": {"porque", "pois", "já que", "mas", "e", "se", "quando", "embora", "enquanto"},
	"fr": {"parce que", "puisque", "mais", "et", "si", "quand", "bien que", "car", "ou", "lorsque"},
	"it": {"perché", "poiché", "ma", "e", "se", "quando", "anche se", "mentre"},
	"de": {"weil", "da", "obwohl", "aber", "und", "wenn", "als", "oder", "denn"},
}

const terminalPunctuation = ".!?;:…。！？"

// trailing closers that may follow a sentence end, e.g. `"Go!"`.
const closers = "\"'”’)]」』】"

func connectorsFor(lang string) []string {
	if words, ok := connectors[langtag.Base(lang, "en")]; ok {
		return words
	}
	return connectors["en"]
}

// endsOpen reports whether text stops without terminal punctuation. Empty
// text carries no evidence either way and is not considered open.
func endsOpen(text string) bool {
	text = strings.TrimRight(strings.TrimSpace(text), closers)
	if text == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	return !strings.ContainsRune(terminalPunctuation, last)
}

func startsLower(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	return unicode.IsLower(first)
}

func startsWithConnector(text, lang string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, c := range connectorsFor(lang) {
		if lower == c {
			return true
		}
		if strings.HasPrefix(lower, c) {
			next, _ := utf8.DecodeRuneInString(lower[len(c):])
			if unicode.IsSpace(next) || unicode.IsPunct(next) {
				return true
			}
		}
	}
	return false
}

// shortFragment: a short phrase following another short phrase that did not
// end a sentence is most likely the rest of the same line.
func shortFragment(prev, curr string) bool {
	currTokens := len(strings.Fields(curr))
	prevTokens := len(strings.Fields(prev))
	if currTokens == 0 || prevTokens == 0 {
		return false
	}
	return currTokens <= 4 && prevTokens <= 3 && !strings.Contains(prev, ".")
}

// continues is the linguistic continuation test.
func continues(prev, curr, lang string) bool {
	return endsOpen(prev) ||
		startsLower(curr) ||
		startsWithConnector(curr, lang) ||
		shortFragment(prev, curr)
}
