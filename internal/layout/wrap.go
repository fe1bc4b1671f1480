package layout

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"

	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
)

const sentenceEnd = ".!?:…。！？"
const sentenceClosers = "\"'”’)]」』"

// SplitSentences cuts text after each run of sentence-ending punctuation,
// keeping the delimiters (and any closing quotes) on the preceding unit.
func SplitSentences(text string) []string {
	var units []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !strings.ContainsRune(sentenceEnd, r) {
			continue
		}
		for i < len(text) {
			next, n := utf8.DecodeRuneInString(text[i:])
			if !strings.ContainsRune(sentenceEnd, next) && !strings.ContainsRune(sentenceClosers, next) {
				break
			}
			i += n
		}
		if unit := strings.TrimSpace(text[start:i]); unit != "" {
			units = append(units, unit)
		}
		start = i
	}
	if unit := strings.TrimSpace(text[start:]); unit != "" {
		units = append(units, unit)
	}
	return units
}

// Wrap breaks text into lines no wider than width. Each sentence-like unit
// starts a new line. Words are never split: a word wider than width ends up
// alone on an overflowing line.
func Wrap(text string, face font.Face, width int, fp fonts.Provider) []string {
	var lines []string
	for _, unit := range SplitSentences(text) {
		unit = strings.Join(strings.Fields(unit), " ")
		if fp.Measure(unit, face) <= width {
			lines = append(lines, unit)
			continue
		}

		var current []string
		for _, word := range strings.Fields(unit) {
			if len(current) > 0 {
				candidate := strings.Join(current, " ") + " " + word
				if fp.Measure(candidate, face) > width {
					lines = append(lines, strings.Join(current, " "))
					current = current[:0]
				}
			}
			current = append(current, word)
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
	}
	return lines
}

// chunkOverflow is the last resort for single words wider than width: they
// are cut into slices of a fixed rune count sized for the widest glyph.
func chunkOverflow(lines []string, face font.Face, width int, fp fonts.Provider) ([]string, bool) {
	out := make([]string, 0, len(lines))
	chunked := false
	for _, line := range lines {
		if strings.ContainsRune(line, ' ') || fp.Measure(line, face) <= width {
			out = append(out, line)
			continue
		}

		runes := []rune(line)
		widest := 1
		for _, r := range runes {
			widest = max(widest, fp.Measure(string(r), face))
		}
		n := max(width/widest, 1)
		for i := 0; i < len(runes); i += n {
			out = append(out, string(runes[i:min(i+n, len(runes))]))
		}
		chunked = true
	}
	return out, chunked
}
