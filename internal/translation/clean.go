package translation

import (
	"regexp"
	"strings"
)

// Chat models like to announce their answer. These prefixes are stripped
// from the start of a reply, case-insensitively.
var preamble = regexp.MustCompile(`(?i)^\s*(here is the translation|here's the translation|translation|translated text|traducción al español|la traducción al español|la traducción|traducción|traducido)\s*(to [a-z]+|al [a-záéíóú]+)?\s*:\s*`)

var quotePairs = [][2]string{
	{`"`, `"`},
	{"“", "”"},
	{"«", "»"},
	{"'", "'"},
	{"「", "」"},
}

// CleanOutput strips preambles and wrapping quotes from a model reply.
func CleanOutput(reply string) string {
	out := strings.TrimSpace(reply)
	out = preamble.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)

	for _, q := range quotePairs {
		if len(out) >= len(q[0])+len(q[1]) && strings.HasPrefix(out, q[0]) && strings.HasSuffix(out, q[1]) {
			inner := out[len(q[0]) : len(out)-len(q[1])]
			if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) {
				out = strings.TrimSpace(inner)
			}
			break
		}
	}
	return out
}
