// Package langtag normalizes the loose language tags that arrive with page
// jobs ("es", "es-MX", "ja", "auto").
package langtag

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto is the tag callers use when the source language is unknown.
const Auto = "auto"

// Base reduces a tag to its base language ("es-MX" -> "es"). Empty, "auto"
// and unparseable tags return fallback.
func Base(tag, fallback string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, Auto) {
		return fallback
	}
	t, err := language.Parse(tag)
	if err != nil {
		return fallback
	}
	base, conf := t.Base()
	if conf == language.No {
		return fallback
	}
	return base.String()
}

// Name returns the English name of the language ("es" -> "Spanish"), or
// fallback when the tag is unknown.
func Name(tag, fallback string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, Auto) {
		return fallback
	}
	t, err := language.Parse(tag)
	if err != nil {
		return fallback
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return fallback
}
