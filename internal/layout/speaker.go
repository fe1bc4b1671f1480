package layout

import (
	"regexp"
	"strings"
)

// speakerTag matches a trailing "- Name Surname" attribution. Hyphen, en
// dash and em dash are accepted; the dash must start a word.
var speakerTag = regexp.MustCompile(`(?:^|\s)([-–—]\s*\p{Lu}[\p{Ll}'’]+\s+\p{Lu}[\p{Ll}'’]+)\s*$`)

// ExtractSpeakerTag splits a trailing speaker tag off text. When text is
// nothing but the tag, it is returned unchanged with no tag.
func ExtractSpeakerTag(text string) (body, tag string) {
	loc := speakerTag.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, ""
	}
	body = strings.TrimSpace(text[:loc[2]])
	if body == "" {
		return text, ""
	}
	return body, strings.TrimSpace(text[loc[2]:loc[3]])
}
