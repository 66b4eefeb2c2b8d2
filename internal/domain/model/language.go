package model

import "strings"

// Judge language identifiers (Judge0 CE).
var languageIDs = map[string]int{
	"python":     71,
	"cpp":        54,
	"java":       62,
	"javascript": 63,
}

// LanguageID returns the judge's id for a language slug.
func LanguageID(slug string) (int, bool) {
	id, ok := languageIDs[strings.ToLower(strings.TrimSpace(slug))]
	return id, ok
}

// SupportedLanguage reports whether slug can be judged.
func SupportedLanguage(slug string) bool {
	_, ok := LanguageID(slug)
	return ok
}
