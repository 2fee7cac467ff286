// Package lang normalizes language codes and detects the language of text.
package lang

import (
	"sort"
	"strings"
)

// Fallback is the code used when a language is missing or cannot be detected.
const Fallback = "en"

// Normalize reduces a language code to its lowercase ISO 639-1 base.
// Accepts: "pt-BR", "pt_pt", " PT " -> "pt". Empty input yields Fallback.
// Normalize is idempotent.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "_", "-")
	if idx := strings.Index(code, "-"); idx != -1 {
		code = code[:idx]
	}
	if code == "" {
		return Fallback
	}
	return code
}

// Known reports whether the normalized code has a display name.
func Known(code string) bool {
	_, ok := names[Normalize(code)]
	return ok
}

// IsEnglish returns true if the language code represents English.
func IsEnglish(code string) bool {
	return Normalize(code) == "en"
}

// DisplayName returns the English name of a language.
// Falls back to the code itself for unknown languages.
func DisplayName(code string) string {
	if name, ok := names[Normalize(code)]; ok {
		return name
	}
	return code
}

// Codes returns every known code in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(names))
	for code := range names {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Names returns display names for the given codes, keyed by normalized code.
func Names(codes []string) map[string]string {
	out := make(map[string]string, len(codes))
	for _, c := range codes {
		out[Normalize(c)] = DisplayName(c)
	}
	return out
}

// CodeForName maps a language reported by name ("english", "Portuguese")
// or by code to a normalized code. Unknown input returns "" and false.
func CodeForName(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	if code, ok := aliases[key]; ok {
		return code, true
	}
	for code, n := range names {
		if strings.ToLower(n) == key {
			return code, true
		}
	}
	if Known(key) {
		return Normalize(key), true
	}
	return "", false
}
