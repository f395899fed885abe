// Package slug turns display names into URL-safe identifiers and makes
// them unique against the entries already stored.
//
// Generate must stay byte-for-byte compatible with the slugs already
// persisted in the casinos table, so the pipeline below is fixed:
//
//  1. transliterate Cyrillic to Latin (uppercase keeps a capital here only)
//  2. lowercase
//  3. drop everything except ASCII word characters, whitespace and "-"
//  4. whitespace runs become one "-"
//  5. "-" runs become one "-"
//  6. trim "-" on both ends
//  7. cut to MaxLength and trim a trailing "-" left by the cut
//  8. empty result becomes Fallback
package slug

import (
	"regexp"
	"strings"
)

const (
	MaxLength = 100
	Fallback  = "casino"
)

// whitespace mirrors the ECMAScript \s class; RE2's \s is ASCII only.
const whitespace = `\t\n\v\f\r\p{Zs}\x{2028}\x{2029}\x{FEFF}`

var (
	disallowed = regexp.MustCompile(`[^\w` + whitespace + `-]`)
	spaceRuns  = regexp.MustCompile(`[` + whitespace + `]+`)
	hyphenRuns = regexp.MustCompile(`-+`)
	translit   = buildTable()
)

var lower = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// buildTable adds the uppercase letters: "Ж" -> "Zh", "Я" -> "Ya".
func buildTable() map[rune]string {
	t := make(map[rune]string, len(lower)*2)
	for r, latin := range lower {
		t[r] = latin
		upper := []rune(strings.ToUpper(string(r)))[0]
		if latin == "" {
			t[upper] = ""
			continue
		}
		t[upper] = strings.ToUpper(latin[:1]) + latin[1:]
	}
	return t
}

// Generate derives the slug for name. It never returns an empty string.
func Generate(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if latin, ok := translit[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}

	s := strings.ToLower(b.String())
	s = disallowed.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	// only ASCII survives the steps above, so a byte cut is a rune cut
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	if s == "" {
		return Fallback
	}
	return s
}

var valid = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Valid reports whether s has the shape Generate produces.
func Valid(s string) bool {
	return len(s) <= MaxLength && valid.MatchString(s)
}
