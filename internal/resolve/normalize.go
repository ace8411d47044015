package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchThreshold is the similarity ratio above which two normalized names match
const MatchThreshold = 0.75

// parenthetical matches qualifiers like "(ZPCG)" or "(Crna Gora)"
var parenthetical = regexp.MustCompile(`\([^)]*\)`)

// letters without a canonical decomposition
var strokeLetters = strings.NewReplacer("đ", "dj", "Đ", "Dj", "ł", "l", "Ł", "L", "ø", "o", "Ø", "O")

// StripDiacritics removes combining marks, e.g. "Bijelo Polje – Žabljak" -> "Bijelo Polje – Zabljak"
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strokeLetters.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// NormalizeName reduces a station name to lower-case ascii-ish words.
// Parenthesised qualifiers and any word in qualifiers (compared after the
// same normalization) are dropped. Punctuation separates words.
//
//	NormalizeName("Podgorica (ZPCG)", nil)                   == "podgorica"
//	NormalizeName("Zeta stajalište", []string{"stajaliste"}) == "zeta"
//	NormalizeName("Bar - Luka", nil)                         == "bar luka"
func NormalizeName(name string, qualifiers []string) string {
	s := parenthetical.ReplaceAllString(name, " ")
	s = strings.ToLower(StripDiacritics(s))

	drop := make(map[string]bool, len(qualifiers))
	for _, q := range qualifiers {
		drop[strings.ToLower(StripDiacritics(q))] = true
	}

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := words[:0]
	for _, w := range words {
		if !drop[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity returns the sequence-matcher ratio of two strings, compared rune by rune
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

// NamesMatch reports whether two already normalized names plausibly denote the same place
func NamesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return Similarity(a, b) > MatchThreshold
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
