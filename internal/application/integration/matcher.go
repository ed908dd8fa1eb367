package integration

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFuzzyThreshold is the minimum name+brand similarity for a fuzzy match
const DefaultFuzzyThreshold = 0.85

// Matcher normalizes identifiers and scores name similarity between listings.
// Marketplace titles mix Turkish and Latin spellings ("Çanta" vs "Canta", "IŞIK" vs "isik"),
// so every comparison runs on a folded, diacritic-free form.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher. A threshold outside (0, 1] uses DefaultFuzzyThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured fuzzy threshold
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// fold strips diacritics, maps the Turkish dotless i and case-folds s.
// Transformers are stateful, so a fresh chain is built per call.
func fold(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			if r == 'ı' {
				return 'i'
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// NormalizeBarcode keeps only letters and digits and drops leading zeros, so a GTIN-13
// and the equivalent UPC-A compare equal
func (m *Matcher) NormalizeBarcode(s string) string {
	var b strings.Builder
	for _, r := range fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), "0")
	if out == "" && b.Len() > 0 {
		return "0"
	}
	return out
}

// NormalizeSKU folds case and diacritics and drops separators
func (m *Matcher) NormalizeSKU(s string) string {
	var b strings.Builder
	for _, r := range fold(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-', r == '_', r == '.', r == '/', unicode.IsSpace(r):
			// separators are noise between marketplaces
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeLinkID trims a linking id; linking ids are compared exactly
func (m *Matcher) NormalizeLinkID(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeText folds a title or brand, drops punctuation and collapses whitespace
func (m *Matcher) NormalizeText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range fold(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over runes
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// NameBrandScore scores two listings by their normalized brand and title.
// Listings with two different non-empty brands never match.
func (m *Matcher) NameBrandScore(nameA, brandA, nameB, brandB string) float64 {
	na, nb := m.NormalizeText(nameA), m.NormalizeText(nameB)
	if na == "" || nb == "" {
		return 0
	}
	ba, bb := m.NormalizeText(brandA), m.NormalizeText(brandB)
	if ba != "" && bb != "" && Similarity(ba, bb) < m.threshold {
		return 0
	}
	return Similarity(strings.TrimSpace(ba+" "+na), strings.TrimSpace(bb+" "+nb))
}

// IsFuzzyMatch reports whether two listings are similar enough to merge
func (m *Matcher) IsFuzzyMatch(nameA, brandA, nameB, brandB string) bool {
	return m.NameBrandScore(nameA, brandA, nameB, brandB) >= m.threshold
}
