package canonical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// matchKeyCleaner drops the punctuation and whitespace that varies between
// the POS systems' renderings of the same customer name.
var matchKeyCleaner = strings.NewReplacer(" ", "", "-", "", ".", "", "'", "", ",", "")

// deaccent strips combining marks after NFD decomposition, so "José" and
// "Jose" produce the same key.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// MatchKey reduces a customer name to a join key: diacritics folded,
// uppercased, punctuation and spacing removed. The key is only ever used for
// matching; display names keep their original form.
func MatchKey(name string) string {
	folded, _, err := transform.String(deaccent, name)
	if err != nil {
		folded = name
	}
	return matchKeyCleaner.Replace(strings.ToUpper(strings.TrimSpace(folded)))
}
