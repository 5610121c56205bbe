package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Label returns a comparison key for a product label: NFC-normalized,
// case-folded, with runs of whitespace collapsed to single spaces.
func Label(label string) string {
	folded := cases.Fold().String(norm.NFC.String(label))
	return strings.Join(strings.Fields(folded), " ")
}
