package customer

import "strings"

// NormalizeDocument reduces a tax document number to its significant digits
// so that formatted, bare and numerically stored variants of the same number
// compare equal. A document without any non-zero digit normalizes to "".
func NormalizeDocument(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	for _, r := range doc {
		if r < '0' || r > '9' {
			continue
		}
		// numeric columns drop leading zeros
		if r == '0' && b.Len() == 0 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
