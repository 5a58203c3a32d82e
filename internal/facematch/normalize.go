package facematch

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the canonical form of an identity name: NFC with
// surrounding whitespace removed, so names typed on different systems
// compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NameFromFile derives an identity name from a reference image file name:
// the stem up to the first underscore, so "alice_2.jpg" becomes "alice".
func NameFromFile(base string) string {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(stem, "_"); i >= 0 {
		stem = stem[:i]
	}
	return NormalizeName(stem)
}
