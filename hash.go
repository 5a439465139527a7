package tlstream

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeText trims surrounding whitespace and lowercases text so that
// submissions differing only in case or padding share a cache entry.
//
// Trimming and lowercasing follow ECMAScript String.prototype.trim and
// toLowerCase, so keys match those written by browser-side clients.
func NormalizeText(text string) string {
	return lowerECMA(strings.TrimFunc(text, isECMASpace))
}

// HashText computes the SHA-256 hex digest of the normalized text.
func HashText(text string) string {
	hash := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(hash[:])
}

// DeriveKey builds the cache key for a text and language pair:
// "translate:{source}:{target}:{digest}".
func DeriveKey(text, sourceLang, targetLang string) string {
	return KeyNamespace + ":" + sourceLang + ":" + targetLang + ":" + HashText(text)
}

// isECMASpace reports the WhiteSpace and LineTerminator code points. It
// differs from unicode.IsSpace only on U+0085 and U+FEFF.
func isECMASpace(r rune) bool {
	switch r {
	case '\uFEFF':
		return true
	case '\u0085':
		return false
	}
	return unicode.IsSpace(r)
}

// lowerECMA is strings.ToLower plus the two context-free special casings
// ECMAScript applies: U+0130 lowers to "i\u0307" and a word-final capital
// sigma lowers to final sigma.
func lowerECMA(s string) string {
	if !strings.ContainsAny(s, "\u0130\u03A3") {
		return strings.ToLower(s)
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch r {
		case '\u0130':
			b.WriteString("i\u0307")
		case '\u03A3':
			if isFinalSigma(runes, i) {
				b.WriteRune('\u03C2')
			} else {
				b.WriteRune('\u03C3')
			}
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// isFinalSigma implements the Unicode Final_Sigma condition: preceded by a
// cased letter and not followed by one, skipping case-ignorable runes.
func isFinalSigma(runes []rune, i int) bool {
	before := false
	for j := i - 1; j >= 0; j-- {
		if isCaseIgnorable(runes[j]) {
			continue
		}
		before = isCased(runes[j])
		break
	}
	if !before {
		return false
	}
	for j := i + 1; j < len(runes); j++ {
		if isCaseIgnorable(runes[j]) {
			continue
		}
		return !isCased(runes[j])
	}
	return true
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r) ||
		unicode.Is(unicode.Other_Lowercase, r) || unicode.Is(unicode.Other_Uppercase, r)
}

func isCaseIgnorable(r rune) bool {
	switch r {
	case '\'', '.', ':', '\u00B7', '\u0387', '\u055F', '\u05F4', '\u2018', '\u2019',
		'\u2024', '\u2027', '\uFE13', '\uFE52', '\uFE55', '\uFF07', '\uFF0E', '\uFF1A':
		return true
	}
	return unicode.In(r, unicode.Mn, unicode.Me, unicode.Cf, unicode.Lm, unicode.Sk)
}
