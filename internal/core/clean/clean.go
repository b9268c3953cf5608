// Package clean canonicalizes raw location strings
// Name pipeline
// 1 UTF-8 repair and NFC composition
// 2 Strip markup: whole tags, stray "<word" openers, stray "x>" closers
// 3 Numeric-only values stop here, untouched
// 4 Drop anything that is not a letter, digit, mark or space
// 5 Collapse whitespace and trim
// 6 Title case
package clean

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reTag      = regexp.MustCompile(`<[^>]+>`)
	reOpenTag  = regexp.MustCompile(`<[a-zA-Z]+`)
	reCloseTag = regexp.MustCompile(`[a-zA-Z]>`)
	reNumeric  = regexp.MustCompile(`^\s*\d+\s*$`)
)

// name chains are stateful, keep one per goroutine
var namePool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.Predicate(keepNot)),
		)
	},
}

var titlePool = sync.Pool{
	New: func() any { c := cases.Title(language.Und); return &c },
}

func keepNot(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.Is(unicode.Mn, r))
}

// StripHTML removes tags and tag debris left by broken imports
func StripHTML(s string) string {
	s = reTag.ReplaceAllString(s, "")
	s = reOpenTag.ReplaceAllString(s, "")
	return reCloseTag.ReplaceAllString(s, "")
}

// Name returns the canonical display form of a place name.
// An empty result means the value carried nothing usable.
func Name(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(strings.ToValidUTF8(s, ""))
	s = StripHTML(s)
	if reNumeric.MatchString(s) {
		return s
	}

	tr := namePool.Get().(transform.Transformer)
	s, _, _ = transform.String(tr, s)
	tr.Reset()
	namePool.Put(tr)

	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	c := titlePool.Get().(*cases.Caser)
	s = c.String(s)
	titlePool.Put(c)
	return s
}

// Acronym upper-cases s and keeps only A-Z and 0-9; "" means no acronym
func Acronym(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToUpper(StripHTML(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// AcronymPtr is Acronym over a nullable column
func AcronymPtr(s *string) *string {
	if s == nil {
		return nil
	}
	if a := Acronym(*s); a != "" {
		return &a
	}
	return nil
}
