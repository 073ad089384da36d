// Package textsan provides a deterministic text sanitizer for discovered
// issue titles and bodies before they're deduplicated and published.
//
// Pipeline order:
//  1. UTF-8 repair: drop invalid bytes
//  2. Strip disallowed control bytes / C1 controls
//  3. Unicode NFC normalization
//  4. Remove zero-width/format runes (ZWJ, ZWNJ, BOM, ...)
//  5. Width-fold fullwidth forms to ASCII
//  6. Collapse whitespace runs to a single space/newline and trim
//
// Unlike a profanity-matching normalizer, this pipeline deliberately does
// NOT case-fold or strip combining marks: issue text is stored and surfaced
// to humans, so casing and legitimate diacritics (e.g. "café", "naïve")
// must survive.
package textsan

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Sanitizer is concurrency safe when used through the pooled chain below.
type Sanitizer struct{}

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)), // strip ZWJ/ZWNJ/BOM/format chars
			width.Fold,                         // fullwidth forms -> ASCII
		)
	},
}

// New constructs a Sanitizer.
func New() *Sanitizer { return &Sanitizer{} }

// Clean returns the sanitized form of s, following the pipeline above.
func (s *Sanitizer) Clean(in string) string {
	if in == "" {
		return ""
	}

	cleaned := strings.ToValidUTF8(in, "")
	cleaned = stripControls(cleaned)

	tr := chainPool.Get().(transform.Transformer)
	out, _, _ := transform.String(tr, cleaned)
	tr.Reset()
	chainPool.Put(tr)

	return collapseSpaces(out)
}

// stripControls removes NUL, ASCII/C1 controls other than \n \r \t, and DEL.
func stripControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r < 0x20, r == 0x7F, r >= 0x80 && r <= 0x9F:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseSpaces converts whitespace runs to a single space, preserving
// newlines, and trims the result.
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS, sawNL := false, false
	flush := func() {
		if !inWS {
			return
		}
		if sawNL {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		inWS, sawNL = false, false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			if r == '\n' || r == '\r' {
				sawNL = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return strings.Trim(b.String(), " \n\t\r")
}
