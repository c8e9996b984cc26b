// Package escape implements the brace-doubling transform required by the
// template engine that consumes prompt text. A literal { or } in a prompt
// must appear as {{ or }} on the wire; braces that are already doubled must
// be left alone.
//
// Only prompt-text artifacts go through this package. JavaScript tool bodies
// must never be escaped: doubling braces breaks the syntax.
package escape

import "strings"

// Encode doubles every bare brace. Braces that are already part of a
// {{ or }} pair are left untouched, so Encode is idempotent:
// Encode(Encode(s)) == Encode(s).
//
// The scan works on runs of identical brace characters: a run of length n
// holds n/2 escaped pairs and n%2 bare braces. Only the bare one is doubled.
// Building the output left to right in a single pass avoids the offset
// shifting a naive replace-in-place would cause.
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)

	for i := 0; i < len(s); {
		c := s[i]
		if c != '{' && c != '}' {
			b.WriteByte(c)
			i++
			continue
		}

		// Measure the run of identical braces
		j := i
		for j < len(s) && s[j] == c {
			j++
		}
		run := j - i

		// Pairs stay as-is, the odd leftover gets doubled
		pairs := run / 2
		for k := 0; k < pairs; k++ {
			b.WriteByte(c)
			b.WriteByte(c)
		}
		if run%2 == 1 {
			b.WriteByte(c)
			b.WriteByte(c)
		}

		i = j
	}

	return b.String()
}

// Decode contracts doubled braces back to single ones. It is the inverse of
// Encode for any input without pre-existing doubled braces:
// Decode(Encode(s)) == s.
func Decode(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if (c == '{' || c == '}') && i+1 < len(s) && s[i+1] == c {
			b.WriteByte(c)
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}

	return b.String()
}

// IsEscaped reports whether s is already fully escaped, i.e. Encode would
// be a no-op.
func IsEscaped(s string) bool {
	return Encode(s) == s
}
