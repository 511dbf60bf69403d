// Package codepoint decodes UTF-8 text into Unicode scalar values, replacing
// malformed sequences with U+FFFD instead of failing.
package codepoint

import "iter"

// Replacement is emitted for every malformed sequence.
const Replacement rune = 0xFFFD

// Decoder is a forward-only cursor over a byte slice.
// Restart by constructing a new Decoder over the same bytes.
type Decoder struct {
	b   []byte
	pos int
}

// New returns a decoder positioned at the first byte of b.
func New(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Pos returns the number of bytes consumed so far.
func (d *Decoder) Pos() int {
	return d.pos
}

// Next returns the next scalar value, or false at end of input.
func (d *Decoder) Next() (rune, bool) {
	if d.pos >= len(d.b) {
		return 0, false
	}
	lead := d.b[d.pos]

	var (
		n  int
		cp rune
	)
	switch {
	case lead&0x80 == 0:
		d.pos++
		return rune(lead), true
	case lead&0xE0 == 0xC0:
		n, cp = 1, rune(lead&0x1F)
	case lead&0xF0 == 0xE0:
		n, cp = 2, rune(lead&0x0F)
	case lead&0xF8 == 0xF0:
		n, cp = 3, rune(lead&0x07)
	default:
		// Continuation byte or 11111xxx in lead position.
		d.pos++
		return Replacement, true
	}

	consumed := 1
	for i := 1; i <= n; i++ {
		if d.pos+i >= len(d.b) || d.b[d.pos+i]&0xC0 != 0x80 {
			d.pos += consumed
			return Replacement, true
		}
		cp = cp<<6 | rune(d.b[d.pos+i]&0x3F)
		consumed++
	}
	d.pos += consumed
	return cp, true
}

// Runes returns a lazy sequence of the scalar values of b.
func Runes(b []byte) iter.Seq[rune] {
	return func(yield func(rune) bool) {
		d := New(b)
		for {
			r, ok := d.Next()
			if !ok || !yield(r) {
				return
			}
		}
	}
}

// String is Runes over a string.
func String(s string) iter.Seq[rune] {
	return Runes([]byte(s))
}

// Decode collects all scalar values of b.
func Decode(b []byte) []rune {
	out := make([]rune, 0, len(b))
	for r := range Runes(b) {
		out = append(out, r)
	}
	return out
}

// Count returns the number of scalar values in b.
func Count(b []byte) int {
	n := 0
	for range Runes(b) {
		n++
	}
	return n
}
