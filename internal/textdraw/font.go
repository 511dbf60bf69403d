// Package textdraw renders single-line text onto pixel buffers.
package textdraw

import (
	"fmt"
	"image"
	"os"

	"github.com/vearutop/uhdrframe/internal/codepoint"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Font is a sized glyph source. A Font with no face draws nothing and
// measures zero, which is what Cache hands out for fonts that failed to load.
type Font struct {
	face font.Face
	size float64
}

// Glyph is the coverage mask of one character positioned on the canvas.
type Glyph struct {
	// Rect is the destination rectangle.
	Rect image.Rectangle
	// Mask holds coverage in its alpha channel, starting at MaskPoint.
	Mask      image.Image
	MaskPoint image.Point
	// Advance is the pen movement in whole pixels.
	Advance int
}

// Open loads a TrueType or OpenType file at the given pixel size.
func Open(path string, size float64) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse loads font data at the given pixel size.
func Parse(data []byte, size float64) (*Font, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid font size %v", size)
	}
	sfnt, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(sfnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	return &Font{face: face, size: size}, nil
}

// Loaded reports whether the font can render glyphs.
func (f *Font) Loaded() bool {
	return f != nil && f.face != nil
}

// Size is the pixel size the font was opened at.
func (f *Font) Size() float64 {
	if f == nil {
		return 0
	}
	return f.size
}

// Close releases the face. Closing twice is a no-op.
func (f *Font) Close() error {
	if !f.Loaded() {
		return nil
	}
	err := f.face.Close()
	f.face = nil
	return err
}

// Glyph rasterizes r with its baseline origin at dot.
func (f *Font) Glyph(dot image.Point, r rune) (Glyph, bool) {
	if !f.Loaded() {
		return Glyph{}, false
	}
	dr, mask, maskp, advance, ok := f.face.Glyph(fixed.P(dot.X, dot.Y), r)
	g := Glyph{Rect: dr, Mask: mask, MaskPoint: maskp, Advance: advance.Floor()}
	return g, ok && mask != nil
}

// MeasureWidth returns the sum of glyph advances of text in pixels.
func (f *Font) MeasureWidth(text string) int {
	if !f.Loaded() {
		return 0
	}
	w := 0
	for r := range codepoint.String(text) {
		adv, ok := f.face.GlyphAdvance(r)
		if !ok {
			continue
		}
		w += adv.Floor()
	}
	return w
}
