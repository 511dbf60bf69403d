// Package layout places a photo on a fixed-size framed canvas.
package layout

import (
	"errors"
	"fmt"
	"image"
)

// Default canvas dimensions.
const (
	DefaultWidth  = 2160
	DefaultMargin = 80
	DefaultFooter = 300
)

// Geometry describes the canvas: a margin on every side and a footer band
// below the photo area.
type Geometry struct {
	Width  int
	Height int
	Margin int
	Footer int
}

// NewGeometry returns a portrait 4:5 canvas of the given width.
func NewGeometry(width, margin, footer int) Geometry {
	return Geometry{
		Width:  width,
		Height: int(float64(width) * 1.25),
		Margin: margin,
		Footer: footer,
	}
}

// DefaultGeometry is the 2160x2700 canvas with 80 px margin and 300 px footer.
func DefaultGeometry() Geometry {
	return NewGeometry(DefaultWidth, DefaultMargin, DefaultFooter)
}

// Validate checks that the photo area is not empty.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Margin < 0 || g.Footer < 0 {
		return fmt.Errorf("invalid canvas %dx%d margin %d footer %d", g.Width, g.Height, g.Margin, g.Footer)
	}
	if g.Width-2*g.Margin <= 0 || g.band() <= 0 {
		return errors.New("margins and footer leave no room for the photo")
	}
	return nil
}

func (g Geometry) band() int {
	return g.Height - 2*g.Margin - g.Footer
}

// Bounds is the canvas rectangle.
func (g Geometry) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// FooterY is the top of the text block, 60 px into the footer band.
func (g Geometry) FooterY() int {
	return g.Height - g.Footer + 60
}

// Place returns the rectangle a srcW x srcH photo occupies on the canvas.
// The photo is scaled uniformly to fit the area between the margins and the
// footer and centered horizontally. Its top edge sits one margin below the
// canvas top, so the top and side margins match whichever dimension binds.
func (g Geometry) Place(srcW, srcH int) (image.Rectangle, error) {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid source size %dx%d", srcW, srcH)
	}
	if err := g.Validate(); err != nil {
		return image.Rectangle{}, err
	}
	band := g.band()
	scale := min(float64(g.Width-2*g.Margin)/float64(srcW), float64(band)/float64(srcH))

	dw := max(int(float64(srcW)*scale), 1)
	dh := max(int(float64(srcH)*scale), 1)
	x := (g.Width - dw) / 2
	y := g.Margin
	return image.Rect(x, y, x+dw, y+dh), nil
}
