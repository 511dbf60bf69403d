// Package overlay loads brand logos and alpha-blends them onto canvases.
package overlay

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder.
	_ "image/png"  // Register PNG decoder.
	"io"
	"os"

	"github.com/nfnt/resize"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	_ "golang.org/x/image/tiff" // Register TIFF decoder.
)

// DefaultSize is the edge of the square logo in canvas pixels.
const DefaultSize = 120

// Load reads a logo asset and scales it to size x size.
func Load(path string, size int) (*pixbuf.Buffer[uint8], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	logo, err := Decode(f, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return logo, nil
}

// Decode reads a PNG, JPEG or TIFF logo and scales it to size x size.
// The result is non-premultiplied RGBA; opaque sources get alpha 255.
func Decode(r io.Reader, size int) (*pixbuf.Buffer[uint8], error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid logo size %d", size)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty logo image")
	}
	scaled := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	return pixbuf.FromImage(scaled), nil
}

// BlendSDR composites an RGBA logo onto an 8-bit canvas with its top-left
// corner at at, as dst*(1-a) + p*a rounded and clamped to 0..255.
func BlendSDR(dst *pixbuf.Buffer[uint8], logo *pixbuf.Buffer[uint8], at image.Point) error {
	return blend(dst, logo, at, func(v uint8) uint8 { return v })
}

// BlendHDR composites an RGBA logo onto a linear canvas. Logo samples are
// converted with (p/255)^2.2 before blending.
func BlendHDR(dst *pixbuf.Buffer[float32], logo *pixbuf.Buffer[uint8], at image.Point) error {
	return blend(dst, logo, at, pixbuf.GammaToLinear)
}

func blend[T pixbuf.Sample](dst *pixbuf.Buffer[T], logo *pixbuf.Buffer[uint8], at image.Point, conv func(uint8) T) error {
	if logo.Order != pixbuf.RGBA {
		return fmt.Errorf("logo must be RGBA, got %s", logo.Order)
	}
	colorCh := dst.Channels()
	if dst.Order.HasAlpha() {
		colorCh--
	}
	for y := 0; y < logo.Height; y++ {
		row := logo.Row(y)
		for x := 0; x < logo.Width; x++ {
			p := row[x*4 : x*4+4]
			if p[3] == 0 {
				continue
			}
			d, ok := dst.Pixel(at.X+x, at.Y+y)
			if !ok {
				continue
			}
			a := float64(p[3]) / 255
			c := pixbuf.RGBColor(conv(p[0]), conv(p[1]), conv(p[2])).In(dst.Order)
			for i := 0; i < colorCh; i++ {
				d[i] = pixbuf.BlendSaturate(d[i], c[i], a)
			}
		}
	}
	return nil
}
