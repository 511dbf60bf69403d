package uhdrframe

import (
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// WriteRGBE encodes a linear RGB canvas as a Radiance .hdr image.
func WriteRGBE(w io.Writer, b *pixbuf.Buffer[float32]) error {
	if b == nil || b.Empty() {
		return errors.New("empty HDR canvas")
	}
	src := pixbuf.ToRGB(b)
	img := hdr.NewRGB(image.Rect(0, 0, src.Width, src.Height))
	for y := 0; y < src.Height; y++ {
		row := src.Row(y)
		for x := 0; x < src.Width; x++ {
			p := row[x*3 : x*3+3]
			img.SetRGB(x, y, hdrcolor.RGB{R: float64(p[0]), G: float64(p[1]), B: float64(p[2])})
		}
	}
	return rgbe.Encode(w, img)
}

// WriteRGBEFile writes the canvas to path.
func WriteRGBEFile(path string, b *pixbuf.Buffer[float32]) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := WriteRGBE(f, b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
