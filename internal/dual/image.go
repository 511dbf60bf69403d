// Package dual decodes a photo into an 8-bit SDR rendition and, for gain map
// containers, a linear HDR rendition, and encodes the pair back.
package dual

import (
	"errors"
	"fmt"

	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// ErrDecode means no SDR rendition could be decoded.
var ErrDecode = errors.New("decode failed")

// Image holds both renditions of a photo. SDR is 8-bit gamma encoded RGB.
// HDR is float linear RGB or nil for plain inputs.
type Image struct {
	SDR *pixbuf.Buffer[uint8]
	HDR *pixbuf.Buffer[float32]
}

// HasHDR reports whether the HDR rendition is present.
func (im *Image) HasHDR() bool {
	return im.HDR != nil
}

// Validate checks that both renditions are RGB and share dimensions.
func (im *Image) Validate() error {
	if im.SDR == nil || im.SDR.Empty() {
		return errors.New("missing SDR rendition")
	}
	if im.SDR.Order != pixbuf.RGB {
		return fmt.Errorf("SDR channel order %s, want rgb", im.SDR.Order)
	}
	if im.HDR == nil {
		return nil
	}
	if im.HDR.Order != pixbuf.RGB {
		return fmt.Errorf("HDR channel order %s, want rgb", im.HDR.Order)
	}
	if !pixbuf.SameSize(im.SDR, im.HDR) {
		return fmt.Errorf("SDR %dx%d and HDR %dx%d dimensions differ",
			im.SDR.Width, im.SDR.Height, im.HDR.Width, im.HDR.Height)
	}
	return nil
}
