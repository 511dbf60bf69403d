package gainmap

import (
	"github.com/ajroetker/go-highway/hwy"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// ColorGamut identifies a color gamut.
type ColorGamut int

const (
	GamutUnspecified ColorGamut = iota
	GamutBT709
	GamutDisplayP3
	GamutBT2100
)

func (g ColorGamut) String() string {
	switch g {
	case GamutBT709:
		return "bt709"
	case GamutDisplayP3:
		return "display_p3"
	case GamutBT2100:
		return "bt2100"
	default:
		return "unspecified"
	}
}

// ColorTransfer identifies a transfer function.
type ColorTransfer int

const (
	TransferUnspecified ColorTransfer = iota
	TransferSRGB
	TransferLinear
	TransferPQ
	TransferHLG
)

func (t ColorTransfer) String() string {
	switch t {
	case TransferSRGB:
		return "srgb"
	case TransferLinear:
		return "linear"
	case TransferPQ:
		return "pq"
	case TransferHLG:
		return "hlg"
	default:
		return "unspecified"
	}
}

// ColorRange identifies the sample value range.
type ColorRange int

const (
	RangeUnspecified ColorRange = iota
	RangeFull
	RangeLimited
)

// PixelFormat identifies a raw image layout.
type PixelFormat int

const (
	FormatUnspecified PixelFormat = iota
	// FormatRGBA8888 is 8 bits per channel RGBA, gamma encoded.
	FormatRGBA8888
	// FormatRGBAHalfFloat is 16-bit float per channel RGBA, linear light.
	FormatRGBAHalfFloat
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8888:
		return "rgba8888"
	case FormatRGBAHalfFloat:
		return "rgba_half_float"
	default:
		return "unspecified"
	}
}

// Image is a raw image passed to or returned from a codec handle.
// Exactly one of U8 and F16 is set, matching Format.
type Image struct {
	Format   PixelFormat
	Gamut    ColorGamut
	Transfer ColorTransfer
	Range    ColorRange

	U8  *pixbuf.Buffer[uint8]
	F16 *pixbuf.Buffer[hwy.Float16]
}

// Size returns the image dimensions.
func (im *Image) Size() (int, int) {
	switch {
	case im.U8 != nil:
		return im.U8.Width, im.U8.Height
	case im.F16 != nil:
		return im.F16.Width, im.F16.Height
	default:
		return 0, 0
	}
}

// Metadata holds gain map parameters in linear (non-log) form.
type Metadata struct {
	Version         string
	MaxContentBoost [3]float32
	MinContentBoost [3]float32
	Gamma           [3]float32
	OffsetSDR       [3]float32
	OffsetHDR       [3]float32
	HDRCapacityMin  float32
	HDRCapacityMax  float32
	UseBaseCG       bool
}

// Segments holds raw APP payloads for XMP and ISO blocks, including the
// namespace prefix and null terminator.
type Segments struct {
	PrimaryXMP   []byte
	PrimaryISO   []byte
	SecondaryXMP []byte
	SecondaryISO []byte
}
