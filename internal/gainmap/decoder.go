package gainmap

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// ProbeInfo describes a container without decoding pixels.
type ProbeInfo struct {
	Width, Height         int
	GainMapWidth          int
	GainMapHeight         int
	Gamut                 ColorGamut
	Meta                  Metadata
	MultiChannelGainMap   bool
	HasISOMetadata        bool
	HasPrimaryXMPMetadata bool
	// HasPrimaryISOVersion reports the ISO 21496-1 version block in the
	// base image header.
	HasPrimaryISOVersion bool
}

// Decoder is a single-use decode handle. Configure it, call Decode, read
// DecodedImage, then Release. A released handle rejects every call.
type Decoder struct {
	data     []byte
	format   PixelFormat
	transfer ColorTransfer
	boost    float32

	split    *SplitResult
	gamut    ColorGamut
	out      *Image
	released bool
}

// NewDecoder returns a handle that produces RGBA8888 sRGB by default.
func NewDecoder() *Decoder {
	return &Decoder{format: FormatRGBA8888, transfer: TransferSRGB}
}

// SetImage sets the compressed container. The slice is not copied.
func (d *Decoder) SetImage(data []byte) error {
	if d.released {
		return errReleased
	}
	if len(data) == 0 {
		return errorf(CodeInvalidParam, "empty input")
	}
	if d.out != nil {
		return errorf(CodeInvalidOperation, "image already decoded")
	}
	d.data = data
	d.split = nil
	return nil
}

// SetOutFormat selects the output pixel layout.
func (d *Decoder) SetOutFormat(f PixelFormat) error {
	if d.released {
		return errReleased
	}
	if f != FormatRGBA8888 && f != FormatRGBAHalfFloat {
		return errorf(CodeUnsupportedFeature, "output format %s", f)
	}
	d.format = f
	return nil
}

// SetOutTransfer selects the output transfer function.
func (d *Decoder) SetOutTransfer(t ColorTransfer) error {
	if d.released {
		return errReleased
	}
	if t != TransferSRGB && t != TransferLinear {
		return errorf(CodeUnsupportedFeature, "output transfer %s", t)
	}
	d.transfer = t
	return nil
}

// SetDisplayBoost limits the HDR rendition to a display headroom.
// Zero, the default, renders the full HDR capacity.
func (d *Decoder) SetDisplayBoost(boost float32) error {
	if d.released {
		return errReleased
	}
	if boost != 0 && boost < 1 {
		return errorf(CodeInvalidParam, "display boost %v below 1", boost)
	}
	d.boost = boost
	return nil
}

// Probe parses the container structure and metadata.
func (d *Decoder) Probe() (*ProbeInfo, error) {
	if d.released {
		return nil, errReleased
	}
	if err := d.parse(); err != nil {
		return nil, err
	}
	base, err := jpeg.DecodeConfig(bytes.NewReader(d.split.PrimaryJPEG))
	if err != nil {
		return nil, wrap(CodeDecode, "base image header", err)
	}
	gm, err := jpeg.DecodeConfig(bytes.NewReader(d.split.GainMapJPEG))
	if err != nil {
		return nil, wrap(CodeDecode, "gain map header", err)
	}
	return &ProbeInfo{
		Width:                 base.Width,
		Height:                base.Height,
		GainMapWidth:          gm.Width,
		GainMapHeight:         gm.Height,
		Gamut:                 d.gamut,
		Meta:                  *d.split.Meta,
		MultiChannelGainMap:   !d.split.Meta.singleChannel(),
		HasISOMetadata:        d.split.Segments.SecondaryISO != nil,
		HasPrimaryXMPMetadata: d.split.Segments.PrimaryXMP != nil,
		HasPrimaryISOVersion:  d.split.Segments.PrimaryISO != nil,
	}, nil
}

func (d *Decoder) parse() error {
	if d.split != nil {
		return nil
	}
	if len(d.data) == 0 {
		return errorf(CodeInvalidOperation, "no input image set")
	}
	res, err := Split(d.data)
	if err != nil {
		return err
	}
	_, icc, err := headerBlocks(res.PrimaryJPEG)
	if err != nil {
		return wrap(CodeDecode, "base image header", err)
	}
	d.split = res
	d.gamut = gamutFromICC(profileFromICC(icc))
	return nil
}

// Decode produces the configured rendition. RGBA8888 output requires the
// sRGB transfer and yields the base image. RGBA half float output requires
// the linear transfer and yields the base image lifted by the gain map.
func (d *Decoder) Decode() error {
	if d.released {
		return errReleased
	}
	if d.out != nil {
		return nil
	}
	switch {
	case d.format == FormatRGBA8888 && d.transfer == TransferSRGB,
		d.format == FormatRGBAHalfFloat && d.transfer == TransferLinear:
	default:
		return errorf(CodeInvalidParam, "unsupported output combination %s/%s", d.format, d.transfer)
	}
	if err := d.parse(); err != nil {
		return err
	}

	baseImg, err := jpeg.Decode(bytes.NewReader(d.split.PrimaryJPEG))
	if err != nil {
		return wrap(CodeDecode, "base image", err)
	}
	base := pixbuf.FromImage(baseImg)
	for y := 0; y < base.Height; y++ {
		row := base.Row(y)
		for x := 3; x < len(row); x += 4 {
			row[x] = 0xFF
		}
	}

	out := &Image{Format: d.format, Transfer: d.transfer, Gamut: d.gamut, Range: RangeFull}
	if d.format == FormatRGBA8888 {
		out.U8 = base
		d.out = out
		return nil
	}

	gmImg, err := jpeg.Decode(bytes.NewReader(d.split.GainMapJPEG))
	if err != nil {
		return wrap(CodeDecode, "gain map image", err)
	}
	gm := gainMapBuffer(gmImg)
	if gm.Width == 0 || gm.Height == 0 || gm.Width > base.Width || gm.Height > base.Height {
		return errorf(CodeDecode, "gain map %dx%d does not fit base %dx%d", gm.Width, gm.Height, base.Width, base.Height)
	}
	if err := validateMetadata(d.split.Meta); err != nil {
		return err
	}
	out.F16, err = reconstruct(base, gm, d.split.Meta, displayWeight(d.split.Meta, d.boost))
	if err != nil {
		return wrap(CodeDecode, "apply gain map", err)
	}
	d.out = out
	return nil
}

// DecodedImage returns the output of a successful Decode.
func (d *Decoder) DecodedImage() (*Image, error) {
	if d.released {
		return nil, errReleased
	}
	if d.out == nil {
		return nil, errorf(CodeInvalidOperation, "decode not called")
	}
	return d.out, nil
}

// Release drops all buffers held by the handle. It is safe to call twice.
func (d *Decoder) Release() {
	d.data, d.split, d.out = nil, nil, nil
	d.released = true
}

func gainMapBuffer(img image.Image) *pixbuf.Buffer[uint8] {
	if g, ok := img.(*image.Gray); ok {
		b := g.Bounds()
		out := pixbuf.New[uint8](b.Dx(), b.Dy(), pixbuf.Gray)
		for y := 0; y < out.Height; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Row(y), g.Pix[off:off+out.Width])
		}
		return out
	}
	return pixbuf.FromImageRGB(img)
}

func validateMetadata(m *Metadata) error {
	for i := 0; i < 3; i++ {
		switch {
		case m.MinContentBoost[i] <= 0, m.MaxContentBoost[i] <= 0:
			return errorf(CodeDecode, "content boost must be positive")
		case m.MaxContentBoost[i] < m.MinContentBoost[i]:
			return errorf(CodeDecode, "max content boost below min")
		case m.Gamma[i] <= 0:
			return errorf(CodeDecode, "gamma must be positive")
		}
	}
	if m.HDRCapacityMin <= 0 || m.HDRCapacityMax < m.HDRCapacityMin {
		return errorf(CodeDecode, "invalid HDR capacity range")
	}
	return nil
}
