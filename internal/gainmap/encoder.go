package gainmap

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// ImageLabel tags a raw encoder input.
type ImageLabel int

const (
	LabelSDR ImageLabel = iota
	LabelHDR
)

// StreamLabel tags a compressed stream inside the container.
type StreamLabel int

const (
	LabelBase StreamLabel = iota
	LabelGainMap
)

// Encoder is a single-use encode handle. Set the SDR and HDR renditions,
// call Encode, read EncodedStream, then Release.
type Encoder struct {
	sdr, hdr     *Image
	baseQuality  int
	gainQuality  int
	exif         []byte
	icc          [][]byte
	scale        int
	gamma        float32
	multiChannel bool

	out      []byte
	released bool
}

// NewEncoder returns a handle with default quality and gain map scale.
func NewEncoder() *Encoder {
	return &Encoder{
		baseQuality: DefaultQuality,
		gainQuality: DefaultQuality,
		scale:       DefaultGainMapScale,
		gamma:       DefaultGainMapGamma,
	}
}

// SetRawImage sets one rendition. SDR input must be RGBA8888 in sRGB,
// HDR input RGBA half float in linear light, both BT.709.
func (e *Encoder) SetRawImage(img *Image, label ImageLabel) error {
	if e.released {
		return errReleased
	}
	if img == nil {
		return errorf(CodeInvalidParam, "nil image")
	}
	if img.Gamut != GamutBT709 {
		return errorf(CodeUnsupportedFeature, "color gamut %s", img.Gamut)
	}
	w, h := img.Size()
	if w <= 0 || h <= 0 {
		return errorf(CodeInvalidParam, "empty image")
	}

	switch label {
	case LabelSDR:
		if img.Format != FormatRGBA8888 || img.U8 == nil || img.U8.Order != pixbuf.RGBA {
			return errorf(CodeInvalidParam, "SDR input must be RGBA8888")
		}
		if img.Transfer != TransferSRGB {
			return errorf(CodeInvalidParam, "SDR input transfer %s, want srgb", img.Transfer)
		}
		e.sdr = img
	case LabelHDR:
		if img.Format != FormatRGBAHalfFloat || img.F16 == nil || img.F16.Order != pixbuf.RGBA {
			return errorf(CodeInvalidParam, "HDR input must be RGBA half float")
		}
		if img.Transfer != TransferLinear {
			return errorf(CodeInvalidParam, "HDR input transfer %s, want linear", img.Transfer)
		}
		e.hdr = img
	default:
		return errorf(CodeInvalidParam, "unknown image label %d", label)
	}
	return nil
}

// SetQuality sets the JPEG quality of one stream.
func (e *Encoder) SetQuality(q int, label StreamLabel) error {
	if e.released {
		return errReleased
	}
	if q < 1 || q > 100 {
		return errorf(CodeInvalidParam, "quality %d out of range [1,100]", q)
	}
	switch label {
	case LabelBase:
		e.baseQuality = q
	case LabelGainMap:
		e.gainQuality = q
	default:
		return errorf(CodeInvalidParam, "unknown stream label %d", label)
	}
	return nil
}

// SetExif embeds an EXIF block in the container. The payload may carry the
// "Exif\0\0" signature or start directly with the TIFF header.
func (e *Encoder) SetExif(payload []byte) error {
	if e.released {
		return errReleased
	}
	if len(payload) == 0 {
		e.exif = nil
		return nil
	}
	if !bytes.HasPrefix(payload, exifSig) {
		payload = append(append([]byte(nil), exifSig...), payload...)
	}
	if len(payload)+2 > 0xFFFF {
		return errorf(CodeInvalidParam, "EXIF block too large: %d bytes", len(payload))
	}
	e.exif = payload
	return nil
}

// SetICC embeds an ICC profile ahead of the base image. An empty profile
// clears it.
func (e *Encoder) SetICC(profile []byte) error {
	if e.released {
		return errReleased
	}
	chunks, err := iccChunks(profile)
	if err != nil {
		return err
	}
	e.icc = chunks
	return nil
}

// SetGainMapScale sets the downscale factor of the gain map relative to the base.
func (e *Encoder) SetGainMapScale(scale int) error {
	if e.released {
		return errReleased
	}
	if scale < 1 || scale > 128 {
		return errorf(CodeInvalidParam, "gain map scale %d out of range [1,128]", scale)
	}
	e.scale = scale
	return nil
}

// SetGainMapGamma sets the encoding gamma of gain map codes.
func (e *Encoder) SetGainMapGamma(gamma float32) error {
	if e.released {
		return errReleased
	}
	if gamma <= 0 {
		return errorf(CodeInvalidParam, "gain map gamma must be positive")
	}
	e.gamma = gamma
	return nil
}

// SetMultiChannel selects a three channel gain map.
func (e *Encoder) SetMultiChannel(on bool) error {
	if e.released {
		return errReleased
	}
	e.multiChannel = on
	return nil
}

// Encode builds the container from the SDR and HDR renditions.
func (e *Encoder) Encode() error {
	if e.released {
		return errReleased
	}
	if e.sdr == nil || e.hdr == nil {
		return errorf(CodeInvalidOperation, "both SDR and HDR renditions are required")
	}
	if !pixbuf.SameSize(e.sdr.U8, e.hdr.F16) {
		sw, sh := e.sdr.Size()
		hw, hh := e.hdr.Size()
		return errorf(CodeInvalidParam, "SDR %dx%d and HDR %dx%d dimensions differ", sw, sh, hw, hh)
	}

	gm, meta, err := generate(e.sdr.U8, e.hdr.F16, generateOptions{
		scale:        e.scale,
		gamma:        e.gamma,
		multiChannel: e.multiChannel,
	})
	if err != nil {
		return wrap(CodeEncode, "generate gain map", err)
	}

	base, err := encodeJPEG(e.sdr.U8, e.baseQuality)
	if err != nil {
		return wrap(CodeEncode, "base image", err)
	}
	gmJPEG, err := encodeJPEG(gm, e.gainQuality)
	if err != nil {
		return wrap(CodeEncode, "gain map image", err)
	}
	iso, err := buildISOPayload(meta)
	if err != nil {
		return wrap(CodeEncode, "iso metadata", err)
	}

	out, err := assemble(base, gmJPEG, containerParts{
		Exif:         e.exif,
		ICC:          e.icc,
		PrimaryXMP:   primaryXMP(),
		SecondaryXMP: secondaryXMP(meta),
		SecondaryISO: iso,
	})
	if err != nil {
		return wrap(CodeEncode, "assemble container", err)
	}
	e.out = out
	return nil
}

// EncodedStream returns the container produced by Encode.
func (e *Encoder) EncodedStream() ([]byte, error) {
	if e.released {
		return nil, errReleased
	}
	if e.out == nil {
		return nil, errorf(CodeInvalidOperation, "encode not called")
	}
	return e.out, nil
}

// Release drops all buffers held by the handle. It is safe to call twice.
func (e *Encoder) Release() {
	e.sdr, e.hdr, e.exif, e.icc, e.out = nil, nil, nil, nil, nil
	e.released = true
}

func encodeJPEG(b *pixbuf.Buffer[uint8], quality int) ([]byte, error) {
	var img image.Image
	if b.Order == pixbuf.Gray {
		g := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
		for y := 0; y < b.Height; y++ {
			copy(g.Pix[y*g.Stride:], b.Row(y))
		}
		img = g
	} else {
		nrgba, err := pixbuf.ToNRGBA(b)
		if err != nil {
			return nil, err
		}
		img = nrgba
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
