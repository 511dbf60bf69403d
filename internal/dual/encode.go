package dual

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/sirupsen/logrus"
	"github.com/vearutop/uhdrframe/internal/exifmeta"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// EncodeOptions controls output compression.
type EncodeOptions struct {
	// Quality of the base (or only) JPEG stream, 1..100.
	Quality int
	// GainMapQuality of the gain map stream, Quality when zero.
	GainMapQuality int
	// Exif is an APP1 EXIF payload copied into the output, may be empty.
	Exif []byte
	// ICC is a color profile embedded ahead of the base image of a gain
	// map container, may be empty.
	ICC []byte

	// GainMapScale is the downscale factor of the gain map, 4 when zero.
	GainMapScale int
	// GainMapGamma is the encoding gamma of gain map codes, 1 when zero.
	GainMapGamma float32
	// MultiChannel writes an RGB gain map instead of a luminance one.
	MultiChannel bool
}

// DefaultEncodeOptions returns quality 95 for both streams and the default
// gain map shape.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Quality:        gainmap.DefaultQuality,
		GainMapQuality: gainmap.DefaultQuality,
		GainMapScale:   gainmap.DefaultGainMapScale,
		GainMapGamma:   gainmap.DefaultGainMapGamma,
	}
}

// Encode writes a gain map container when im has an HDR rendition and a
// plain JPEG otherwise. EXIF is embedded in the container, or copied into
// the plain JPEG on a best-effort basis.
func Encode(im *Image, opt EncodeOptions, log logrus.FieldLogger) ([]byte, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if opt.Quality == 0 {
		opt.Quality = gainmap.DefaultQuality
	}
	if opt.GainMapQuality == 0 {
		opt.GainMapQuality = opt.Quality
	}
	if opt.GainMapScale == 0 {
		opt.GainMapScale = gainmap.DefaultGainMapScale
	}
	if opt.GainMapGamma == 0 {
		opt.GainMapGamma = gainmap.DefaultGainMapGamma
	}

	if im.HasHDR() {
		out, err := encodeGainMap(im, opt)
		if err != nil {
			logCodecError(log, "encode_gainmap", err).Error("gain map encode failed")
			return nil, fmt.Errorf("encode gain map: %w", err)
		}
		return out, nil
	}

	out, err := encodePlain(im.SDR, opt.Quality)
	if err != nil {
		log.WithError(err).WithField("stage", "encode_jpeg").Error("JPEG encode failed")
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	if len(opt.Exif) == 0 {
		return out, nil
	}
	withExif, err := exifmeta.InsertExif(out, opt.Exif)
	if err != nil {
		log.WithError(err).WithField("stage", "copy_exif").Warn("EXIF not copied")
		return out, nil
	}
	return withExif, nil
}

func encodePlain(sdr *pixbuf.Buffer[uint8], quality int) ([]byte, error) {
	img, err := pixbuf.ToNRGBA(sdr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeGainMap(im *Image, opt EncodeOptions) ([]byte, error) {
	enc := gainmap.NewEncoder()
	defer enc.Release()

	sdr := &gainmap.Image{
		Format:   gainmap.FormatRGBA8888,
		Gamut:    gainmap.GamutBT709,
		Transfer: gainmap.TransferSRGB,
		Range:    gainmap.RangeFull,
		U8:       pixbuf.Reorder(im.SDR, pixbuf.RGBA, 0xFF),
	}
	hdr := &gainmap.Image{
		Format:   gainmap.FormatRGBAHalfFloat,
		Gamut:    gainmap.GamutBT709,
		Transfer: gainmap.TransferLinear,
		Range:    gainmap.RangeFull,
		F16:      pixbuf.Reorder(pixbuf.FloatToHalf(im.HDR), pixbuf.RGBA, hwy.Float32ToFloat16(1)),
	}

	if err := enc.SetRawImage(sdr, gainmap.LabelSDR); err != nil {
		return nil, err
	}
	if err := enc.SetRawImage(hdr, gainmap.LabelHDR); err != nil {
		return nil, err
	}
	if err := enc.SetQuality(opt.Quality, gainmap.LabelBase); err != nil {
		return nil, err
	}
	if err := enc.SetQuality(opt.GainMapQuality, gainmap.LabelGainMap); err != nil {
		return nil, err
	}
	if err := enc.SetExif(opt.Exif); err != nil {
		return nil, err
	}
	if err := enc.SetICC(opt.ICC); err != nil {
		return nil, err
	}
	if err := enc.SetGainMapScale(opt.GainMapScale); err != nil {
		return nil, err
	}
	if err := enc.SetGainMapGamma(opt.GainMapGamma); err != nil {
		return nil, err
	}
	if err := enc.SetMultiChannel(opt.MultiChannel); err != nil {
		return nil, err
	}
	if err := enc.Encode(); err != nil {
		return nil, err
	}
	out, err := enc.EncodedStream()
	if err != nil {
		return nil, err
	}
	return out, nil
}
