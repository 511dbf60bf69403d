package dual

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder.
	_ "image/png"  // Register PNG decoder.

	"github.com/sirupsen/logrus"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	_ "golang.org/x/image/tiff" // Register TIFF decoder.
)

// DecodeOptions controls how a gain map container is rendered.
type DecodeOptions struct {
	// DisplayBoost limits the HDR rendition to this headroom over SDR
	// white, the full capacity of the container when zero.
	DisplayBoost float32
}

// Decode reads a plain image or a gain map container with default options.
func Decode(data []byte, log logrus.FieldLogger) (*Image, error) {
	return DecodeWithOptions(data, DecodeOptions{}, log)
}

// DecodeWithOptions reads a plain image or a gain map container.
//
// Containers are decoded twice with separate handles, once to the SDR base
// and once to linear HDR. A failed HDR pass leaves an SDR-only result. A
// failed SDR pass falls back to plain decoding. ErrDecode is returned only
// when no SDR rendition can be produced.
func DecodeWithOptions(data []byte, opt DecodeOptions, log logrus.FieldLogger) (*Image, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if !gainmap.Detect(data) {
		sdr, err := decodePlain(data)
		if err != nil {
			return nil, err
		}
		return &Image{SDR: sdr}, nil
	}

	im := &Image{}

	sdr, err := decodeSDR(data)
	if err != nil {
		logCodecError(log, "decode_sdr", err).Warn("gain map base decode failed, using plain decoder")
		if im.SDR, err = decodePlain(data); err != nil {
			return nil, err
		}
	} else {
		im.SDR = sdr
	}

	hdr, err := decodeHDR(data, opt.DisplayBoost)
	if err != nil {
		logCodecError(log, "decode_hdr", err).Warn("HDR rendition unavailable, continuing with SDR only")
		return im, nil
	}
	if !pixbuf.SameSize(im.SDR, hdr) {
		log.WithFields(logrus.Fields{
			"stage": "decode_hdr",
			"sdr":   fmt.Sprintf("%dx%d", im.SDR.Width, im.SDR.Height),
			"hdr":   fmt.Sprintf("%dx%d", hdr.Width, hdr.Height),
		}).Warn("HDR rendition size differs from SDR, dropping HDR")
		return im, nil
	}
	im.HDR = hdr
	return im, nil
}

func decodePlain(data []byte) (*pixbuf.Buffer[uint8], error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return pixbuf.FromImageRGB(img), nil
}

func decodeSDR(data []byte) (*pixbuf.Buffer[uint8], error) {
	img, err := decodeAs(data, gainmap.FormatRGBA8888, gainmap.TransferSRGB, 0)
	if err != nil {
		return nil, err
	}
	return pixbuf.ToRGB(img.U8), nil
}

func decodeHDR(data []byte, boost float32) (*pixbuf.Buffer[float32], error) {
	img, err := decodeAs(data, gainmap.FormatRGBAHalfFloat, gainmap.TransferLinear, boost)
	if err != nil {
		return nil, err
	}
	return pixbuf.ToRGB(pixbuf.HalfToFloat(img.F16)), nil
}

func decodeAs(data []byte, format gainmap.PixelFormat, transfer gainmap.ColorTransfer, boost float32) (*gainmap.Image, error) {
	dec := gainmap.NewDecoder()
	defer dec.Release()

	if err := dec.SetImage(data); err != nil {
		return nil, err
	}
	if err := dec.SetOutFormat(format); err != nil {
		return nil, err
	}
	if err := dec.SetOutTransfer(transfer); err != nil {
		return nil, err
	}
	if err := dec.SetDisplayBoost(boost); err != nil {
		return nil, err
	}
	if err := dec.Decode(); err != nil {
		return nil, err
	}
	img, err := dec.DecodedImage()
	if err != nil {
		return nil, err
	}
	return img, nil
}

// logCodecError attaches the stage and the codec error code and detail.
func logCodecError(log logrus.FieldLogger, stage string, err error) logrus.FieldLogger {
	fields := logrus.Fields{"stage": stage, "code": gainmap.ErrorCode(err).String()}
	var ce *gainmap.Error
	if errors.As(err, &ce) {
		fields["detail"] = ce.Detail
	}
	return log.WithError(err).WithFields(fields)
}
