package gainmap

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"testing/iotest"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

func renditions(t *testing.T, w, h int, sdrCode uint8, ratio float32) (*Image, *Image) {
	t.Helper()

	sdr := pixbuf.New[uint8](w, h, pixbuf.RGBA)
	sdr.Fill(sdrCode, sdrCode, sdrCode, 0xFF)

	lin := srgbLUT[sdrCode] * ratio
	hdr := pixbuf.New[hwy.Float16](w, h, pixbuf.RGBA)
	hdr.Fill(hwy.Float32ToFloat16(lin), hwy.Float32ToFloat16(lin), hwy.Float32ToFloat16(lin), hwy.Float32ToFloat16(1))

	return &Image{Format: FormatRGBA8888, Gamut: GamutBT709, Transfer: TransferSRGB, Range: RangeFull, U8: sdr},
		&Image{Format: FormatRGBAHalfFloat, Gamut: GamutBT709, Transfer: TransferLinear, Range: RangeFull, F16: hdr}
}

func encodeContainer(t *testing.T, w, h int, exif []byte) []byte {
	t.Helper()

	sdr, hdr := renditions(t, w, h, 128, 2)
	enc := NewEncoder()
	defer enc.Release()

	require.NoError(t, enc.SetRawImage(sdr, LabelSDR))
	require.NoError(t, enc.SetRawImage(hdr, LabelHDR))
	require.NoError(t, enc.SetQuality(95, LabelBase))
	require.NoError(t, enc.SetQuality(95, LabelGainMap))
	require.NoError(t, enc.SetExif(exif))
	require.NoError(t, enc.Encode())

	out, err := enc.EncodedStream()
	require.NoError(t, err)
	return out
}

func plainJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	assert.True(t, Detect(encodeContainer(t, 64, 48, nil)))
	assert.False(t, Detect(plainJPEG(t, 64, 48)))
	assert.False(t, Detect(nil))
	assert.False(t, Detect([]byte("not a jpeg")))

	// Two concatenated plain JPEGs have no gain map metadata.
	p := plainJPEG(t, 16, 16)
	assert.False(t, Detect(append(append([]byte(nil), p...), p...)))
}

func TestIsUltraHDR(t *testing.T) {
	data := encodeContainer(t, 32, 32, nil)

	ok, err := IsUltraHDR(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, ok)

	// Leading junk before the first image is skipped.
	ok, err = IsUltraHDR(bytes.NewReader(append([]byte("junk"), data...)))
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := Split(data)
	require.NoError(t, err)
	secondary := len(data) - len(res.GainMapJPEG)
	ok, err = IsUltraHDR(bytes.NewReader(data[:secondary+6]))
	require.NoError(t, err)
	assert.False(t, ok, "gain map header cut off")

	_, err = IsUltraHDR(iotest.ErrReader(errors.New("read failed")))
	assert.Error(t, err)
}

func TestEncoder_roundTrip(t *testing.T) {
	data := encodeContainer(t, 64, 48, []byte("Exif\x00\x00MM\x00\x2a\x00\x00\x00\x08\x00\x00"))

	res, err := Split(data)
	require.NoError(t, err)
	assert.NotNil(t, res.Segments.PrimaryXMP)
	assert.NotNil(t, res.Segments.PrimaryISO)
	assert.NotNil(t, res.Segments.SecondaryXMP)
	assert.NotNil(t, res.Segments.SecondaryISO)
	assert.InDelta(t, 2, res.Meta.MinContentBoost[0], 0.05)

	exif, _, err := headerBlocks(res.PrimaryJPEG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(exif, exifSig))

	gm, err := jpeg.DecodeConfig(bytes.NewReader(res.GainMapJPEG))
	require.NoError(t, err)
	assert.Equal(t, 16, gm.Width)
	assert.Equal(t, 12, gm.Height)

	sdrDec := NewDecoder()
	defer sdrDec.Release()
	require.NoError(t, sdrDec.SetImage(data))
	require.NoError(t, sdrDec.SetOutFormat(FormatRGBA8888))
	require.NoError(t, sdrDec.SetOutTransfer(TransferSRGB))
	require.NoError(t, sdrDec.Decode())
	sdr, err := sdrDec.DecodedImage()
	require.NoError(t, err)
	require.NotNil(t, sdr.U8)
	assert.Equal(t, 64, sdr.U8.Width)
	assert.Equal(t, 48, sdr.U8.Height)
	p, _ := sdr.U8.Pixel(10, 10)
	assert.InDelta(t, 128, int(p[0]), 2)
	assert.Equal(t, uint8(0xFF), p[3])

	hdrDec := NewDecoder()
	defer hdrDec.Release()
	require.NoError(t, hdrDec.SetImage(data))
	require.NoError(t, hdrDec.SetOutFormat(FormatRGBAHalfFloat))
	require.NoError(t, hdrDec.SetOutTransfer(TransferLinear))
	require.NoError(t, hdrDec.Decode())
	hdr, err := hdrDec.DecodedImage()
	require.NoError(t, err)
	require.NotNil(t, hdr.F16)
	assert.True(t, pixbuf.SameSize(sdr.U8, hdr.F16))

	hp, _ := hdr.F16.Pixel(10, 10)
	want := srgbLUT[128] * 2
	assert.InDelta(t, want, hwy.Float16ToFloat32(hp[1]), float64(want)*0.05)
	assert.InDelta(t, 1, hwy.Float16ToFloat32(hp[3]), 1e-3)
}

func TestDecoder_Probe(t *testing.T) {
	data := encodeContainer(t, 40, 40, nil)

	d := NewDecoder()
	defer d.Release()
	require.NoError(t, d.SetImage(data))

	info, err := d.Probe()
	require.NoError(t, err)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 10, info.GainMapWidth)
	assert.Equal(t, GamutBT709, info.Gamut)
	assert.True(t, info.HasISOMetadata)
	assert.True(t, info.HasPrimaryXMPMetadata)
	assert.True(t, info.HasPrimaryISOVersion)
	assert.False(t, info.MultiChannelGainMap)
}

func TestEncoder_multiChannel(t *testing.T) {
	const w, h = 32, 32

	sdr, _ := renditions(t, w, h, 128, 1)
	lin := srgbLUT[128]
	hdr := pixbuf.New[hwy.Float16](w, h, pixbuf.RGBA)
	hdr.Fill(hwy.Float32ToFloat16(lin*2), hwy.Float32ToFloat16(lin), hwy.Float32ToFloat16(lin*3), hwy.Float32ToFloat16(1))

	enc := NewEncoder()
	defer enc.Release()
	require.NoError(t, enc.SetRawImage(sdr, LabelSDR))
	require.NoError(t, enc.SetRawImage(&Image{
		Format: FormatRGBAHalfFloat, Gamut: GamutBT709, Transfer: TransferLinear, Range: RangeFull, F16: hdr,
	}, LabelHDR))
	require.NoError(t, enc.SetMultiChannel(true))
	require.NoError(t, enc.SetGainMapScale(2))
	require.NoError(t, enc.SetGainMapGamma(2))
	require.NoError(t, enc.Encode())
	data, err := enc.EncodedStream()
	require.NoError(t, err)

	d := NewDecoder()
	defer d.Release()
	require.NoError(t, d.SetImage(data))
	info, err := d.Probe()
	require.NoError(t, err)
	assert.True(t, info.MultiChannelGainMap)
	assert.Equal(t, 16, info.GainMapWidth)
	assert.Equal(t, 16, info.GainMapHeight)
	assert.InDelta(t, 2, info.Meta.Gamma[1], 1e-3)

	require.NoError(t, d.SetOutFormat(FormatRGBAHalfFloat))
	require.NoError(t, d.SetOutTransfer(TransferLinear))
	require.NoError(t, d.Decode())
	out, err := d.DecodedImage()
	require.NoError(t, err)

	p, _ := out.F16.Pixel(9, 9)
	assert.InDelta(t, lin*2, hwy.Float16ToFloat32(p[0]), float64(lin)*0.15)
	assert.InDelta(t, lin, hwy.Float16ToFloat32(p[1]), float64(lin)*0.1)
	assert.InDelta(t, lin*3, hwy.Float16ToFloat32(p[2]), float64(lin)*0.2)
}

func TestEncoder_gainMapOptions(t *testing.T) {
	enc := NewEncoder()
	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.SetGainMapScale(0)))
	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.SetGainMapScale(129)))
	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.SetGainMapGamma(0)))
	assert.NoError(t, enc.SetGainMapScale(1))

	enc.Release()
	assert.ErrorIs(t, enc.SetMultiChannel(true), errReleased)
	assert.ErrorIs(t, enc.SetICC([]byte("x")), errReleased)
}

func TestDecoder_SetDisplayBoost(t *testing.T) {
	data := encodeContainer(t, 32, 32, nil)

	decode := func(boost float32) float32 {
		d := NewDecoder()
		defer d.Release()
		require.NoError(t, d.SetImage(data))
		require.NoError(t, d.SetOutFormat(FormatRGBAHalfFloat))
		require.NoError(t, d.SetOutTransfer(TransferLinear))
		require.NoError(t, d.SetDisplayBoost(boost))
		require.NoError(t, d.Decode())
		out, err := d.DecodedImage()
		require.NoError(t, err)
		p, _ := out.F16.Pixel(5, 5)
		return hwy.Float16ToFloat32(p[0])
	}

	lin := srgbLUT[128]
	assert.InDelta(t, lin, decode(1), float64(lin)*0.05, "no headroom renders the base image")
	assert.InDelta(t, lin*2, decode(0), float64(lin)*0.1)
	assert.InDelta(t, lin*2, decode(8), float64(lin)*0.1, "boost above capacity is capped")

	d := NewDecoder()
	assert.Equal(t, CodeInvalidParam, ErrorCode(d.SetDisplayBoost(0.5)))
}

func TestEncoder_SetICC(t *testing.T) {
	profile := bytes.Repeat([]byte("Display P3 profile "), 4000)
	require.Greater(t, len(profile), maxICCChunk)

	sdr, hdr := renditions(t, 24, 24, 90, 2)
	enc := NewEncoder()
	defer enc.Release()
	require.NoError(t, enc.SetRawImage(sdr, LabelSDR))
	require.NoError(t, enc.SetRawImage(hdr, LabelHDR))
	require.NoError(t, enc.SetICC(profile))
	require.NoError(t, enc.Encode())
	data, err := enc.EncodedStream()
	require.NoError(t, err)

	got, err := ICCProfile(data)
	require.NoError(t, err)
	assert.Equal(t, profile, got)

	res, err := Split(data)
	require.NoError(t, err)
	_, chunks, err := headerBlocks(res.PrimaryJPEG)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	d := NewDecoder()
	defer d.Release()
	require.NoError(t, d.SetImage(data))
	info, err := d.Probe()
	require.NoError(t, err)
	assert.Equal(t, GamutDisplayP3, info.Gamut)

	none, err := ICCProfile(plainJPEG(t, 8, 8))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDecoder_errors(t *testing.T) {
	d := NewDecoder()
	assert.Equal(t, CodeInvalidParam, ErrorCode(d.SetImage(nil)))
	assert.Equal(t, CodeInvalidOperation, ErrorCode(d.Decode()))

	require.NoError(t, d.SetImage(plainJPEG(t, 8, 8)))
	assert.Equal(t, CodeDecode, ErrorCode(d.Decode()))

	require.NoError(t, d.SetOutFormat(FormatRGBAHalfFloat))
	assert.Equal(t, CodeInvalidParam, ErrorCode(d.Decode()), "half float needs linear transfer")
	assert.Equal(t, CodeUnsupportedFeature, ErrorCode(d.SetOutTransfer(TransferPQ)))

	d.Release()
	d.Release()
	assert.Equal(t, CodeInvalidOperation, ErrorCode(d.SetImage([]byte{1})))
	_, err := d.DecodedImage()
	assert.ErrorIs(t, err, errReleased)
}

// corruptGainMap breaks the Huffman tables of the gain map stream while
// leaving the container structure and metadata intact.
func corruptGainMap(t *testing.T, data []byte) []byte {
	t.Helper()

	res, err := Split(data)
	require.NoError(t, err)

	out := append([]byte(nil), data...)
	start := len(out) - len(res.GainMapJPEG)
	dht := -1
	require.NoError(t, walkHeader(out[start:], func(marker byte, s, _ int) bool {
		if marker == 0xC4 {
			dht = s
			return false
		}
		return true
	}))
	require.Positive(t, dht)
	out[start+dht] = 0xFF
	return out
}

func TestDecoder_corruptGainMap(t *testing.T) {
	data := corruptGainMap(t, encodeContainer(t, 32, 32, nil))
	assert.True(t, Detect(data))

	sdr := NewDecoder()
	defer sdr.Release()
	require.NoError(t, sdr.SetImage(data))
	assert.NoError(t, sdr.Decode())

	hdr := NewDecoder()
	defer hdr.Release()
	require.NoError(t, hdr.SetImage(data))
	require.NoError(t, hdr.SetOutFormat(FormatRGBAHalfFloat))
	require.NoError(t, hdr.SetOutTransfer(TransferLinear))
	assert.Equal(t, CodeDecode, ErrorCode(hdr.Decode()))
}

func TestEncoder_validation(t *testing.T) {
	sdr, hdr := renditions(t, 16, 16, 100, 3)
	enc := NewEncoder()
	defer enc.Release()

	bad := *sdr
	bad.Transfer = TransferLinear
	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.SetRawImage(&bad, LabelSDR)))

	bad = *hdr
	bad.Gamut = GamutDisplayP3
	assert.Equal(t, CodeUnsupportedFeature, ErrorCode(enc.SetRawImage(&bad, LabelHDR)))

	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.SetRawImage(hdr, LabelSDR)))
	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.SetQuality(0, LabelBase)))
	assert.Equal(t, CodeInvalidOperation, ErrorCode(enc.Encode()))

	small, _ := renditions(t, 8, 8, 100, 3)
	require.NoError(t, enc.SetRawImage(small, LabelSDR))
	require.NoError(t, enc.SetRawImage(hdr, LabelHDR))
	assert.Equal(t, CodeInvalidParam, ErrorCode(enc.Encode()))

	_, err := enc.EncodedStream()
	assert.Equal(t, CodeInvalidOperation, ErrorCode(err))
}

func TestMPF(t *testing.T) {
	info, err := parseMPF(buildMPF(1000, 200, 960))
	require.NoError(t, err)
	assert.Equal(t, mpfInfo{primarySize: 1000, secondarySize: 200, secondaryOffset: 960}, info)
	assert.Len(t, buildMPF(1, 1, 1), mpfSize())

	_, err = parseMPF([]byte("MPF\x00II"))
	assert.Error(t, err)
}

func TestParseISO_singleChannel(t *testing.T) {
	meta := &Metadata{Version: jpegrVersion, HDRCapacityMin: 1, HDRCapacityMax: 4, UseBaseCG: true}
	for i := 0; i < 3; i++ {
		meta.MinContentBoost[i] = 1
		meta.MaxContentBoost[i] = 4
		meta.Gamma[i] = 1
		meta.OffsetSDR[i] = 1.0 / 64
		meta.OffsetHDR[i] = 1.0 / 64
	}
	payload, err := buildISOPayload(meta)
	require.NoError(t, err)
	assert.Zero(t, payload[len(isoPrefix)+4]&isoFlagMultiChannel)

	got, err := parseISO(payload)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 4, got.MaxContentBoost[i], 1e-4)
		assert.InDelta(t, 1.0/64, got.OffsetHDR[i], 1e-6)
	}
	assert.InDelta(t, 4, got.HDRCapacityMax, 1e-4)

	_, err = parseISO(payload[:len(isoPrefix)+6])
	assert.Error(t, err)
}

func TestParseXMP(t *testing.T) {
	meta := &Metadata{Version: jpegrVersion, HDRCapacityMin: 1, HDRCapacityMax: 8}
	for i := 0; i < 3; i++ {
		meta.MinContentBoost[i] = 0.5
		meta.MaxContentBoost[i] = 8
		meta.Gamma[i] = 1
	}
	got, err := parseXMP(secondaryXMP(meta))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.MinContentBoost[2], 1e-5)
	assert.InDelta(t, 8, got.MaxContentBoost[1], 1e-4)
	assert.InDelta(t, 8, got.HDRCapacityMax, 1e-4)

	_, err = parseXMP(append(append([]byte(nil), xmpPrefix...), `<x hdrgm:Version="1.0"/>`...))
	assert.Error(t, err)
}

func TestAffineMapGain(t *testing.T) {
	assert.Equal(t, uint8(0), affineMapGain(-1, 0, 1, 1))
	assert.Equal(t, uint8(255), affineMapGain(2, 0, 1, 1))
	assert.Equal(t, uint8(128), affineMapGain(0.5, 0, 1, 1))
}

func TestDisplayWeight(t *testing.T) {
	meta := &Metadata{HDRCapacityMin: 1, HDRCapacityMax: 4}
	assert.Equal(t, float32(1), displayWeight(meta, 0))
	assert.InDelta(t, 0.5, displayWeight(meta, 2), 1e-6)
	assert.Equal(t, float32(0), displayWeight(meta, 1))
}

func TestGainMapBuffer_gray(t *testing.T) {
	g := image.NewGray(image.Rect(2, 2, 6, 5))
	g.SetGray(2, 2, color.Gray{Y: 7})
	b := gainMapBuffer(g)
	assert.Equal(t, pixbuf.Gray, b.Order)
	assert.Equal(t, 4, b.Width)
	assert.Equal(t, uint8(7), b.Pix[0])
}
