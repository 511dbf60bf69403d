// Package testimg builds JPEG and gain map fixtures for tests.
package testimg

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/garyhouston/jpegsegs"
	tiff "github.com/garyhouston/tiff66"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Exif lists the fields written into a fixture's EXIF block.
// Zero values are omitted.
type Exif struct {
	Make, Model, Lens string
	DateTimeOriginal  string
	ExposureTime      [2]uint32
	FNumber           [2]uint32
	FocalLength       [2]uint32
	ISO               uint16
}

// Nikon is a typical full set of fields.
var Nikon = Exif{
	Make:             "NIKON CORPORATION",
	Model:            "NIKON Z 6_2",
	Lens:             "NIKKOR Z 50mm f/1.8 S",
	DateTimeOriginal: "2024:05:01 10:20:30",
	ExposureTime:     [2]uint32{1, 250},
	FNumber:          [2]uint32{28, 10},
	FocalLength:      [2]uint32{50, 1},
	ISO:              100,
}

// Gradient returns a deterministic RGB test picture.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 96,
				A: 255,
			})
		}
	}
	return img
}

// JPEG encodes a gradient, with an EXIF block when ex is not nil.
func JPEG(t testing.TB, w, h int, ex *Exif) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}))
	if ex == nil {
		return buf.Bytes()
	}

	r := bytes.NewReader(buf.Bytes())
	scanner, err := jpegsegs.NewScanner(r)
	require.NoError(t, err)
	segs, err := jpegsegs.ReadSegments(scanner)
	require.NoError(t, err)
	segs = append([]jpegsegs.Segment{{Marker: jpegsegs.APP0 + 1, Data: ex.Payload()}}, segs...)

	var out bytes.Buffer
	dumper, err := jpegsegs.NewDumper(&out)
	require.NoError(t, err)
	require.NoError(t, jpegsegs.WriteSegments(dumper, segs))
	_, err = r.WriteTo(&out)
	require.NoError(t, err)
	return out.Bytes()
}

// UltraHDR encodes a gradient base and an HDR rendition that doubles the
// brightness of the right half.
func UltraHDR(t testing.TB, w, h int, ex *Exif) []byte {
	t.Helper()

	sdr := pixbuf.FromImage(Gradient(w, h))
	hdr := pixbuf.New[hwy.Float16](w, h, pixbuf.RGBA)
	for y := 0; y < h; y++ {
		src, dst := sdr.Row(y), hdr.Row(y)
		for x := 0; x < w*4; x++ {
			if x%4 == 3 {
				dst[x] = hwy.Float32ToFloat16(1)
				continue
			}
			v := pixbuf.GammaToLinear(src[x])
			if x/4 >= w/2 {
				v *= 2
			}
			dst[x] = hwy.Float32ToFloat16(v)
		}
	}

	enc := gainmap.NewEncoder()
	defer enc.Release()

	require.NoError(t, enc.SetRawImage(&gainmap.Image{
		Format: gainmap.FormatRGBA8888, Gamut: gainmap.GamutBT709,
		Transfer: gainmap.TransferSRGB, Range: gainmap.RangeFull, U8: sdr,
	}, gainmap.LabelSDR))
	require.NoError(t, enc.SetRawImage(&gainmap.Image{
		Format: gainmap.FormatRGBAHalfFloat, Gamut: gainmap.GamutBT709,
		Transfer: gainmap.TransferLinear, Range: gainmap.RangeFull, F16: hdr,
	}, gainmap.LabelHDR))
	if ex != nil {
		require.NoError(t, enc.SetExif(ex.Payload()))
	}
	require.NoError(t, enc.Encode())

	out, err := enc.EncodedStream()
	require.NoError(t, err)
	return append([]byte(nil), out...)
}

// CorruptGainMap damages the Huffman tables of the gain map stream of a
// container. The container still detects as UltraHDR and its base image
// still decodes.
func CorruptGainMap(t testing.TB, data []byte) []byte {
	t.Helper()

	res, err := gainmap.Split(data)
	require.NoError(t, err)

	out := append([]byte(nil), data...)
	breakHuffman(t, out, len(out)-len(res.GainMapJPEG))
	return out
}

// CorruptBase damages the Huffman tables of the first JPEG in data.
func CorruptBase(t testing.TB, data []byte) []byte {
	t.Helper()

	out := append([]byte(nil), data...)
	breakHuffman(t, out, 0)
	return out
}

// CorruptMetadata makes the ISO 21496-1 block of the gain map unparsable by
// declaring an unknown minimum version. The container still detects as
// UltraHDR, but cannot be split.
func CorruptMetadata(t testing.TB, data []byte) []byte {
	t.Helper()

	res, err := gainmap.Split(data)
	require.NoError(t, err)

	out := append([]byte(nil), data...)
	start := len(out) - len(res.GainMapJPEG)
	prefix := []byte("urn:iso:std:iso:ts:21496:-1\x00")
	i := bytes.Index(out[start:], prefix)
	require.GreaterOrEqual(t, i, 0, "gain map has no ISO block")
	out[start+i+len(prefix)] = 0xFF
	return out
}

// breakHuffman sets an invalid table class in the first DHT segment of the
// JPEG starting at data[start].
func breakHuffman(t testing.TB, data []byte, start int) {
	t.Helper()

	scanner, err := jpegsegs.NewScanner(bytes.NewReader(data[start:]))
	require.NoError(t, err)
	segs, err := jpegsegs.ReadSegments(scanner)
	require.NoError(t, err)

	pos := start + 2
	for _, s := range segs {
		if s.Marker == jpegsegs.DHT {
			data[pos+4] = 0xFF
			return
		}
		pos += 4 + len(s.Data)
	}
	require.Fail(t, "no DHT segment")
}

const exifIFDPointer tiff.Tag = 0x8769

var order = binary.BigEndian

func asciiField(tag tiff.Tag, v string) tiff.Field {
	data := append([]byte(v), 0)
	return tiff.Field{Tag: tag, Type: tiff.ASCII, Count: uint32(len(data)), Data: data}
}

func rationalField(tag tiff.Tag, v [2]uint32) tiff.Field {
	data := make([]byte, 8)
	order.PutUint32(data, v[0])
	order.PutUint32(data[4:], v[1])
	return tiff.Field{Tag: tag, Type: tiff.RATIONAL, Count: 1, Data: data}
}

// Tree returns IFD0 with an Exif sub-IFD holding the set fields.
func (e Exif) Tree() *tiff.IFDNode {
	sub := &tiff.IFDNode{Order: order, SpaceRec: tiff.NewSpaceRec(tiff.ExifSpace)}
	if e.ExposureTime[1] != 0 {
		sub.Fields = append(sub.Fields, rationalField(0x829A, e.ExposureTime))
	}
	if e.FNumber[1] != 0 {
		sub.Fields = append(sub.Fields, rationalField(0x829D, e.FNumber))
	}
	if e.ISO != 0 {
		data := make([]byte, 2)
		order.PutUint16(data, e.ISO)
		sub.Fields = append(sub.Fields, tiff.Field{Tag: 0x8827, Type: tiff.SHORT, Count: 1, Data: data})
	}
	if e.DateTimeOriginal != "" {
		sub.Fields = append(sub.Fields, asciiField(0x9003, e.DateTimeOriginal))
	}
	if e.FocalLength[1] != 0 {
		sub.Fields = append(sub.Fields, rationalField(0x920A, e.FocalLength))
	}
	if e.Lens != "" {
		sub.Fields = append(sub.Fields, asciiField(0xA434, e.Lens))
	}

	root := &tiff.IFDNode{Order: order, SpaceRec: tiff.NewSpaceRec(tiff.TIFFSpace)}
	if e.Make != "" {
		root.Fields = append(root.Fields, asciiField(0x010F, e.Make))
	}
	if e.Model != "" {
		root.Fields = append(root.Fields, asciiField(0x0110, e.Model))
	}
	// The offset is filled in by PutIFDTree.
	root.Fields = append(root.Fields, tiff.Field{Tag: exifIFDPointer, Type: tiff.LONG, Count: 1, Data: make([]byte, 4)})
	root.SubIFDs = []tiff.SubIFD{{Tag: exifIFDPointer, Node: sub}}
	return root
}

// TIFF returns a big-endian TIFF structure with IFD0 and an Exif sub-IFD.
func (e Exif) TIFF() []byte {
	root := e.Tree()
	buf := make([]byte, tiff.HeaderSize+root.TreeSize())
	tiff.PutHeader(buf, root.Order, tiff.HeaderSize)
	end, err := root.PutIFDTree(buf, tiff.HeaderSize)
	if err != nil {
		panic(err)
	}
	return buf[:end]
}

// Payload is the APP1 payload: "Exif\0\0" followed by TIFF.
func (e Exif) Payload() []byte {
	return append([]byte("Exif\x00\x00"), e.TIFF()...)
}

// Fonts writes Go Bold and Go Regular TrueType files to a temporary
// directory and returns their paths.
func Fonts(t testing.TB) (bold, regular string) {
	t.Helper()

	dir := t.TempDir()
	bold = filepath.Join(dir, "GoBold.ttf")
	regular = filepath.Join(dir, "GoRegular.ttf")
	require.NoError(t, os.WriteFile(bold, gobold.TTF, 0o600))
	require.NoError(t, os.WriteFile(regular, goregular.TTF, 0o600))
	return bold, regular
}

// Logo writes a size x size PNG of color c, with a transparent border, to
// dir/name.
func Logo(t testing.TB, dir, name string, size int, c color.NRGBA) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := size / 4; y < size-size/4; y++ {
		for x := size / 4; x < size-size/4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}
