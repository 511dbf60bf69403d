package exifmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/garyhouston/jpegsegs"
)

var exifHeader = []byte("Exif\x00\x00")

// ErrNoExif is returned by RawExif when the stream has no EXIF block.
var ErrNoExif = errors.New("no EXIF block")

// RawExif returns the APP1 EXIF payload of a JPEG, including the
// "Exif\0\0" signature.
func RawExif(jpegData []byte) ([]byte, error) {
	scanner, err := jpegsegs.NewScanner(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	segs, err := jpegsegs.ReadSegments(scanner)
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	for _, s := range segs {
		if s.Marker == jpegsegs.APP0+1 && bytes.HasPrefix(s.Data, exifHeader) {
			return s.Data, nil
		}
	}
	return nil, ErrNoExif
}

// InsertExif returns jpegData with its EXIF block replaced by exifPayload.
// The block goes right after a JFIF APP0 segment if there is one, otherwise
// first. A payload without the "Exif\0\0" signature gets one.
func InsertExif(jpegData, exifPayload []byte) ([]byte, error) {
	if len(exifPayload) == 0 {
		return nil, errors.New("empty EXIF payload")
	}
	if !bytes.HasPrefix(exifPayload, exifHeader) {
		exifPayload = append(append([]byte(nil), exifHeader...), exifPayload...)
	}

	r := bytes.NewReader(jpegData)
	scanner, err := jpegsegs.NewScanner(r)
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	segs, err := jpegsegs.ReadSegments(scanner)
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}

	out := make([]jpegsegs.Segment, 0, len(segs)+1)
	pos := 0
	for _, s := range segs {
		if s.Marker == jpegsegs.APP0+1 && bytes.HasPrefix(s.Data, exifHeader) {
			continue
		}
		out = append(out, s)
	}
	if len(out) > 0 && out[0].Marker == jpegsegs.APP0 {
		pos = 1
	}
	out = append(out[:pos], append([]jpegsegs.Segment{{Marker: jpegsegs.APP0 + 1, Data: exifPayload}}, out[pos:]...)...)

	var buf bytes.Buffer
	buf.Grow(len(jpegData) + len(exifPayload) + 4)
	dumper, err := jpegsegs.NewDumper(&buf)
	if err != nil {
		return nil, fmt.Errorf("write segments: %w", err)
	}
	if err := jpegsegs.WriteSegments(dumper, out); err != nil {
		return nil, fmt.Errorf("write segments: %w", err)
	}
	// The reader now sits at the start of the entropy-coded data.
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
