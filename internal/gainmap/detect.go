package gainmap

import (
	"bytes"
	"io"
)

var soi = []byte{markerStart, markerSOI}

// Detect reports whether data holds a JPEG followed by a second JPEG whose
// header carries gain map XMP or ISO metadata. Malformed input is reported
// as false. Pixel data is not decoded.
func Detect(data []byte) bool {
	first := bytes.Index(data, soi)
	if first < 0 {
		return false
	}
	end, err := imageEnd(data, first)
	if err != nil {
		return false
	}
	second := bytes.Index(data[end:], soi)
	if second < 0 {
		return false
	}
	return hasGainMapHeader(data[end+second:])
}

// IsUltraHDR is Detect over a stream.
func IsUltraHDR(r io.Reader) (bool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return false, err
	}
	return Detect(data), nil
}

// hasGainMapHeader scans the header of the JPEG at the start of data for an
// XMP APP1 or ISO 21496-1 APP2 segment.
func hasGainMapHeader(data []byte) bool {
	found := false
	_ = walkHeader(data, func(marker byte, start, end int) bool {
		switch marker {
		case markerAPP1:
			found = bytes.HasPrefix(data[start:end], xmpPrefix)
		case markerAPP2:
			found = bytes.HasPrefix(data[start:end], isoPrefix)
		}
		return !found
	})
	return found
}
