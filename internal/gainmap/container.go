package gainmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"regexp"
	"sort"
	"strconv"
)

// span is a half-open byte range of one JPEG inside a container.
type span struct {
	start, end int
}

// locateImages returns the byte ranges of the JPEG images in data, preferring
// the MPF index of the first image and falling back to a marker scan.
func locateImages(data []byte) ([]span, error) {
	if spans, ok := locateByMPF(data); ok {
		return spans, nil
	}
	var spans []span
	for i := 0; i+1 < len(data); {
		if data[i] != markerStart || data[i+1] != markerSOI {
			i++
			continue
		}
		end, err := imageEnd(data, i)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span{start: i, end: end})
		i = end
	}
	if len(spans) == 0 {
		return nil, errors.New("no JPEG images found")
	}
	return spans, nil
}

func locateByMPF(data []byte) ([]span, bool) {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return nil, false
	}
	var (
		info    mpfInfo
		tiffAbs int
		found   bool
	)
	_ = walkHeader(data, func(marker byte, start, end int) bool {
		if marker != markerAPP2 || !bytes.HasPrefix(data[start:end], mpfSig) {
			return true
		}
		parsed, err := parseMPF(data[start:end])
		if err != nil {
			return false
		}
		info, tiffAbs, found = parsed, start+len(mpfSig), true
		return false
	})
	if !found {
		return nil, false
	}
	primary := span{start: 0, end: info.primarySize}
	secondary := span{start: tiffAbs + info.secondaryOffset}
	secondary.end = secondary.start + info.secondarySize
	if info.primarySize <= 0 || info.secondarySize <= 0 || secondary.start < 0 {
		return nil, false
	}
	if primary.end > len(data) || secondary.end > len(data) {
		return nil, false
	}
	if secondary.start+1 >= len(data) || data[secondary.start] != markerStart || data[secondary.start+1] != markerSOI {
		return nil, false
	}
	return []span{primary, secondary}, true
}

// walkHeader calls fn with the marker and payload range of every segment of
// the JPEG starting at data[0], up to SOS or EOI. fn returns false to stop.
func walkHeader(data []byte, fn func(marker byte, start, end int) bool) error {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return errors.New("invalid JPEG")
	}
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			return nil
		}
		if marker == markerSOI || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			continue
		}
		if pos+1 >= len(data) {
			return errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return errors.New("invalid segment length")
		}
		if !fn(marker, pos+2, pos+segLen) {
			return nil
		}
		pos += segLen
	}
	return nil
}

// imageEnd returns the offset just past the EOI of the JPEG starting at start.
func imageEnd(data []byte, start int) (int, error) {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return 0, errors.New("not a JPEG SOI")
	}
	pos := start + 2
	inScan := false
	for pos+1 < len(data) {
		if !inScan {
			if data[pos] != markerStart {
				pos++
				continue
			}
			for pos < len(data) && data[pos] == markerStart {
				pos++
			}
			if pos >= len(data) {
				break
			}
			marker := data[pos]
			pos++
			switch {
			case marker == markerEOI:
				return pos, nil
			case marker == markerSOI, marker == 0x01, marker >= 0xD0 && marker <= 0xD7:
				continue
			}
			if pos+1 >= len(data) {
				return 0, errors.New("truncated marker segment")
			}
			segLen := int(binary.BigEndian.Uint16(data[pos:]))
			if segLen < 2 {
				return 0, errors.New("invalid marker length")
			}
			pos += segLen
			inScan = marker == markerSOS
			continue
		}

		if data[pos] != markerStart {
			pos++
			continue
		}
		next := data[pos+1]
		switch {
		case next == 0x00, next == markerStart, next >= 0xD0 && next <= 0xD7:
			pos += 2
			if next == markerStart {
				pos--
			}
		case next == markerEOI:
			return pos + 2, nil
		default:
			// A table or another scan between scans of a progressive image.
			inScan = false
		}
	}
	return 0, errors.New("no EOI found")
}

// appSegments returns the APP1 and APP2 payloads of a JPEG header.
// With stopAtMPF set, collection ends after the MPF segment.
func appSegments(data []byte, stopAtMPF bool) (app1, app2 [][]byte, err error) {
	err = walkHeader(data, func(marker byte, start, end int) bool {
		payload := append([]byte(nil), data[start:end]...)
		switch marker {
		case markerAPP1:
			app1 = append(app1, payload)
		case markerAPP2:
			app2 = append(app2, payload)
			if stopAtMPF && bytes.HasPrefix(payload, mpfSig) {
				return false
			}
		}
		return true
	})
	return app1, app2, err
}

func findPrefixed(segs [][]byte, prefix []byte) []byte {
	for _, seg := range segs {
		if bytes.HasPrefix(seg, prefix) {
			return seg
		}
	}
	return nil
}

// headerBlocks returns the EXIF APP1 payload and the ICC APP2 payloads in sequence order.
func headerBlocks(jpegData []byte) (exif []byte, icc [][]byte, err error) {
	app1, app2, err := appSegments(jpegData, false)
	if err != nil {
		return nil, nil, err
	}
	exif = findPrefixed(app1, exifSig)

	type chunk struct {
		seq  int
		data []byte
	}
	var chunks []chunk
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, iccSig) && len(seg) >= len(iccSig)+2 {
			chunks = append(chunks, chunk{seq: int(seg[len(iccSig)]), data: seg})
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	for _, c := range chunks {
		icc = append(icc, c.data)
	}
	return exif, icc, nil
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

func appSize(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	return 4 + len(payload)
}

// stripAppSegments removes APPn and COM segments from a JPEG.
func stripAppSegments(jpegData []byte) ([]byte, error) {
	if len(jpegData) < 4 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, errors.New("invalid JPEG")
	}
	var out bytes.Buffer
	out.Grow(len(jpegData))
	out.Write(jpegData[:2])
	pos := 2
	for pos+3 < len(jpegData) {
		if jpegData[pos] != markerStart {
			return nil, errors.New("marker expected")
		}
		marker := jpegData[pos+1]
		if marker == markerStart {
			pos++
			continue
		}
		if marker == markerSOS || marker == markerEOI {
			out.Write(jpegData[pos:])
			return out.Bytes(), nil
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos+2:]))
		if segLen < 2 || pos+2+segLen > len(jpegData) {
			return nil, errors.New("invalid segment length")
		}
		next := pos + 2 + segLen
		if marker != markerCOM && (marker < markerAPP0 || marker > markerAPP15) {
			out.Write(jpegData[pos:next])
		}
		pos = next
	}
	return nil, errors.New("no scan data")
}

// containerParts are the metadata blocks written around the two images.
type containerParts struct {
	Exif         []byte
	ICC          [][]byte
	PrimaryXMP   []byte
	SecondaryXMP []byte
	SecondaryISO []byte
}

// assemble writes a JPEG/R container: EXIF, primary XMP, ISO version, MPF and
// ICC ahead of the base image, then the gain map with its XMP and ISO blocks.
func assemble(primaryJPEG, gainmapJPEG []byte, parts containerParts) ([]byte, error) {
	primary, err := stripAppSegments(primaryJPEG)
	if err != nil {
		return nil, err
	}
	gainmap, err := stripAppSegments(gainmapJPEG)
	if err != nil {
		return nil, err
	}

	secondarySize := len(gainmap) + appSize(parts.SecondaryXMP) + appSize(parts.SecondaryISO)
	primaryXMP := parts.PrimaryXMP
	if len(primaryXMP) > 0 {
		primaryXMP = setItemLength(primaryXMP, secondarySize)
	}

	var out bytes.Buffer
	out.Grow(len(primary) + secondarySize + 4096)
	out.Write([]byte{markerStart, markerSOI})
	if len(parts.Exif) > 0 {
		writeAppSegment(&out, markerAPP1, parts.Exif)
	}
	if len(primaryXMP) > 0 {
		writeAppSegment(&out, markerAPP1, primaryXMP)
	}
	writeAppSegment(&out, markerAPP2, isoVersionPayload())

	mpfLen := 4 + mpfSize()
	primarySize := out.Len() + mpfLen + len(primary) - 2
	for _, seg := range parts.ICC {
		primarySize += appSize(seg)
	}
	secondaryOffset := primarySize - (out.Len() + 8)
	writeAppSegment(&out, markerAPP2, buildMPF(primarySize, secondarySize, secondaryOffset))
	for _, seg := range parts.ICC {
		writeAppSegment(&out, markerAPP2, seg)
	}
	out.Write(primary[2:])

	out.Write([]byte{markerStart, markerSOI})
	if len(parts.SecondaryXMP) > 0 {
		writeAppSegment(&out, markerAPP1, parts.SecondaryXMP)
	}
	if len(parts.SecondaryISO) > 0 {
		writeAppSegment(&out, markerAPP2, parts.SecondaryISO)
	}
	out.Write(gainmap[2:])

	final := out.Bytes()
	if err := verifyMPF(final); err != nil {
		return nil, err
	}
	return final, nil
}

// verifyMPF checks that the MPF index of a container points at both images.
func verifyMPF(data []byte) error {
	spans, ok := locateByMPF(data)
	if !ok || len(spans) != 2 {
		return errors.New("mpf index does not locate gain map")
	}
	if spans[1].end != len(data) {
		return errors.New("mpf secondary size mismatch")
	}
	return nil
}

var itemLengthRe = regexp.MustCompile(`Item:Length="\d+"`)

func setItemLength(payload []byte, n int) []byte {
	return itemLengthRe.ReplaceAll(payload, []byte(`Item:Length="`+strconv.Itoa(n)+`"`))
}
