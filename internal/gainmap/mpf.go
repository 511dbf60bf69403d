package gainmap

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	mpfNumPictures = 2
	mpfEndianSize  = 4
	mpfTagCount    = 3
	mpfTagSize     = 12

	mpfTypeLong      = 0x4
	mpfTypeUndefined = 0x7

	mpfVersionTag          = 0xB000
	mpfVersionCount        = 4
	mpfNumberOfImagesTag   = 0xB001
	mpfNumberOfImagesCount = 1
	mpfEntryTag            = 0xB002
	mpfEntrySize           = 16

	mpfAttrFormatJPEG  = 0x0000000
	mpfAttrTypePrimary = 0x030000
)

var (
	mpfSig       = []byte{'M', 'P', 'F', 0}
	mpfBigEndian = []byte{0x4D, 0x4D, 0x00, 0x2A}
	mpfVersion   = []byte{'0', '1', '0', '0'}
)

// mpfSize is the payload size of a two-image MPF segment.
func mpfSize() int {
	return len(mpfSig) + mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4 + mpfNumPictures*mpfEntrySize
}

// buildMPF returns an APP2 MPF payload. The secondary offset is relative to
// the TIFF header that follows the MPF signature.
func buildMPF(primarySize, secondarySize, secondaryOffset int) []byte {
	buf := make([]byte, 0, mpfSize())
	u16 := func(v uint16) { buf = binary.BigEndian.AppendUint16(buf, v) }
	u32 := func(v uint32) { buf = binary.BigEndian.AppendUint32(buf, v) }

	buf = append(buf, mpfSig...)
	buf = append(buf, mpfBigEndian...)
	u32(uint32(mpfEndianSize + 4)) // first IFD follows the TIFF header

	u16(mpfTagCount)

	u16(mpfVersionTag)
	u16(mpfTypeUndefined)
	u32(mpfVersionCount)
	buf = append(buf, mpfVersion...)

	u16(mpfNumberOfImagesTag)
	u16(mpfTypeLong)
	u32(mpfNumberOfImagesCount)
	u32(mpfNumPictures)

	u16(mpfEntryTag)
	u16(mpfTypeUndefined)
	u32(mpfEntrySize * mpfNumPictures)
	u32(uint32(8 + 2 + mpfTagCount*mpfTagSize + 4))

	// Next IFD offset.
	u32(0)

	u32(mpfAttrFormatJPEG | mpfAttrTypePrimary)
	u32(uint32(primarySize))
	u32(0)
	u16(0)
	u16(0)

	u32(mpfAttrFormatJPEG)
	u32(uint32(secondarySize))
	u32(uint32(secondaryOffset))
	u16(0)
	u16(0)

	return buf
}

type mpfInfo struct {
	primarySize     int
	secondarySize   int
	secondaryOffset int
}

func parseMPF(payload []byte) (mpfInfo, error) {
	if len(payload) < len(mpfSig)+8 || !bytes.HasPrefix(payload, mpfSig) {
		return mpfInfo{}, errors.New("mpf signature missing")
	}
	tiff := payload[len(mpfSig):]
	var order binary.ByteOrder
	switch {
	case tiff[0] == 0x4D && tiff[1] == 0x4D:
		order = binary.BigEndian
	case tiff[0] == 0x49 && tiff[1] == 0x49:
		order = binary.LittleEndian
	default:
		return mpfInfo{}, errors.New("mpf endian invalid")
	}
	if order.Uint16(tiff[2:4]) != 0x002A {
		return mpfInfo{}, errors.New("mpf tiff magic invalid")
	}
	pos := int(order.Uint32(tiff[4:8]))
	if pos < 0 || pos+2 > len(tiff) {
		return mpfInfo{}, errors.New("mpf ifd offset invalid")
	}
	tagCount := int(order.Uint16(tiff[pos:]))
	pos += 2
	entryOffset := -1
	for i := 0; i < tagCount; i++ {
		if pos+12 > len(tiff) {
			return mpfInfo{}, errors.New("mpf ifd truncated")
		}
		tag := order.Uint16(tiff[pos:])
		typ := order.Uint16(tiff[pos+2:])
		count := order.Uint32(tiff[pos+4:])
		if tag == mpfEntryTag && typ == mpfTypeUndefined && count >= mpfEntrySize {
			entryOffset = int(order.Uint32(tiff[pos+8:]))
			break
		}
		pos += 12
	}
	if entryOffset < 0 || entryOffset+mpfEntrySize*mpfNumPictures > len(tiff) {
		return mpfInfo{}, errors.New("mpf entry offset invalid")
	}
	var info mpfInfo
	for i := 0; i < mpfNumPictures; i++ {
		entry := tiff[entryOffset+i*mpfEntrySize:]
		attr := order.Uint32(entry)
		size := int(order.Uint32(entry[4:]))
		offset := int(order.Uint32(entry[8:]))
		if attr&mpfAttrTypePrimary != 0 {
			info.primarySize = size
		} else {
			info.secondarySize = size
			info.secondaryOffset = offset
		}
	}
	if info.primarySize == 0 || info.secondarySize == 0 {
		return mpfInfo{}, errors.New("mpf sizes missing")
	}
	return info, nil
}
