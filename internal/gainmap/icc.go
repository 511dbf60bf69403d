package gainmap

import "bytes"

// profileFromICC joins ICC_PROFILE APP2 chunks, which headerBlocks returns in
// sequence order, into one profile.
func profileFromICC(chunks [][]byte) []byte {
	var out []byte
	for _, p := range chunks {
		if len(p) > len(iccSig)+2 && bytes.HasPrefix(p, iccSig) {
			out = append(out, p[len(iccSig)+2:]...)
		}
	}
	return out
}

// gamutFromICC guesses the primaries of an embedded profile from its description.
// Anything that does not name a P3 or BT.2020 profile is treated as sRGB.
func gamutFromICC(profile []byte) ColorGamut {
	if len(profile) == 0 {
		return GamutBT709
	}
	lower := bytes.ToLower(profile)
	switch {
	case bytes.Contains(lower, []byte("display p3")), bytes.Contains(lower, []byte("dci-p3")):
		return GamutDisplayP3
	case bytes.Contains(lower, []byte("bt.2020")), bytes.Contains(lower, []byte("bt2020")), bytes.Contains(lower, []byte("rec2020")):
		return GamutBT2100
	default:
		return GamutBT709
	}
}

// maxICCChunk is the largest profile slice that fits one APP2 segment
// after the signature and the sequence bytes.
const maxICCChunk = 0xFFFF - 2 - 14

// iccChunks splits a profile into numbered ICC_PROFILE APP2 payloads.
func iccChunks(profile []byte) ([][]byte, error) {
	n := (len(profile) + maxICCChunk - 1) / maxICCChunk
	if n > 255 {
		return nil, errorf(CodeInvalidParam, "ICC profile too large: %d bytes", len(profile))
	}
	chunks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		part := profile[i*maxICCChunk : min((i+1)*maxICCChunk, len(profile))]
		seg := make([]byte, 0, len(iccSig)+2+len(part))
		seg = append(seg, iccSig...)
		seg = append(seg, byte(i+1), byte(n))
		chunks = append(chunks, append(seg, part...))
	}
	return chunks, nil
}

// ICCProfile returns the ICC profile embedded in the header of the first
// JPEG in data, or nil when there is none.
func ICCProfile(data []byte) ([]byte, error) {
	_, icc, err := headerBlocks(data)
	if err != nil {
		return nil, wrap(CodeDecode, "jpeg header", err)
	}
	return profileFromICC(icc), nil
}
