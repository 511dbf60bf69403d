package gainmap

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
	markerAPP15 = 0xEF
	markerCOM   = 0xFE
)

const (
	xmpNamespace   = "http://ns.adobe.com/xap/1.0/"
	isoNamespace   = "urn:iso:std:iso:ts:21496:-1"
	hdrgmNamespace = "http://ns.adobe.com/hdr-gain-map/1.0/"
	jpegrVersion   = "1.0"
)

const (
	sdrWhiteNits = 203.0
	sdrOffset    = 1e-7
	hdrOffset    = 1e-7
)

// Defaults used by Encoder when not configured.
const (
	DefaultQuality      = 95
	DefaultGainMapScale = 4
	DefaultGainMapGamma = 1.0
)

var (
	xmpPrefix = append([]byte(xmpNamespace), 0)
	isoPrefix = append([]byte(isoNamespace), 0)
	exifSig   = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig    = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
)
