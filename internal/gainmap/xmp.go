package gainmap

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reVersion    = regexp.MustCompile(`hdrgm:Version="([^"]+)"`)
	reGainMapMin = regexp.MustCompile(`hdrgm:GainMapMin="([^"]+)"`)
	reGainMapMax = regexp.MustCompile(`hdrgm:GainMapMax="([^"]+)"`)
	reGamma      = regexp.MustCompile(`hdrgm:Gamma="([^"]+)"`)
	reOffsetSDR  = regexp.MustCompile(`hdrgm:OffsetSDR="([^"]+)"`)
	reOffsetHDR  = regexp.MustCompile(`hdrgm:OffsetHDR="([^"]+)"`)
	reHDRCapMin  = regexp.MustCompile(`hdrgm:HDRCapacityMin="([^"]+)"`)
	reHDRCapMax  = regexp.MustCompile(`hdrgm:HDRCapacityMax="([^"]+)"`)
	reBaseIsHDR  = regexp.MustCompile(`hdrgm:BaseRenditionIsHDR="([^"]+)"`)
)

// parseXMP reads single-channel hdrgm attributes from a gain map XMP payload.
func parseXMP(app1 []byte) (*Metadata, error) {
	if len(app1) < len(xmpPrefix)+1 || !strings.HasPrefix(string(app1), string(xmpPrefix)) {
		return nil, errors.New("xmp namespace mismatch")
	}
	xml := string(app1[len(xmpPrefix):])

	meta := &Metadata{Version: jpegrVersion, UseBaseCG: true, HDRCapacityMin: 1, HDRCapacityMax: 1}
	meta.MinContentBoost[0] = 1
	meta.MaxContentBoost[0] = 1
	meta.Gamma[0] = 1
	meta.OffsetSDR[0] = 1.0 / 64
	meta.OffsetHDR[0] = 1.0 / 64

	str := func(re *regexp.Regexp) (string, bool) {
		m := re.FindStringSubmatch(xml)
		if len(m) != 2 {
			return "", false
		}
		return m[1], true
	}
	num := func(re *regexp.Regexp, required bool, dst *float32, log2 bool) error {
		s, ok := str(re)
		if !ok {
			if required {
				return fmt.Errorf("xmp missing %s", strings.TrimSuffix(strings.TrimPrefix(re.String(), "hdrgm:"), `="([^"]+)"`))
			}
			return nil
		}
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fmt.Errorf("xmp %q: %w", s, err)
		}
		*dst = float32(v)
		if log2 {
			*dst = exp2f(float32(v))
		}
		return nil
	}

	v, ok := str(reVersion)
	if !ok {
		return nil, errors.New("xmp missing Version")
	}
	meta.Version = v

	for _, f := range []struct {
		re       *regexp.Regexp
		required bool
		dst      *float32
		log2     bool
	}{
		{reGainMapMax, true, &meta.MaxContentBoost[0], true},
		{reHDRCapMax, true, &meta.HDRCapacityMax, true},
		{reGainMapMin, false, &meta.MinContentBoost[0], true},
		{reGamma, false, &meta.Gamma[0], false},
		{reOffsetSDR, false, &meta.OffsetSDR[0], false},
		{reOffsetHDR, false, &meta.OffsetHDR[0], false},
		{reHDRCapMin, false, &meta.HDRCapacityMin, true},
	} {
		if err := num(f.re, f.required, f.dst, f.log2); err != nil {
			return nil, err
		}
	}
	if s, ok := str(reBaseIsHDR); ok && s == "True" {
		return nil, errors.New("base rendition HDR not supported")
	}

	for i := 1; i < 3; i++ {
		meta.MinContentBoost[i] = meta.MinContentBoost[0]
		meta.MaxContentBoost[i] = meta.MaxContentBoost[0]
		meta.Gamma[i] = meta.Gamma[0]
		meta.OffsetSDR[i] = meta.OffsetSDR[0]
		meta.OffsetHDR[i] = meta.OffsetHDR[0]
	}
	return meta, nil
}

const (
	xmpHeader = `<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
`
	xmpFooter = `  </rdf:RDF>
</x:xmpmeta>`
)

// primaryXMP describes the container directory. Item:Length is patched during assembly.
func primaryXMP() []byte {
	var sb strings.Builder
	sb.Write(xmpPrefix)
	sb.WriteString(xmpHeader)
	fmt.Fprintf(&sb, `    <rdf:Description rdf:about=""
        xmlns:Container="http://ns.google.com/photos/1.0/container/"
        xmlns:Item="http://ns.google.com/photos/1.0/container/item/"
        xmlns:hdrgm="%s"
        hdrgm:Version="%s">
      <Container:Directory>
        <rdf:Seq>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/>
          </rdf:li>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="0"/>
          </rdf:li>
        </rdf:Seq>
      </Container:Directory>
    </rdf:Description>
`, hdrgmNamespace, jpegrVersion)
	sb.WriteString(xmpFooter)
	return []byte(sb.String())
}

// secondaryXMP writes single-channel hdrgm attributes, channel 0 of meta.
func secondaryXMP(meta *Metadata) []byte {
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'f', -1, 32) }
	var sb strings.Builder
	sb.Write(xmpPrefix)
	sb.WriteString(xmpHeader)
	fmt.Fprintf(&sb, `    <rdf:Description rdf:about=""
        xmlns:hdrgm="%s"
        hdrgm:Version="%s"
        hdrgm:GainMapMin="%s"
        hdrgm:GainMapMax="%s"
        hdrgm:Gamma="%s"
        hdrgm:OffsetSDR="%s"
        hdrgm:OffsetHDR="%s"
        hdrgm:HDRCapacityMin="%s"
        hdrgm:HDRCapacityMax="%s"
        hdrgm:BaseRenditionIsHDR="False"/>
`, hdrgmNamespace, meta.Version,
		f(log2f(meta.MinContentBoost[0])), f(log2f(meta.MaxContentBoost[0])), f(meta.Gamma[0]),
		f(meta.OffsetSDR[0]), f(meta.OffsetHDR[0]),
		f(log2f(meta.HDRCapacityMin)), f(log2f(meta.HDRCapacityMax)))
	sb.WriteString(xmpFooter)
	return []byte(sb.String())
}
