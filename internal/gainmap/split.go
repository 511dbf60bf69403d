package gainmap

// SplitResult holds the parts of a gain map container.
type SplitResult struct {
	PrimaryJPEG []byte
	GainMapJPEG []byte
	Meta        *Metadata
	Segments    Segments
}

// Split extracts the base and gain map JPEG streams and the gain map
// metadata. ISO 21496-1 metadata takes precedence over XMP.
func Split(data []byte) (*SplitResult, error) {
	spans, err := locateImages(data)
	if err != nil {
		return nil, wrap(CodeDecode, "locate images", err)
	}
	if len(spans) < 2 {
		return nil, errorf(CodeDecode, "gain map image not found")
	}
	res := &SplitResult{
		PrimaryJPEG: append([]byte(nil), data[spans[0].start:spans[0].end]...),
		GainMapJPEG: append([]byte(nil), data[spans[1].start:spans[1].end]...),
	}

	pApp1, pApp2, err := appSegments(data, true)
	if err != nil {
		return nil, wrap(CodeDecode, "primary header", err)
	}
	res.Segments.PrimaryXMP = findPrefixed(pApp1, xmpPrefix)
	res.Segments.PrimaryISO = findPrefixed(pApp2, isoPrefix)

	gApp1, gApp2, err := appSegments(res.GainMapJPEG, false)
	if err != nil {
		return nil, wrap(CodeDecode, "gain map header", err)
	}
	res.Segments.SecondaryXMP = findPrefixed(gApp1, xmpPrefix)
	res.Segments.SecondaryISO = findPrefixed(gApp2, isoPrefix)

	switch {
	case res.Segments.SecondaryISO != nil:
		res.Meta, err = parseISO(res.Segments.SecondaryISO)
	case res.Segments.SecondaryXMP != nil:
		res.Meta, err = parseXMP(res.Segments.SecondaryXMP)
	default:
		return nil, errorf(CodeDecode, "no gain map metadata found")
	}
	if err != nil {
		return nil, wrap(CodeDecode, "gain map metadata", err)
	}
	return res, nil
}
